package boltfmt

import (
	"bytes"
	"slices"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// Mem is a transient in-memory container, used by tests and for
// round-tripping objects without touching the file system.
type Mem struct {
	mu     sync.Mutex
	cond   *sync.Cond
	groups map[string]*memGroup
	closed bool
	writer bool
}

func NewMem() *Mem {
	s := &Mem{groups: make(map[string]*memGroup)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// memContainer hands the shared Mem to one Storage; closing it does not
// discard the data, so a later Storage can read what an earlier one wrote.
type memContainer struct {
	m *Mem
}

func (c memContainer) BeginTx(writable bool) (containerTx, error) {
	s := c.m
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.Newf("storage closed")
	}
	if writable {
		for s.writer && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			return nil, errors.Newf("storage closed")
		}
		s.writer = true
	}

	// Snapshot everything for transactional isolation (simplicity over efficiency).
	snap := make(map[string]*memGroup, len(s.groups))
	for k, g := range s.groups {
		snap[k] = g.clone()
	}

	return &memTx{
		writable: writable,
		base:     s,
		groups:   snap,
	}, nil
}

func (c memContainer) Close() error { return nil }

// Discard drops all data; later transactions fail.
func (s *Mem) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.groups = nil
	s.cond.Broadcast()
}

type memTx struct {
	base     *Mem
	writable bool
	groups   map[string]*memGroup
	closed   bool
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) closeLocked() {
	if tx.closed {
		return
	}
	tx.closed = true
	if tx.writable {
		tx.base.writer = false
		tx.base.cond.Broadcast()
	}
}

func (tx *memTx) Group(name string) group {
	if tx.closed {
		panic("tx is closed")
	}
	g := tx.groups[name]
	if g == nil {
		return nil
	}
	return memGroupHandle{tx: tx, g: g}
}

func (tx *memTx) CreateGroup(name string) (group, error) {
	if tx.closed {
		panic("tx is closed")
	}
	if !tx.writable {
		return nil, errors.Newf("tx not writable")
	}
	if tx.groups[name] != nil {
		return nil, errors.Newf("group %q already exists", name)
	}
	g := &memGroup{}
	tx.groups[name] = g
	return memGroupHandle{tx: tx, g: g}, nil
}

func (tx *memTx) DeleteGroup(name string) error {
	if tx.closed {
		panic("tx is closed")
	}
	if !tx.writable {
		return errors.Newf("tx not writable")
	}
	if tx.groups[name] == nil {
		return ErrGroupNotFound
	}
	delete(tx.groups, name)
	return nil
}

func (tx *memTx) Commit() error {
	if tx.closed {
		return nil
	}
	if !tx.writable {
		return errors.Newf("tx not writable")
	}
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	if tx.base.closed {
		tx.closeLocked()
		return errors.Newf("storage closed")
	}
	tx.base.groups = tx.groups
	tx.closeLocked()
	return nil
}

func (tx *memTx) Rollback() error {
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	tx.closeLocked()
	return nil
}

func (tx *memTx) Size() int64 { return 0 }

type memGroup struct {
	items []memKV // sorted by key
}

type memKV struct {
	key   []byte
	value []byte    // nil for a nested group
	sub   *memGroup // non-nil for a nested group
}

func (g *memGroup) clone() *memGroup {
	if g == nil {
		return nil
	}
	out := &memGroup{items: make([]memKV, len(g.items))}
	for i, kv := range g.items {
		out.items[i] = memKV{
			key:   slices.Clone(kv.key),
			value: slices.Clone(kv.value),
			sub:   kv.sub.clone(),
		}
	}
	return out
}

func (g *memGroup) find(key []byte) (idx int, ok bool) {
	items := g.items
	i := sort.Search(len(items), func(i int) bool {
		return bytes.Compare(items[i].key, key) >= 0
	})
	if i < len(items) && bytes.Equal(items[i].key, key) {
		return i, true
	}
	return i, false
}

type memGroupHandle struct {
	tx *memTx
	g  *memGroup
}

func (h memGroupHandle) Get(key []byte) []byte {
	i, ok := h.g.find(key)
	if !ok {
		return nil
	}
	return h.g.items[i].value
}

func (h memGroupHandle) Put(key, value []byte) error {
	if !h.tx.writable {
		return errors.Newf("tx not writable")
	}
	i, ok := h.g.find(key)
	if ok {
		return ErrKeyExists
	}
	h.g.items = slices.Insert(h.g.items, i, memKV{key: slices.Clone(key), value: slices.Clone(value)})
	return nil
}

func (h memGroupHandle) Group(name []byte) group {
	i, ok := h.g.find(name)
	if !ok || h.g.items[i].sub == nil {
		return nil
	}
	return memGroupHandle{tx: h.tx, g: h.g.items[i].sub}
}

func (h memGroupHandle) CreateGroup(name []byte) (group, error) {
	if !h.tx.writable {
		return nil, errors.Newf("tx not writable")
	}
	i, ok := h.g.find(name)
	if ok {
		return nil, errors.Wrapf(ErrKeyExists, "group %q", name)
	}
	sub := &memGroup{}
	h.g.items = slices.Insert(h.g.items, i, memKV{key: slices.Clone(name), sub: sub})
	return memGroupHandle{tx: h.tx, g: sub}, nil
}

func (h memGroupHandle) ForEach(fn func(key, value []byte) error) error {
	for _, kv := range h.g.items {
		if err := fn(kv.key, kv.value); err != nil {
			return err
		}
	}
	return nil
}

func (h memGroupHandle) Stats() groupStats {
	var st groupStats
	for _, kv := range h.g.items {
		if kv.sub != nil {
			st.GroupN++
		} else {
			st.KeyN++
		}
	}
	return st
}
