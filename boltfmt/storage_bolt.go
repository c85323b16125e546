package boltfmt

import (
	"unsafe"

	"go.etcd.io/bbolt"
)

type boltContainer struct {
	bdb *bbolt.DB
}

func newBoltContainer(bdb *bbolt.DB) container {
	return &boltContainer{bdb: bdb}
}

func (s *boltContainer) BeginTx(writable bool) (containerTx, error) {
	btx, err := s.bdb.Begin(writable)
	if err != nil {
		return nil, err
	}
	return &boltContainerTx{btx: btx}, nil
}

func (s *boltContainer) Close() error {
	return s.bdb.Close()
}

type boltContainerTx struct {
	btx *bbolt.Tx
}

func (tx *boltContainerTx) Writable() bool { return tx.btx.Writable() }

func (tx *boltContainerTx) Group(name string) group {
	b := tx.btx.Bucket(unsafeBytesFromString(name))
	if b == nil {
		return nil
	}
	return boltGroup{b: b}
}

func (tx *boltContainerTx) CreateGroup(name string) (group, error) {
	b, err := tx.btx.CreateBucket([]byte(name))
	if err != nil {
		return nil, err
	}
	return boltGroup{b: b}, nil
}

func (tx *boltContainerTx) DeleteGroup(name string) error {
	err := tx.btx.DeleteBucket(unsafeBytesFromString(name))
	if err == bbolt.ErrBucketNotFound {
		return ErrGroupNotFound
	}
	return err
}

func (tx *boltContainerTx) Commit() error { return tx.btx.Commit() }

func (tx *boltContainerTx) Rollback() error {
	err := tx.btx.Rollback()
	if err == bbolt.ErrTxClosed {
		return nil
	}
	return err
}

func (tx *boltContainerTx) Size() int64 { return tx.btx.Size() }

type boltGroup struct {
	b *bbolt.Bucket
}

func (g boltGroup) Get(key []byte) []byte { return g.b.Get(key) }

func (g boltGroup) Put(key, value []byte) error {
	if g.b.Get(key) != nil || g.b.Bucket(key) != nil {
		return ErrKeyExists
	}
	return g.b.Put(key, value)
}

func (g boltGroup) Group(name []byte) group {
	b := g.b.Bucket(name)
	if b == nil {
		return nil
	}
	return boltGroup{b: b}
}

func (g boltGroup) CreateGroup(name []byte) (group, error) {
	b, err := g.b.CreateBucket(name)
	if err != nil {
		return nil, err
	}
	return boltGroup{b: b}, nil
}

func (g boltGroup) ForEach(fn func(key, value []byte) error) error {
	return g.b.ForEach(fn)
}

func (g boltGroup) Stats() groupStats {
	var st groupStats
	c := g.b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if v == nil {
			st.GroupN++
		} else {
			st.KeyN++
		}
	}
	return st
}

func unsafeBytesFromString(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
