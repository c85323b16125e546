package saveable

import (
	"slices"
)

// ReadState is the per-node bookkeeping of a read pass. Backends may deliver
// one collection as several entries and a dictionary as two independent
// lists, so a node remembers which names are already materialized and keeps
// the dictionary halves until both have arrived.
//
// Backends embed ReadState in their node type; ReadAttributes resets it at
// the start of every pass.
type ReadState struct {
	done   map[string]bool
	keys   map[string]dictPart
	values map[string]dictPart
}

type dictPart struct {
	meta  MetaData
	items []any
}

func (s *ReadState) State() *ReadState { return s }

func (s *ReadState) Reset() {
	s.done = make(map[string]bool)
	s.keys = make(map[string]dictPart)
	s.values = make(map[string]dictPart)
}

func (s *ReadState) lazyInit() {
	if s.done == nil {
		s.Reset()
	}
}

// Materialized reports whether a value for name was already produced in this pass.
func (s *ReadState) Materialized(name string) bool {
	return s.done[name]
}

func (s *ReadState) MarkMaterialized(name string) {
	s.lazyInit()
	s.done[name] = true
}

// HasDictPart reports whether the keys (or values, per role) of dictionary
// name are already cached or the dictionary is complete.
func (s *ReadState) HasDictPart(name string, role Role) bool {
	if s.done[name] {
		return true
	}
	switch role {
	case RoleDictKeys:
		_, ok := s.keys[name]
		return ok
	case RoleDictValues:
		_, ok := s.values[name]
		return ok
	default:
		return false
	}
}

// AddDictPart caches one half of a dictionary. Once both halves of a name
// are present it zips them and returns the dictionary field with ok set.
func (s *ReadState) AddDictPart(meta MetaData, items []any) (DataField, bool, error) {
	s.lazyInit()
	if s.done[meta.Name] {
		return DataField{}, false, nil
	}
	part := dictPart{meta, items}
	switch meta.Role {
	case RoleDictKeys:
		s.keys[meta.Name] = part
	case RoleDictValues:
		s.values[meta.Name] = part
	default:
		return DataField{}, false, fieldErrf("", meta.Name, ErrInconsistent, "dictionary part has role %v", meta.Role)
	}

	keys, ok1 := s.keys[meta.Name]
	values, ok2 := s.values[meta.Name]
	if !ok1 || !ok2 {
		return DataField{}, false, nil
	}
	if len(keys.items) != len(values.items) {
		return DataField{}, false, fieldErrf("", meta.Name, ErrInconsistent, "dictionary has %d keys but %d values", len(keys.items), len(values.items))
	}

	delete(s.keys, meta.Name)
	delete(s.values, meta.Name)
	s.done[meta.Name] = true

	dm, err := NewMetaData(KindDict, RoleAttribute, meta.Name, KindNone)
	if err != nil {
		return DataField{}, false, err
	}
	return DataField{Meta: dm, Value: Dict{Keys: keys.items, Values: values.items}}, true, nil
}

// Incomplete lists dictionaries of which only keys or only values were seen.
func (s *ReadState) Incomplete() []string {
	var names []string
	for name := range s.keys {
		names = append(names, name)
	}
	for name := range s.values {
		if _, ok := s.keys[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}
