package saveable

import (
	"fmt"
	"reflect"
)

// MetaData describes one stored unit of data. Backends persist all four
// fields verbatim so that a later read reconstructs an identical value.
type MetaData struct {
	Type Kind
	Role Role
	Name string
	Elem Kind
}

// NewMetaData validates the dictionary invariant: a dictionary attribute has
// no single element type, so its Elem must be KindNone.
func NewMetaData(typ Kind, role Role, name string, elem Kind) (MetaData, error) {
	if typ == KindDict && role == RoleAttribute && elem != KindNone {
		return MetaData{}, fieldErrf("", name, ErrInconsistent, "dictionary attribute must have element type %v, got %v", KindNone, elem)
	}
	return MetaData{Type: typ, Role: role, Name: name, Elem: elem}, nil
}

// ParseMetaData rebuilds metadata from the tags a backend stored.
func ParseMetaData(typ, role, name, elem string) (MetaData, error) {
	t, err := ParseKind(typ)
	if err != nil {
		return MetaData{}, err
	}
	r, err := ParseRole(role)
	if err != nil {
		return MetaData{}, err
	}
	e, err := ParseKind(elem)
	if err != nil {
		return MetaData{}, err
	}
	return NewMetaData(t, r, name, e)
}

func (m MetaData) String() string {
	return fmt.Sprintf("%s(%v/%v of %v)", m.Name, m.Type, m.Role, m.Elem)
}

// Tags returns the metadata fields in their stored textual form, in the
// order type, role, name, element type.
func (m MetaData) Tags() [4]string {
	return [4]string{m.Type.String(), m.Role.String(), m.Name, m.Elem.String()}
}

// DataField pairs a value with its metadata. Values use a canonical form:
// bool, int64, float64, string, nil for none, []any of those for
// list/tuple/set elements, Dict for dictionaries and Object for nested
// structs.
type DataField struct {
	Meta  MetaData
	Value any
}

// Dict is a dictionary split into parallel key and value sequences.
type Dict struct {
	Keys   []any
	Values []any
}

func (d Dict) Len() int { return len(d.Keys) }

// Object is a nested saveable struct.
type Object struct {
	v reflect.Value
}

func (o Object) Interface() any {
	if o.v.CanAddr() {
		return o.v.Addr().Interface()
	}
	return o.v.Interface()
}
