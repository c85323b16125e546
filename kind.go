package saveable

import "fmt"

// Kind is the shape tag recorded next to every stored value.
type Kind int

const (
	KindEmpty Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindNone
	KindList
	KindTuple
	KindSet
	KindDict
	KindObject

	kindCount
)

var kindTags = [kindCount]string{
	KindEmpty:  "empty",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindStr:    "str",
	KindNone:   "none",
	KindList:   "list",
	KindTuple:  "tuple",
	KindSet:    "set",
	KindDict:   "dict",
	KindObject: "object",
}

var kindsByTag = func() map[string]Kind {
	m := make(map[string]Kind, len(kindTags))
	for k, tag := range kindTags {
		m[tag] = Kind(k)
	}
	return m
}()

func (k Kind) String() string {
	if k >= 0 && k < kindCount {
		return kindTags[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func ParseKind(tag string) (Kind, error) {
	if k, ok := kindsByTag[tag]; ok {
		return k, nil
	}
	return 0, dataErrf(nil, ErrCorrupt, "unknown type tag %q", tag)
}

func (k Kind) IsPrimitive() bool {
	switch k {
	case KindBool, KindInt, KindFloat, KindStr:
		return true
	default:
		return false
	}
}

// IsIterable reports whether k is a list, tuple or set.
func (k Kind) IsIterable() bool {
	return k == KindList || k == KindTuple || k == KindSet
}

// Role says what a stored unit is to its owner: a plain field, or one half of
// a dictionary.
type Role int

const (
	RoleAttribute Role = iota
	RoleDictKeys
	RoleDictValues

	roleCount
)

var roleTags = [roleCount]string{
	RoleAttribute:  "attribute",
	RoleDictKeys:   "dict_keys",
	RoleDictValues: "dict_values",
}

var rolesByTag = map[string]Role{
	"attribute":   RoleAttribute,
	"dict_keys":   RoleDictKeys,
	"dict_values": RoleDictValues,
}

func (r Role) String() string {
	if r >= 0 && r < roleCount {
		return roleTags[r]
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func ParseRole(tag string) (Role, error) {
	if r, ok := rolesByTag[tag]; ok {
		return r, nil
	}
	return 0, dataErrf(nil, ErrCorrupt, "unknown role tag %q", tag)
}

// NoneLiteral is the payload backends store for a none value.
const NoneLiteral = "__none__"

// TextEncoding is the encoding every backend records for string data.
const TextEncoding = "utf-8"
