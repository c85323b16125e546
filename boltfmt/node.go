package boltfmt

import (
	"github.com/andreyvit/saveable"
	"github.com/cockroachdb/errors"
)

// groupMetaKey holds a nested group's own metadata record. It sorts before
// every field name and is never reported as an entry.
const groupMetaKey = "\x00"

const (
	keysSuffix   = ":keys"
	valuesSuffix = ":values"
)

// Node stores one object as a group: fields are datasets keyed by name,
// nested objects are nested groups.
type Node struct {
	saveable.ReadState
	name   string
	parent *Node
	g      group
}

type entry struct {
	key  string
	meta saveable.MetaData
	rec  *record
}

func (e *entry) Kind() saveable.Kind { return e.meta.Type }

func newNode(name string, parent *Node, g group) *Node {
	return &Node{name: name, parent: parent, g: g}
}

func (n *Node) Name() string { return n.name }

func (n *Node) Parent() saveable.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// Path is the slash-separated chain of names from the root.
func (n *Node) Path() string {
	if n.parent == nil {
		return n.name
	}
	return n.parent.Path() + "/" + n.name
}

func datasetKey(meta saveable.MetaData) string {
	switch meta.Role {
	case saveable.RoleDictKeys:
		return meta.Name + keysSuffix
	case saveable.RoleDictValues:
		return meta.Name + valuesSuffix
	default:
		return meta.Name
	}
}

func (n *Node) put(meta saveable.MetaData, payload []byte) error {
	raw, err := encodeRecord(meta, payload)
	if err != nil {
		return saveable.FieldErrf(n.Path(), meta.Name, err, "encoding record")
	}
	key := datasetKey(meta)
	if err := n.g.Put([]byte(key), raw); err != nil {
		if errors.Is(err, ErrKeyExists) {
			return saveable.FieldErrf(n.Path(), meta.Name, err, "dataset %q already exists", key)
		}
		return saveable.FieldErrf(n.Path(), meta.Name, err, "")
	}
	return nil
}

func (n *Node) CreateChild(meta saveable.MetaData) (saveable.Node, error) {
	g, err := n.g.CreateGroup([]byte(meta.Name))
	if err != nil {
		return nil, saveable.FieldErrf(n.Path(), meta.Name, err, "creating group")
	}
	raw, err := encodeRecord(meta, nil)
	if err != nil {
		return nil, err
	}
	if err := g.Put([]byte(groupMetaKey), raw); err != nil {
		return nil, saveable.FieldErrf(n.Path(), meta.Name, err, "")
	}
	return newNode(meta.Name, n, g), nil
}

func (n *Node) WritePrimitive(f saveable.DataField) error {
	if _, ok := saveable.KindOfScalar(f.Value); !ok {
		return saveable.FieldErrf(n.Path(), f.Meta.Name, saveable.ErrUnsupported, "data type %T is not supported", f.Value)
	}
	payload, err := encodeScalarPayload(f.Value)
	if err != nil {
		return saveable.FieldErrf(n.Path(), f.Meta.Name, err, "")
	}
	return n.put(f.Meta, payload)
}

func (n *Node) WriteIterable(f saveable.DataField) error {
	items, ok := f.Value.([]any)
	if !ok {
		return saveable.FieldErrf(n.Path(), f.Meta.Name, saveable.ErrUnsupported, "value must be a list, set or tuple")
	}
	if (len(items) == 0) != (f.Meta.Elem == saveable.KindEmpty) {
		return saveable.FieldErrf(n.Path(), f.Meta.Name, saveable.ErrInconsistent, "%d elements declared as %v", len(items), f.Meta.Elem)
	}
	payload, err := encodeArrayPayload(items)
	if err != nil {
		return saveable.FieldErrf(n.Path(), f.Meta.Name, err, "")
	}
	return n.put(f.Meta, payload)
}

func (n *Node) WriteNone(f saveable.DataField) error {
	if f.Value != nil {
		return saveable.FieldErrf(n.Path(), f.Meta.Name, saveable.ErrInconsistent, "expected to be none but is %v", f.Value)
	}
	meta, err := saveable.NewMetaData(saveable.KindNone, f.Meta.Role, f.Meta.Name, saveable.KindNone)
	if err != nil {
		return err
	}
	payload, err := encodeScalarPayload(nil)
	if err != nil {
		return err
	}
	return n.put(meta, payload)
}

func (n *Node) Entries() ([]saveable.Entry, error) {
	var entries []saveable.Entry
	err := n.g.ForEach(func(k, v []byte) error {
		if v == nil || string(k) == groupMetaKey {
			return nil
		}
		rec, err := decodeRecord(v)
		if err != nil {
			return saveable.FieldErrf(n.Path(), string(k), err, "")
		}
		meta, err := rec.meta()
		if err != nil {
			return saveable.FieldErrf(n.Path(), string(k), err, "")
		}
		if datasetKey(meta) != string(k) {
			return saveable.FieldErrf(n.Path(), string(k), saveable.ErrInconsistent, "dataset holds metadata of %q", datasetKey(meta))
		}
		entries = append(entries, &entry{key: string(k), meta: meta, rec: rec})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (n *Node) entry(e saveable.Entry) (*entry, error) {
	ent, ok := e.(*entry)
	if !ok {
		return nil, saveable.FieldErrf(n.Path(), "", saveable.ErrUnsupported, "foreign entry %T", e)
	}
	return ent, nil
}

func (n *Node) ReadPrimitive(e saveable.Entry) (saveable.DataField, error) {
	ent, err := n.entry(e)
	if err != nil {
		return saveable.DataField{}, err
	}
	v, err := decodeScalarPayload(ent.meta.Type, ent.rec.Data)
	if err != nil {
		return saveable.DataField{}, saveable.FieldErrf(n.Path(), ent.meta.Name, err, "")
	}
	return saveable.DataField{Meta: ent.meta, Value: v}, nil
}

func (n *Node) ReadIterable(e saveable.Entry) (saveable.DataField, bool, error) {
	ent, err := n.entry(e)
	if err != nil {
		return saveable.DataField{}, false, err
	}
	if n.Materialized(ent.meta.Name) {
		return saveable.DataField{}, false, nil
	}
	items, err := decodeArrayPayload(ent.meta.Elem, ent.rec.Data)
	if err != nil {
		return saveable.DataField{}, false, saveable.FieldErrf(n.Path(), ent.meta.Name, err, "")
	}
	n.MarkMaterialized(ent.meta.Name)
	return saveable.DataField{Meta: ent.meta, Value: items}, true, nil
}

func (n *Node) ReadDictionary(e saveable.Entry) (saveable.DataField, bool, error) {
	ent, err := n.entry(e)
	if err != nil {
		return saveable.DataField{}, false, err
	}
	if n.HasDictPart(ent.meta.Name, ent.meta.Role) {
		return saveable.DataField{}, false, nil
	}
	items, err := decodeArrayPayload(ent.meta.Elem, ent.rec.Data)
	if err != nil {
		return saveable.DataField{}, false, saveable.FieldErrf(n.Path(), ent.meta.Name, err, "")
	}
	f, ok, err := n.AddDictPart(ent.meta, items)
	if err != nil {
		return saveable.DataField{}, false, saveable.FieldErrf(n.Path(), ent.meta.Name, err, "")
	}
	return f, ok, nil
}

func (n *Node) Children() ([]saveable.Node, error) {
	var children []saveable.Node
	err := n.g.ForEach(func(k, v []byte) error {
		if v != nil {
			return nil
		}
		name := string(k)
		g := n.g.Group(k)
		if g == nil {
			return saveable.FieldErrf(n.Path(), name, ErrGroupNotFound, "")
		}
		if raw := g.Get([]byte(groupMetaKey)); raw != nil {
			rec, err := decodeRecord(raw)
			if err != nil {
				return saveable.FieldErrf(n.Path(), name, err, "")
			}
			meta, err := rec.meta()
			if err != nil {
				return saveable.FieldErrf(n.Path(), name, err, "")
			}
			if meta.Type != saveable.KindObject {
				return saveable.FieldErrf(n.Path(), name, saveable.ErrInconsistent, "group holds %v metadata", meta.Type)
			}
		}
		children = append(children, newNode(name, n, g))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}
