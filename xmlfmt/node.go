package xmlfmt

import (
	"unicode/utf8"

	"github.com/andreyvit/saveable"
	"github.com/beevik/etree"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	attrType = "type"
	attrRole = "role"
	attrName = "name"
	attrElem = "element_type"
)

// fallbackTag is used for fields whose name is not a valid XML name; the
// name attribute always carries the real one.
const fallbackTag = "field"

// Node stores one object as an element; each stored unit is a child
// element carrying the metadata as attributes and the value as text.
type Node struct {
	saveable.ReadState
	name   string
	parent *Node
	el     *etree.Element
}

type entry struct {
	el   *etree.Element
	meta saveable.MetaData
}

func (e *entry) Kind() saveable.Kind { return e.meta.Type }

func newNode(name string, parent *Node, el *etree.Element) *Node {
	return &Node{name: name, parent: parent, el: el}
}

func (n *Node) Name() string { return n.name }

func (n *Node) Parent() saveable.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// Element exposes the underlying element, mostly for tests.
func (n *Node) Element() *etree.Element { return n.el }

func tagFor(name string) string {
	if isXMLName(name) {
		return name
	}
	return fallbackTag
}

func isXMLName(s string) bool {
	if s == "" || len(s) >= 3 && (s[0]|0x20) == 'x' && (s[1]|0x20) == 'm' && (s[2]|0x20) == 'l' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case i > 0 && (c >= '0' && c <= '9' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// isXMLChar reports whether XML 1.0 can carry r, literally or as a
// character reference.
func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

func checkText(s string) error {
	if !utf8.ValidString(s) {
		return errors.Wrapf(saveable.ErrUnsupported, "string %q is not valid UTF-8", s)
	}
	for i, r := range s {
		if !isXMLChar(r) {
			return errors.Wrapf(saveable.ErrUnsupported, "character %U at byte %d cannot be stored in XML", r, i)
		}
	}
	return nil
}

func checkValue(v any) error {
	switch v := v.(type) {
	case string:
		return checkText(v)
	case []any:
		for _, item := range v {
			if err := checkValue(item); err != nil {
				return err
			}
		}
	case saveable.Dict:
		if err := checkValue(v.Keys); err != nil {
			return err
		}
		return checkValue(v.Values)
	}
	return nil
}

// ValidateField rejects strings and names holding characters XML cannot
// represent, so Save fails before the document is built.
func (n *Node) ValidateField(node string, f saveable.DataField) error {
	if err := checkText(f.Meta.Name); err != nil {
		return saveable.FieldErrf(node, f.Meta.Name, err, "field name")
	}
	if err := checkValue(f.Value); err != nil {
		return saveable.FieldErrf(node, f.Meta.Name, err, "")
	}
	return nil
}

func (n *Node) add(meta saveable.MetaData, text string) *etree.Element {
	tags := meta.Tags()
	el := n.el.CreateElement(tagFor(meta.Name))
	el.CreateAttr(attrType, tags[0])
	el.CreateAttr(attrRole, tags[1])
	el.CreateAttr(attrName, tags[2])
	el.CreateAttr(attrElem, tags[3])
	el.SetText(text)
	return el
}

func (n *Node) CreateChild(meta saveable.MetaData) (saveable.Node, error) {
	if err := checkText(meta.Name); err != nil {
		return nil, saveable.FieldErrf(n.name, meta.Name, err, "field name")
	}
	el := n.add(meta, "")
	return newNode(meta.Name, n, el), nil
}

func (n *Node) WritePrimitive(f saveable.DataField) error {
	if _, ok := saveable.KindOfScalar(f.Value); !ok || f.Value == nil {
		return saveable.FieldErrf(n.name, f.Meta.Name, saveable.ErrUnsupported, "data type %T is not supported", f.Value)
	}
	if err := n.ValidateField(n.name, f); err != nil {
		return err
	}
	n.add(f.Meta, saveable.FormatScalar(f.Value))
	return nil
}

// WriteIterable writes one element per item; an empty collection is one
// element with empty text.
func (n *Node) WriteIterable(f saveable.DataField) error {
	items, ok := f.Value.([]any)
	if !ok {
		return saveable.FieldErrf(n.name, f.Meta.Name, saveable.ErrUnsupported, "value must be a list, set or tuple")
	}
	if len(items) == 0 {
		if f.Meta.Elem != saveable.KindEmpty {
			return saveable.FieldErrf(n.name, f.Meta.Name, saveable.ErrInconsistent, "empty collection declared as %v", f.Meta.Elem)
		}
		n.add(f.Meta, "")
		return nil
	}
	if f.Meta.Elem == saveable.KindEmpty {
		return saveable.FieldErrf(n.name, f.Meta.Name, saveable.ErrInconsistent, "declared as empty, but it is not")
	}
	for _, item := range items {
		if _, ok := saveable.KindOfScalar(item); !ok {
			return saveable.FieldErrf(n.name, f.Meta.Name, saveable.ErrUnsupported, "element type %T is not supported", item)
		}
	}
	if err := n.ValidateField(n.name, f); err != nil {
		return err
	}
	for _, item := range items {
		n.add(f.Meta, saveable.FormatScalar(item))
	}
	return nil
}

func (n *Node) WriteNone(f saveable.DataField) error {
	if f.Value != nil {
		return saveable.FieldErrf(n.name, f.Meta.Name, saveable.ErrInconsistent, "expected to be none but is %v", f.Value)
	}
	meta, err := saveable.NewMetaData(saveable.KindNone, f.Meta.Role, f.Meta.Name, saveable.KindNone)
	if err != nil {
		return err
	}
	n.add(meta, saveable.NoneLiteral)
	return nil
}

func (n *Node) metaOf(el *etree.Element) (saveable.MetaData, error) {
	var vals [4]string
	for i, key := range [4]string{attrType, attrRole, attrName, attrElem} {
		a := el.SelectAttr(key)
		if a == nil {
			return saveable.MetaData{}, saveable.FieldErrf(n.name, el.Tag, saveable.ErrMissingMeta, "element has no %q attribute", key)
		}
		vals[i] = a.Value
	}
	meta, err := saveable.ParseMetaData(vals[0], vals[1], vals[2], vals[3])
	if err != nil {
		return saveable.MetaData{}, saveable.FieldErrf(n.name, vals[2], err, "")
	}
	return meta, nil
}

// Entries lists every child element except nested objects, one per stored
// element, so a collection appears once per item.
func (n *Node) Entries() ([]saveable.Entry, error) {
	var entries []saveable.Entry
	for _, el := range n.el.ChildElements() {
		meta, err := n.metaOf(el)
		if err != nil {
			return nil, err
		}
		if meta.Type == saveable.KindObject {
			continue
		}
		entries = append(entries, &entry{el: el, meta: meta})
	}
	return entries, nil
}

func (n *Node) entry(e saveable.Entry) (*entry, error) {
	ent, ok := e.(*entry)
	if !ok {
		return nil, saveable.FieldErrf(n.name, "", saveable.ErrUnsupported, "foreign entry %T", e)
	}
	return ent, nil
}

func (n *Node) ReadPrimitive(e saveable.Entry) (saveable.DataField, error) {
	ent, err := n.entry(e)
	if err != nil {
		return saveable.DataField{}, err
	}
	v, err := saveable.ParseScalar(ent.meta.Type, ent.el.Text())
	if err != nil {
		return saveable.DataField{}, saveable.FieldErrf(n.name, ent.meta.Name, err, "")
	}
	return saveable.DataField{Meta: ent.meta, Value: v}, nil
}

// elements collects the text of every sibling element stored with the same
// name and role as ent, in document order.
func (n *Node) elements(ent *entry) ([]any, error) {
	var texts []string
	for _, el := range n.el.ChildElements() {
		if el.SelectAttrValue(attrName, "") != ent.meta.Name || el.SelectAttrValue(attrRole, "") != ent.meta.Role.String() {
			continue
		}
		meta, err := n.metaOf(el)
		if err != nil {
			return nil, err
		}
		if meta != ent.meta {
			return nil, saveable.FieldErrf(n.name, ent.meta.Name, saveable.ErrInconsistent, "elements disagree on metadata: %v and %v", ent.meta, meta)
		}
		texts = append(texts, el.Text())
	}
	if ent.meta.Elem == saveable.KindEmpty {
		if len(texts) != 1 || texts[0] != "" {
			return nil, saveable.FieldErrf(n.name, ent.meta.Name, saveable.ErrInconsistent, "declared empty but has %d elements", len(texts))
		}
		return []any{}, nil
	}
	items, err := saveable.ParseScalars(ent.meta.Elem, texts)
	if err != nil {
		return nil, saveable.FieldErrf(n.name, ent.meta.Name, err, "")
	}
	return items, nil
}

func (n *Node) ReadIterable(e saveable.Entry) (saveable.DataField, bool, error) {
	ent, err := n.entry(e)
	if err != nil {
		return saveable.DataField{}, false, err
	}
	if n.Materialized(ent.meta.Name) {
		return saveable.DataField{}, false, nil
	}
	items, err := n.elements(ent)
	if err != nil {
		return saveable.DataField{}, false, err
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
	items, err := n.elements(ent)
	if err != nil {
		return saveable.DataField{}, false, err
	}
	f, ok, err := n.AddDictPart(ent.meta, items)
	if err != nil {
		return saveable.DataField{}, false, saveable.FieldErrf(n.name, ent.meta.Name, err, "")
	}
	return f, ok, nil
}

func (n *Node) Children() ([]saveable.Node, error) {
	objects := lo.Filter(n.el.ChildElements(), func(el *etree.Element, _ int) bool {
		return el.SelectAttrValue(attrType, "") == saveable.KindObject.String()
	})
	children := make([]saveable.Node, 0, len(objects))
	for _, el := range objects {
		meta, err := n.metaOf(el)
		if err != nil {
			return nil, err
		}
		children = append(children, newNode(meta.Name, n, el))
	}
	return children, nil
}
