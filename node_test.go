package saveable

import (
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
)

// fakeEntry is one stored unit of fakeNode. Collections are stored one
// element per entry, an empty collection as a single entry without value.
type fakeEntry struct {
	meta     MetaData
	value    any
	hasValue bool
}

func (e *fakeEntry) Kind() Kind { return e.meta.Type }

type fakeNode struct {
	ReadState
	name     string
	parent   *fakeNode
	entries  []*fakeEntry
	children []*fakeNode

	validate func(node string, f DataField) error
}

func (n *fakeNode) ValidateField(node string, f DataField) error {
	if n.validate == nil {
		return nil
	}
	return n.validate(node, f)
}

func newFakeNode(name string, parent *fakeNode) *fakeNode {
	return &fakeNode{name: name, parent: parent}
}

func (n *fakeNode) Name() string { return n.name }

func (n *fakeNode) Parent() Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *fakeNode) CreateChild(meta MetaData) (Node, error) {
	c := newFakeNode(meta.Name, n)
	n.children = append(n.children, c)
	return c, nil
}

func (n *fakeNode) WritePrimitive(f DataField) error {
	n.entries = append(n.entries, &fakeEntry{meta: f.Meta, value: f.Value, hasValue: true})
	return nil
}

func (n *fakeNode) WriteIterable(f DataField) error {
	items := f.Value.([]any)
	if len(items) == 0 {
		n.entries = append(n.entries, &fakeEntry{meta: f.Meta})
	}
	for _, item := range items {
		n.entries = append(n.entries, &fakeEntry{meta: f.Meta, value: item, hasValue: true})
	}
	return nil
}

func (n *fakeNode) WriteNone(f DataField) error {
	meta := MetaData{Type: KindNone, Role: f.Meta.Role, Name: f.Meta.Name, Elem: KindNone}
	n.entries = append(n.entries, &fakeEntry{meta: meta, hasValue: true})
	return nil
}

func (n *fakeNode) Entries() ([]Entry, error) {
	result := make([]Entry, len(n.entries))
	for i, e := range n.entries {
		result[i] = e
	}
	return result, nil
}

func (n *fakeNode) ReadPrimitive(e Entry) (DataField, error) {
	ent := e.(*fakeEntry)
	return DataField{Meta: ent.meta, Value: ent.value}, nil
}

func (n *fakeNode) collect(meta MetaData) []any {
	items := []any{}
	for _, e := range n.entries {
		if e.meta == meta && e.hasValue {
			items = append(items, e.value)
		}
	}
	return items
}

func (n *fakeNode) ReadIterable(e Entry) (DataField, bool, error) {
	ent := e.(*fakeEntry)
	if n.Materialized(ent.meta.Name) {
		return DataField{}, false, nil
	}
	n.MarkMaterialized(ent.meta.Name)
	return DataField{Meta: ent.meta, Value: n.collect(ent.meta)}, true, nil
}

func (n *fakeNode) ReadDictionary(e Entry) (DataField, bool, error) {
	ent := e.(*fakeEntry)
	if n.HasDictPart(ent.meta.Name, ent.meta.Role) {
		return DataField{}, false, nil
	}
	return n.AddDictPart(ent.meta, n.collect(ent.meta))
}

func (n *fakeNode) Children() ([]Node, error) {
	result := make([]Node, len(n.children))
	for i, c := range n.children {
		result[i] = c
	}
	return result, nil
}

type engineAddress struct {
	City string `save:"city"`
}

type engineSample struct {
	Name    string            `save:"name"`
	Age     int               `save:"age"`
	Spouse  *string           `save:"spouse"`
	Tags    []string          `save:"tags"`
	Empty   []int             `save:"empty"`
	Point   [2]float64        `save:"point"`
	Flags   map[bool]struct{} `save:"flags"`
	Scores  map[string]int    `save:"scores"`
	Address engineAddress     `save:"address"`
	Work    *engineAddress    `save:"work"`
}

func newEngineSample() *engineSample {
	return &engineSample{
		Name:    "Marge",
		Age:     36,
		Tags:    []string{"blue", "hair"},
		Empty:   []int{},
		Point:   [2]float64{1.5, -2},
		Flags:   map[bool]struct{}{true: {}},
		Scores:  map[string]int{"b": 2, "a": 1},
		Address: engineAddress{City: "Springfield"},
		Work:    &engineAddress{City: "Home"},
	}
}

func writeAll(t *testing.T, n Node, obj any) {
	t.Helper()
	fields, err := IterFields(obj)
	if err != nil {
		t.Fatalf("IterFields failed: %v", err)
	}
	for _, f := range fields {
		if err := WriteData(n, f); err != nil {
			t.Fatalf("WriteData(%v) failed: %v", f.Meta, err)
		}
	}
}

func TestWriteData_load_roundtrip(t *testing.T) {
	root := newFakeNode("root", nil)
	want := newEngineSample()
	writeAll(t, root, want)

	if len(root.children) != 2 {
		t.Fatalf("children = %d, wanted 2", len(root.children))
	}
	if root.children[0].Parent() != Node(root) {
		t.Fatalf("child parent is not the root")
	}

	got := &engineSample{Spouse: new(string)}
	if err := Load(root, got); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Load = %+v, wanted %+v", got, want)
	}
}

func TestWriteData_dictionary_split(t *testing.T) {
	root := newFakeNode("root", nil)
	writeAll(t, root, &struct {
		Scores map[string]int `save:"scores"`
	}{map[string]int{"b": 2, "a": 1}})

	var keys, values []any
	for _, e := range root.entries {
		if e.meta.Name != "scores" || e.meta.Type != KindDict {
			t.Fatalf("unexpected entry %v", e.meta)
		}
		switch e.meta.Role {
		case RoleDictKeys:
			if e.meta.Elem != KindStr {
				t.Errorf("keys element type = %v, wanted str", e.meta.Elem)
			}
			keys = append(keys, e.value)
		case RoleDictValues:
			if e.meta.Elem != KindInt {
				t.Errorf("values element type = %v, wanted int", e.meta.Elem)
			}
			values = append(values, e.value)
		default:
			t.Fatalf("unexpected role %v", e.meta.Role)
		}
	}
	if a, e := keys, []any{"a", "b"}; !reflect.DeepEqual(a, e) {
		t.Errorf("keys = %v, wanted %v", a, e)
	}
	if a, e := values, []any{int64(1), int64(2)}; !reflect.DeepEqual(a, e) {
		t.Errorf("values = %v, wanted %v", a, e)
	}
}

func TestWriteData_errors(t *testing.T) {
	tests := []struct {
		name string
		f    DataField
		err  error
	}{
		{"nil object", DataField{Meta: MetaData{Type: KindObject, Name: "o", Elem: KindObject}}, ErrUnsupported},
		{"non-object", DataField{Meta: MetaData{Type: KindObject, Name: "o", Elem: KindObject}, Value: "x"}, ErrUnsupported},
		{"non-canonical", DataField{Meta: MetaData{Type: KindInt, Name: "i", Elem: KindInt}, Value: 5}, ErrUnsupported},
		{"sequence as scalar", DataField{Meta: MetaData{Type: KindStr, Name: "s", Elem: KindStr}, Value: []any{"a"}}, ErrInconsistent},
		{"wrong element type", DataField{Meta: MetaData{Type: KindList, Name: "l", Elem: KindInt}, Value: []any{"a"}}, ErrInconsistent},
		{"declared empty", DataField{Meta: MetaData{Type: KindList, Name: "l", Elem: KindEmpty}, Value: []any{int64(1)}}, ErrInconsistent},
		{"empty declared int", DataField{Meta: MetaData{Type: KindSet, Name: "l", Elem: KindInt}, Value: []any{}}, ErrInconsistent},
		{"mixed elements", DataField{Meta: MetaData{Type: KindList, Name: "l", Elem: KindInt}, Value: []any{int64(1), "a"}}, ErrUnsupported},
		{"uneven dictionary", DataField{Meta: MetaData{Type: KindDict, Name: "d", Elem: KindNone}, Value: Dict{Keys: []any{"a"}}}, ErrInconsistent},
		{"mixed keys", DataField{Meta: MetaData{Type: KindDict, Name: "d", Elem: KindNone}, Value: Dict{Keys: []any{"a", true}, Values: []any{1.0, 2.0}}}, ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newFakeNode("root", nil)
			err := WriteData(root, tt.f)
			if !errors.Is(err, tt.err) {
				t.Fatalf("WriteData = %v, wanted %v", err, tt.err)
			}
			if len(root.entries) != 0 || len(root.children) != 0 {
				t.Fatalf("failed WriteData stored %d entries and %d children", len(root.entries), len(root.children))
			}
		})
	}
}

func TestCheckElements(t *testing.T) {
	if err := checkElements(MetaData{Elem: KindEmpty}, nil); err != nil {
		t.Errorf("checkElements(empty) = %v, wanted nil", err)
	}
	if err := checkElements(MetaData{Elem: KindBool}, []any{true, false}); err != nil {
		t.Errorf("checkElements(bool) = %v, wanted nil", err)
	}
	if err := checkElements(MetaData{Elem: KindFloat}, []any{true}); !errors.Is(err, ErrInconsistent) {
		t.Errorf("checkElements(bool as float) = %v, wanted ErrInconsistent", err)
	}
}

func TestReadAttributes(t *testing.T) {
	root := newFakeNode("root", nil)
	writeAll(t, root, &struct {
		Name   string         `save:"name"`
		Tags   []string       `save:"tags"`
		Scores map[string]int `save:"scores"`
		Nobody *int           `save:"nobody"`
		Sub    engineAddress  `save:"sub"`
	}{Name: "Bart", Tags: []string{"a", "b", "c"}, Scores: map[string]int{"x": 1}, Sub: engineAddress{"Shelbyville"}})

	// a second pass must not see state left over from the first
	for pass := 1; pass <= 2; pass++ {
		fields, err := ReadAttributes(root)
		if err != nil {
			t.Fatalf("pass %d: ReadAttributes failed: %v", pass, err)
		}
		var names []string
		for _, f := range fields {
			names = append(names, f.Meta.Name)
		}
		if a, e := names, []string{"name", "tags", "scores", "nobody"}; !reflect.DeepEqual(a, e) {
			t.Fatalf("pass %d: fields = %v, wanted %v", pass, a, e)
		}
		if a, e := fields[1].Value, []any{"a", "b", "c"}; !reflect.DeepEqual(a, e) {
			t.Errorf("pass %d: tags = %v, wanted %v", pass, a, e)
		}
		if a, e := fields[2].Meta, (MetaData{Type: KindDict, Role: RoleAttribute, Name: "scores", Elem: KindNone}); a != e {
			t.Errorf("pass %d: scores meta = %v, wanted %v", pass, a, e)
		}
		if fields[3].Value != nil || fields[3].Meta.Type != KindNone {
			t.Errorf("pass %d: nobody = %v %v, wanted none", pass, fields[3].Meta, fields[3].Value)
		}
	}
}

func TestReadAttributes_incomplete_dictionary(t *testing.T) {
	root := newFakeNode("root", nil)
	keys := MetaData{Type: KindDict, Role: RoleDictKeys, Name: "d", Elem: KindStr}
	if err := root.WriteIterable(DataField{Meta: keys, Value: []any{"a"}}); err != nil {
		t.Fatal(err)
	}
	_, err := ReadAttributes(root)
	if !errors.Is(err, ErrIncompleteDict) {
		t.Fatalf("ReadAttributes = %v, wanted ErrIncompleteDict", err)
	}
}

func TestReadAttributes_corrupt_kind(t *testing.T) {
	root := newFakeNode("root", nil)
	root.entries = append(root.entries, &fakeEntry{meta: MetaData{Type: KindEmpty, Name: "x"}})
	if _, err := ReadAttributes(root); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("ReadAttributes = %v, wanted ErrCorrupt", err)
	}
}

func TestLoad_errors(t *testing.T) {
	root := newFakeNode("root", nil)
	writeAll(t, root, &struct {
		Name string        `save:"name"`
		Sub  engineAddress `save:"sub"`
	}{Name: "Lisa"})

	var plain engineAddress
	if err := Load(root, plain); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Load(non-pointer) = %v, wanted ErrUnsupported", err)
	}
	if err := Load(root, (*engineAddress)(nil)); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Load(nil) = %v, wanted ErrUnsupported", err)
	}
	if err := Load(root, &plain); !errors.Is(err, ErrUnknownAttribute) {
		t.Errorf("Load(missing field) = %v, wanted ErrUnknownAttribute", err)
	}

	var noChild struct {
		Name string `save:"name"`
	}
	if err := Load(root, &noChild); !errors.Is(err, ErrUnknownAttribute) {
		t.Errorf("Load(missing child field) = %v, wanted ErrUnknownAttribute", err)
	}

	var scalarChild struct {
		Name string `save:"name"`
		Sub  int    `save:"sub"`
	}
	if err := Load(root, &scalarChild); !errors.Is(err, ErrUnknownAttribute) {
		t.Errorf("Load(child into int) = %v, wanted ErrUnknownAttribute", err)
	}

	var wrongType struct {
		Name int           `save:"name"`
		Sub  engineAddress `save:"sub"`
	}
	if err := Load(root, &wrongType); !errors.Is(err, ErrInconsistent) {
		t.Errorf("Load(str into int) = %v, wanted ErrInconsistent", err)
	}
}

func TestLoad_allocates_pointer_child(t *testing.T) {
	root := newFakeNode("root", nil)
	writeAll(t, root, &struct {
		Work engineAddress `save:"work"`
	}{engineAddress{"Plant"}})

	var out struct {
		Work *engineAddress `save:"work"`
	}
	if err := Load(root, &out); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if out.Work == nil || out.Work.City != "Plant" {
		t.Fatalf("Work = %+v, wanted Plant", out.Work)
	}
}
