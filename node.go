package saveable

import (
	"reflect"

	"go.uber.org/zap"
)

// Entry is one stored unit as enumerated by a node, tagged with the kind
// recorded in its metadata. Each backend defines its own entry type.
type Entry interface {
	Kind() Kind
}

// Node is one object's storage in a backend. The engine in this package
// decides what to write or read; a Node only implements the primitives.
type Node interface {
	Name() string
	Parent() Node

	// CreateChild makes the storage for the nested object described by meta,
	// addressable by meta.Name under this node.
	CreateChild(meta MetaData) (Node, error)
	WritePrimitive(f DataField) error
	// WriteIterable writes a list, tuple or set. Dictionary keys and values
	// arrive here as lists with a dictionary role.
	WriteIterable(f DataField) error
	WriteNone(f DataField) error

	// Entries enumerates stored units except nested objects.
	Entries() ([]Entry, error)
	ReadPrimitive(e Entry) (DataField, error)
	// ReadIterable returns false when the collection was already
	// materialized earlier in the pass.
	ReadIterable(e Entry) (DataField, bool, error)
	// ReadDictionary returns false until both halves of a dictionary have
	// been seen.
	ReadDictionary(e Entry) (DataField, bool, error)
	// Children lists the direct nested objects.
	Children() ([]Node, error)

	State() *ReadState
}

// FieldValidator is implemented by nodes whose backend cannot represent some
// otherwise saveable values. Save calls it on the root node for every field
// of the object tree, nested ones included, before the first write.
type FieldValidator interface {
	ValidateField(node string, f DataField) error
}

type engine struct {
	logger  *zap.Logger
	verbose bool
}

func newEngine(opt Options) *engine {
	return &engine{logger: opt.logger(), verbose: opt.Verbose}
}

var defaultEngine = newEngine(Options{})

// WriteData stores one field into n, recursing into nested objects.
func WriteData(n Node, f DataField) error {
	return defaultEngine.writeData(n, f)
}

// ReadAttributes reads every non-object field stored in n.
func ReadAttributes(n Node) ([]DataField, error) {
	return defaultEngine.readAttributes(n)
}

// Load fills target, a pointer to a struct, from n and its children.
func Load(n Node, target any) error {
	return defaultEngine.load(n, target)
}

func (e *engine) writeData(n Node, f DataField) error {
	if e.verbose {
		e.logger.Debug("write", zap.String("node", n.Name()), zap.Stringer("meta", f.Meta))
	}
	if f.Meta.Type == KindObject {
		return e.writeObject(n, f)
	}
	switch v := f.Value.(type) {
	case nil:
		return n.WriteNone(f)
	case bool, int64, float64, string:
		return n.WritePrimitive(f)
	case Object:
		return e.writeObject(n, f)
	case []any:
		if !f.Meta.Type.IsIterable() {
			return fieldErrf(n.Name(), f.Meta.Name, ErrInconsistent, "sequence value declared as %v", f.Meta.Type)
		}
		if err := checkElements(f.Meta, v); err != nil {
			return fieldErrf(n.Name(), f.Meta.Name, err, "")
		}
		return n.WriteIterable(f)
	case Dict:
		return e.writeDictionary(n, f)
	default:
		return fieldErrf(n.Name(), f.Meta.Name, ErrUnsupported, "attribute cannot be saved: %T", f.Value)
	}
}

// checkElements verifies that items agree with the declared element kind.
func checkElements(meta MetaData, items []any) error {
	k, err := ElementKind(items)
	if err != nil {
		return err
	}
	if meta.Elem == KindEmpty && k != KindEmpty {
		return errorf(ErrInconsistent, "declared empty but has %d elements", len(items))
	}
	if k != meta.Elem {
		return errorf(ErrInconsistent, "elements are %v, declared %v", k, meta.Elem)
	}
	return nil
}

func (e *engine) writeObject(n Node, f DataField) error {
	obj, ok := f.Value.(Object)
	if !ok {
		if f.Value == nil {
			return fieldErrf(n.Name(), f.Meta.Name, ErrUnsupported, "nested object must not be nil")
		}
		return fieldErrf(n.Name(), f.Meta.Name, ErrUnsupported, "value of type %T is not a saveable object", f.Value)
	}
	fields, err := iterFields(obj.v)
	if err != nil {
		return err
	}
	child, err := n.CreateChild(f.Meta)
	if err != nil {
		return err
	}
	for _, cf := range fields {
		if err := e.writeData(child, cf); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine) writeDictionary(n Node, f DataField) error {
	d, ok := f.Value.(Dict)
	if !ok {
		return fieldErrf(n.Name(), f.Meta.Name, ErrUnsupported, "value is supposed to be a dictionary with uniformly typed keys and values")
	}
	if len(d.Keys) != len(d.Values) {
		return fieldErrf(n.Name(), f.Meta.Name, ErrInconsistent, "dictionary has %d keys but %d values", len(d.Keys), len(d.Values))
	}
	if err := e.writeDictionaryPart(n, f.Meta, RoleDictKeys, d.Keys); err != nil {
		return err
	}
	return e.writeDictionaryPart(n, f.Meta, RoleDictValues, d.Values)
}

func (e *engine) writeDictionaryPart(n Node, meta MetaData, role Role, items []any) error {
	elem, err := ElementKind(items)
	if err != nil {
		return fieldErrf(n.Name(), meta.Name, err, "%v", role)
	}
	pm, err := NewMetaData(meta.Type, role, meta.Name, elem)
	if err != nil {
		return err
	}
	return n.WriteIterable(DataField{Meta: pm, Value: items})
}

func (e *engine) readAttributes(n Node) ([]DataField, error) {
	st := n.State()
	st.Reset()

	entries, err := n.Entries()
	if err != nil {
		return nil, err
	}
	var result []DataField
	for _, ent := range entries {
		var f DataField
		ok := true
		switch k := ent.Kind(); {
		case k.IsPrimitive() || k == KindNone:
			f, err = n.ReadPrimitive(ent)
		case k.IsIterable():
			f, ok, err = n.ReadIterable(ent)
		case k == KindDict:
			f, ok, err = n.ReadDictionary(ent)
		case k == KindObject:
			continue
		default:
			return nil, fieldErrf(n.Name(), "", ErrCorrupt, "entry of kind %v", k)
		}
		if err != nil {
			return nil, err
		}
		if ok {
			if e.verbose {
				e.logger.Debug("read", zap.String("node", n.Name()), zap.Stringer("meta", f.Meta))
			}
			result = append(result, f)
		}
	}
	if names := st.Incomplete(); len(names) > 0 {
		return nil, fieldErrf(n.Name(), names[0], ErrIncompleteDict, "only keys or only values are stored")
	}
	return result, nil
}

func (e *engine) load(n Node, target any) error {
	v := reflect.ValueOf(target)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return errorf(ErrUnsupported, "load target must be a non-nil pointer to a struct, got %T", target)
	}
	return e.loadValue(n, v.Elem())
}

func (e *engine) loadValue(n Node, v reflect.Value) error {
	si := reflectType(v.Type())

	fields, err := e.readAttributes(n)
	if err != nil {
		return err
	}
	for _, f := range fields {
		fi := si.byName[f.Meta.Name]
		if fi == nil {
			return fieldErrf(n.Name(), f.Meta.Name, ErrUnknownAttribute, "%v does not have this field", si.typ)
		}
		if err := assign(v.FieldByIndex(fi.index), f); err != nil {
			return fieldErrf(n.Name(), f.Meta.Name, err, "")
		}
	}

	children, err := n.Children()
	if err != nil {
		return err
	}
	for _, child := range children {
		fi := si.byName[child.Name()]
		if fi == nil {
			return fieldErrf(n.Name(), child.Name(), ErrUnknownAttribute, "%v does not have this field", si.typ)
		}
		fv := v.FieldByIndex(fi.index)
		if fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.Struct {
			if fv.IsNil() {
				fv.Set(reflect.New(fv.Type().Elem()))
			}
			fv = fv.Elem()
		}
		if fv.Kind() != reflect.Struct {
			return fieldErrf(n.Name(), child.Name(), ErrUnknownAttribute, "field of type %v is not a saveable object", fv.Type())
		}
		if err := e.loadValue(child, fv); err != nil {
			return err
		}
	}
	return nil
}
