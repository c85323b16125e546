package saveable

import (
	"reflect"
	"sync"
)

const tagName = "save"

var typeInfoCache sync.Map

type structInfo struct {
	typ    reflect.Type
	fields []fieldInfo
	byName map[string]*fieldInfo
}

type fieldInfo struct {
	name  string
	index []int
	typ   reflect.Type
}

func reflectType(typ reflect.Type) *structInfo {
	if v, ok := typeInfoCache.Load(typ); ok {
		return v.(*structInfo)
	}
	info := reflectTypeWithoutCache(typ)
	actual, _ := typeInfoCache.LoadOrStore(typ, info)
	return actual.(*structInfo)
}

func reflectTypeWithoutCache(typ reflect.Type) *structInfo {
	info := &structInfo{
		typ:    typ,
		byName: make(map[string]*fieldInfo),
	}
	for i := range typ.NumField() {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup(tagName); ok {
			tagged, _, _ := splitByte(tag, ',')
			if tagged == "-" {
				continue
			}
			if tagged != "" {
				name = tagged
			}
		}
		info.fields = append(info.fields, fieldInfo{name: name, index: f.Index, typ: f.Type})
	}
	for i := range info.fields {
		info.byName[info.fields[i].name] = &info.fields[i]
	}
	return info
}

// structValue unwraps obj into an addressable-if-possible struct value.
func structValue(obj any) (reflect.Value, error) {
	v := reflect.ValueOf(obj)
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}, errorf(ErrUnsupported, "nil %v is not a saveable object", v.Type())
		}
		v = v.Elem()
	}
	if !v.IsValid() || v.Kind() != reflect.Struct {
		return reflect.Value{}, errorf(ErrUnsupported, "%T is not a saveable object", obj)
	}
	return v, nil
}

// IterFields walks the saveable fields of obj, a struct or a pointer to one,
// in declaration order.
func IterFields(obj any) ([]DataField, error) {
	v, err := structValue(obj)
	if err != nil {
		return nil, err
	}
	return iterFields(v)
}

func iterFields(v reflect.Value) ([]DataField, error) {
	si := reflectType(v.Type())
	result := make([]DataField, 0, len(si.fields))
	for i := range si.fields {
		fi := &si.fields[i]
		f, err := makeField(fi.name, v.FieldByIndex(fi.index))
		if err != nil {
			return nil, fieldErrf(si.typ.Name(), fi.name, err, "")
		}
		result = append(result, f)
	}
	return result, nil
}

// isObjectField reports whether a field of type t can hold a nested object:
// a struct or a pointer to one.
func isObjectField(t reflect.Type) bool {
	return t.Kind() == reflect.Struct || t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct
}

func makeField(name string, fv reflect.Value) (DataField, error) {
	if fv.Kind() == reflect.Pointer && fv.IsNil() && fv.Type().Elem().Kind() == reflect.Struct {
		return DataField{}, errorf(ErrUnsupported, "nested object of type %v must not be nil", fv.Type())
	}
	k, err := Classify(fv)
	if err != nil {
		return DataField{}, errorf(err, "type %v", fv.Type())
	}
	if k == KindObject && !isObjectField(fv.Type()) {
		return DataField{}, errorf(ErrUnsupported, "nested object in a field of type %v cannot be loaded back", fv.Type())
	}
	v := fv
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			break
		}
		v = v.Elem()
	}

	var value any
	elem := k
	switch k {
	case KindNone:
		value = nil
	case KindBool, KindInt, KindFloat, KindStr:
		value, err = scalarValue(v)
	case KindList, KindTuple:
		elems := sequenceElems(v)
		elem, err = elementKind(elems)
		if err == nil {
			value, err = scalarValues(elems)
		}
	case KindSet:
		elem, err = elementKind(v.MapKeys())
		if err == nil {
			value, err = canonicalSet(v)
		}
	case KindDict:
		elem = KindNone
		value, _, _, err = canonicalDict(v)
	case KindObject:
		value = Object{v}
	default:
		err = ErrUnsupported
	}
	if err != nil {
		return DataField{}, err
	}
	meta, err := NewMetaData(k, RoleAttribute, name, elem)
	if err != nil {
		return DataField{}, err
	}
	return DataField{Meta: meta, Value: value}, nil
}
