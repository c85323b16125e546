package saveable

import (
	"cmp"
	"math"
	"reflect"
	"slices"
)

var emptyStructType = reflect.TypeOf(struct{}{})

// Classify returns the shape of v. Collections are classified by container
// only; uniformity of their elements is checked by the walker.
func Classify(v reflect.Value) (Kind, error) {
	if !v.IsValid() {
		return KindNone, nil
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return KindNone, nil
		}
		return Classify(v.Elem())
	case reflect.Bool:
		return KindBool, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt, nil
	case reflect.Float32, reflect.Float64:
		return KindFloat, nil
	case reflect.String:
		return KindStr, nil
	case reflect.Slice:
		return KindList, nil
	case reflect.Array:
		return KindTuple, nil
	case reflect.Map:
		if isSetType(v.Type()) {
			return KindSet, nil
		}
		return KindDict, nil
	case reflect.Struct:
		return KindObject, nil
	default:
		return 0, ErrUnsupported
	}
}

func isSetType(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Elem() == emptyStructType
}

func scalarKind(v reflect.Value) (Kind, bool) {
	k, err := Classify(v)
	if err != nil || !k.IsPrimitive() {
		return 0, false
	}
	return k, true
}

// elementKind returns the common primitive kind of elems, or KindEmpty when
// there are none. Elements must share the runtime type of the first one.
func elementKind(elems []reflect.Value) (Kind, error) {
	if len(elems) == 0 {
		return KindEmpty, nil
	}
	first := derefInterface(elems[0])
	if !first.IsValid() {
		return 0, errorf(ErrUnsupported, "element 0 is nil")
	}
	k, ok := scalarKind(first)
	if !ok {
		return 0, errorf(ErrUnsupported, "element type %v is not a primitive", first.Type())
	}
	typ := first.Type()
	for i, e := range elems[1:] {
		e = derefInterface(e)
		if !e.IsValid() || e.Type() != typ {
			return 0, errorf(ErrUnsupported, "element %d has type %v, wanted %v like element 0", i+1, typeName(e), typ)
		}
	}
	return k, nil
}

func derefInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func typeName(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}
	return v.Type().String()
}

// sequenceElems lists the elements of a slice, an array or the keys of a set.
func sequenceElems(v reflect.Value) []reflect.Value {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		n := v.Len()
		elems := make([]reflect.Value, n)
		for i := range n {
			elems[i] = v.Index(i)
		}
		return elems
	case reflect.Map:
		return v.MapKeys()
	default:
		return nil
	}
}

// scalarValue converts a primitive into its canonical form.
func scalarValue(v reflect.Value) (any, error) {
	v = derefInterface(v)
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			return nil, errorf(ErrUnsupported, "integer %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.String:
		return v.String(), nil
	default:
		return nil, errorf(ErrUnsupported, "%s is not a primitive", typeName(v))
	}
}

func scalarValues(elems []reflect.Value) ([]any, error) {
	out := make([]any, len(elems))
	for i, e := range elems {
		s, err := scalarValue(e)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// compareScalars orders canonical scalars of one kind; sets and dictionary
// keys are stored in this order.
func compareScalars(a, b any) int {
	switch a := a.(type) {
	case int64:
		return cmp.Compare(a, b.(int64))
	case float64:
		return cmp.Compare(a, b.(float64))
	case string:
		return cmp.Compare(a, b.(string))
	case bool:
		bb := b.(bool)
		switch {
		case a == bb:
			return 0
		case !a:
			return -1
		default:
			return 1
		}
	default:
		return 0
	}
}

// canonicalSet returns the sorted elements of a set.
func canonicalSet(v reflect.Value) ([]any, error) {
	items, err := scalarValues(v.MapKeys())
	if err != nil {
		return nil, err
	}
	slices.SortFunc(items, compareScalars)
	return items, nil
}

// canonicalDict splits a map into key and value sequences sorted by key.
// It also reports the element kinds of keys and values.
func canonicalDict(v reflect.Value) (Dict, Kind, Kind, error) {
	keys := v.MapKeys()
	vals := make([]reflect.Value, len(keys))
	for i, k := range keys {
		vals[i] = v.MapIndex(k)
	}
	kk, err := elementKind(keys)
	if err != nil {
		return Dict{}, 0, 0, errorf(err, "dictionary keys")
	}
	vk, err := elementKind(vals)
	if err != nil {
		return Dict{}, 0, 0, errorf(err, "dictionary values")
	}

	ck, err := scalarValues(keys)
	if err != nil {
		return Dict{}, 0, 0, err
	}
	cv, err := scalarValues(vals)
	if err != nil {
		return Dict{}, 0, 0, err
	}
	order := make([]int, len(ck))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		return compareScalars(ck[a], ck[b])
	})
	d := Dict{Keys: make([]any, len(ck)), Values: make([]any, len(cv))}
	for i, j := range order {
		d.Keys[i] = ck[j]
		d.Values[i] = cv[j]
	}
	return d, kk, vk, nil
}

// KindOfScalar returns the kind of a canonical scalar.
func KindOfScalar(v any) (Kind, bool) {
	switch v.(type) {
	case bool:
		return KindBool, true
	case int64:
		return KindInt, true
	case float64:
		return KindFloat, true
	case string:
		return KindStr, true
	default:
		return 0, false
	}
}

// ElementKind returns the common kind of canonical scalars, KindEmpty for an
// empty sequence.
func ElementKind(items []any) (Kind, error) {
	if len(items) == 0 {
		return KindEmpty, nil
	}
	first, ok := KindOfScalar(items[0])
	if !ok {
		return 0, errorf(ErrUnsupported, "element 0 of type %T is not a primitive", items[0])
	}
	for i, item := range items[1:] {
		if k, ok := KindOfScalar(item); !ok || k != first {
			return 0, errorf(ErrUnsupported, "element %d has type %T, wanted %v like element 0", i+1, item, first)
		}
	}
	return first, nil
}
