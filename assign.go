package saveable

import (
	"math"
	"reflect"
)

var anyType = reflect.TypeOf((*any)(nil)).Elem()

func assign(dst reflect.Value, f DataField) error {
	return assignValue(dst, f.Meta, f.Value)
}

func assignValue(dst reflect.Value, meta MetaData, val any) error {
	if dst.Kind() == reflect.Interface {
		if val == nil {
			dst.SetZero()
			return nil
		}
		nv, err := naturalValue(meta, val)
		if err != nil {
			return err
		}
		if !nv.Type().AssignableTo(dst.Type()) {
			return errorf(ErrInconsistent, "cannot store %v in %v", nv.Type(), dst.Type())
		}
		dst.Set(nv)
		return nil
	}

	if val == nil {
		if dst.Kind() == reflect.Pointer {
			dst.SetZero()
			return nil
		}
		return errorf(ErrInconsistent, "cannot store none in non-nullable %v", dst.Type())
	}
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := assignValue(p.Elem(), meta, val); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}

	switch meta.Type {
	case KindBool, KindInt, KindFloat, KindStr:
		return setScalar(dst, val)
	case KindList:
		items, err := itemsOf(val)
		if err != nil {
			return err
		}
		if dst.Kind() != reflect.Slice {
			return errorf(ErrInconsistent, "cannot store list in %v", dst.Type())
		}
		s := reflect.MakeSlice(dst.Type(), len(items), len(items))
		if err := setScalars(s, items); err != nil {
			return err
		}
		dst.Set(s)
		return nil
	case KindTuple:
		items, err := itemsOf(val)
		if err != nil {
			return err
		}
		if dst.Kind() != reflect.Array {
			return errorf(ErrInconsistent, "cannot store tuple in %v", dst.Type())
		}
		if dst.Len() != len(items) {
			return errorf(ErrInconsistent, "tuple of %d elements does not fit %v", len(items), dst.Type())
		}
		a := reflect.New(dst.Type()).Elem()
		if err := setScalars(a, items); err != nil {
			return err
		}
		dst.Set(a)
		return nil
	case KindSet:
		items, err := itemsOf(val)
		if err != nil {
			return err
		}
		if !isSetType(dst.Type()) {
			return errorf(ErrInconsistent, "cannot store set in %v", dst.Type())
		}
		m := reflect.MakeMapWithSize(dst.Type(), len(items))
		present := reflect.ValueOf(struct{}{})
		for _, item := range items {
			k := reflect.New(dst.Type().Key()).Elem()
			if err := setScalar(k, item); err != nil {
				return err
			}
			m.SetMapIndex(k, present)
		}
		dst.Set(m)
		return nil
	case KindDict:
		d, ok := val.(Dict)
		if !ok {
			return errorf(ErrInconsistent, "dictionary value is %T", val)
		}
		if dst.Kind() != reflect.Map || isSetType(dst.Type()) {
			return errorf(ErrInconsistent, "cannot store dictionary in %v", dst.Type())
		}
		if len(d.Keys) != len(d.Values) {
			return errorf(ErrInconsistent, "dictionary has %d keys but %d values", len(d.Keys), len(d.Values))
		}
		m := reflect.MakeMapWithSize(dst.Type(), len(d.Keys))
		for i := range d.Keys {
			k := reflect.New(dst.Type().Key()).Elem()
			if err := setScalar(k, d.Keys[i]); err != nil {
				return err
			}
			v := reflect.New(dst.Type().Elem()).Elem()
			if err := setScalar(v, d.Values[i]); err != nil {
				return err
			}
			m.SetMapIndex(k, v)
		}
		dst.Set(m)
		return nil
	default:
		return errorf(ErrInconsistent, "cannot load %v into %v", meta.Type, dst.Type())
	}
}

func itemsOf(val any) ([]any, error) {
	items, ok := val.([]any)
	if !ok {
		return nil, errorf(ErrInconsistent, "collection value is %T", val)
	}
	return items, nil
}

// setScalars fills a slice or array of the same length as items.
func setScalars(seq reflect.Value, items []any) error {
	for i, item := range items {
		if err := setScalar(seq.Index(i), item); err != nil {
			return err
		}
	}
	return nil
}

func setScalar(dst reflect.Value, val any) error {
	if dst.Kind() == reflect.Interface {
		dst.Set(reflect.ValueOf(naturalScalar(val)))
		return nil
	}
	switch val := val.(type) {
	case bool:
		if dst.Kind() == reflect.Bool {
			dst.SetBool(val)
			return nil
		}
	case int64:
		switch dst.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if dst.OverflowInt(val) {
				return errorf(ErrInconsistent, "%d overflows %v", val, dst.Type())
			}
			dst.SetInt(val)
			return nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if val < 0 || dst.OverflowUint(uint64(val)) {
				return errorf(ErrInconsistent, "%d overflows %v", val, dst.Type())
			}
			dst.SetUint(uint64(val))
			return nil
		}
	case float64:
		switch dst.Kind() {
		case reflect.Float32, reflect.Float64:
			if !math.IsInf(val, 0) && !math.IsNaN(val) && dst.OverflowFloat(val) {
				return errorf(ErrInconsistent, "%g overflows %v", val, dst.Type())
			}
			dst.SetFloat(val)
			return nil
		}
	case string:
		if dst.Kind() == reflect.String {
			dst.SetString(val)
			return nil
		}
	}
	return errorf(ErrInconsistent, "cannot store %T in %v", val, dst.Type())
}

func naturalScalar(val any) any {
	if i, ok := val.(int64); ok && i >= math.MinInt && i <= math.MaxInt {
		return int(i)
	}
	return val
}

func naturalType(k Kind) reflect.Type {
	switch k {
	case KindBool:
		return reflect.TypeOf(false)
	case KindInt:
		return reflect.TypeOf(0)
	case KindFloat:
		return reflect.TypeOf(0.0)
	case KindStr:
		return reflect.TypeOf("")
	default:
		return anyType
	}
}

// naturalValue builds the plain Go value a field of type any receives.
func naturalValue(meta MetaData, val any) (reflect.Value, error) {
	switch meta.Type {
	case KindBool, KindInt, KindFloat, KindStr:
		return reflect.ValueOf(naturalScalar(val)), nil
	case KindList, KindTuple, KindSet:
		items, err := itemsOf(val)
		if err != nil {
			return reflect.Value{}, err
		}
		ek, err := ElementKind(items)
		if err != nil {
			return reflect.Value{}, err
		}
		et := naturalType(ek)
		var t reflect.Type
		switch meta.Type {
		case KindList:
			t = reflect.SliceOf(et)
		case KindTuple:
			t = reflect.ArrayOf(len(items), et)
		default:
			t = reflect.MapOf(et, emptyStructType)
		}
		v := reflect.New(t).Elem()
		if err := assignValue(v, meta, val); err != nil {
			return reflect.Value{}, err
		}
		return v, nil
	case KindDict:
		d, ok := val.(Dict)
		if !ok {
			return reflect.Value{}, errorf(ErrInconsistent, "dictionary value is %T", val)
		}
		kk, err := ElementKind(d.Keys)
		if err != nil {
			return reflect.Value{}, err
		}
		vk, err := ElementKind(d.Values)
		if err != nil {
			return reflect.Value{}, err
		}
		v := reflect.New(reflect.MapOf(naturalType(kk), naturalType(vk))).Elem()
		if err := assignValue(v, meta, val); err != nil {
			return reflect.Value{}, err
		}
		return v, nil
	default:
		return reflect.Value{}, errorf(ErrInconsistent, "cannot load %v into an interface", meta.Type)
	}
}
