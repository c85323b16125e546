package saveable

import (
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestClassify(t *testing.T) {
	var nilInt *int
	var nilAny any
	one := 1
	tests := []struct {
		v    any
		kind Kind
	}{
		{true, KindBool},
		{42, KindInt},
		{uint8(7), KindInt},
		{int64(-1), KindInt},
		{float32(1.5), KindFloat},
		{2.5, KindFloat},
		{"s", KindStr},
		{nilInt, KindNone},
		{&one, KindInt},
		{[]int{}, KindList},
		{[]any{"a"}, KindList},
		{[3]int{}, KindTuple},
		{map[string]struct{}{}, KindSet},
		{map[string]int{}, KindDict},
		{struct{ X int }{}, KindObject},
		{&struct{ X int }{}, KindObject},
	}
	for _, tt := range tests {
		a, err := Classify(reflect.ValueOf(tt.v))
		if err != nil {
			t.Errorf("Classify(%T) failed: %v", tt.v, err)
		} else if a != tt.kind {
			t.Errorf("Classify(%T) = %v, wanted %v", tt.v, a, tt.kind)
		}
	}

	if a, err := Classify(reflect.ValueOf(&nilAny).Elem()); err != nil || a != KindNone {
		t.Errorf("Classify(nil any) = %v, %v, wanted none", a, err)
	}
	for _, v := range []any{make(chan int), func() {}, complex(1, 2)} {
		if _, err := Classify(reflect.ValueOf(v)); !errors.Is(err, ErrUnsupported) {
			t.Errorf("Classify(%T) = %v, wanted ErrUnsupported", v, err)
		}
	}
}

func TestElementKind(t *testing.T) {
	tests := []struct {
		items []any
		kind  Kind
		ok    bool
	}{
		{nil, KindEmpty, true},
		{[]any{}, KindEmpty, true},
		{[]any{int64(1), int64(2)}, KindInt, true},
		{[]any{"a"}, KindStr, true},
		{[]any{true, false}, KindBool, true},
		{[]any{int64(1), "a"}, 0, false},
		{[]any{int64(1), 1.0}, 0, false},
		{[]any{nil}, 0, false},
		{[]any{[]any{}}, 0, false},
	}
	for _, tt := range tests {
		a, err := ElementKind(tt.items)
		if !tt.ok {
			if !errors.Is(err, ErrUnsupported) {
				t.Errorf("ElementKind(%#v) = %v, %v, wanted ErrUnsupported", tt.items, a, err)
			}
			continue
		}
		if err != nil || a != tt.kind {
			t.Errorf("ElementKind(%#v) = %v, %v, wanted %v", tt.items, a, err, tt.kind)
		}
	}
}

func TestElementKind_reflect(t *testing.T) {
	k, err := elementKind(sequenceElems(reflect.ValueOf([]any{1, 2})))
	if err != nil || k != KindInt {
		t.Fatalf("elementKind([1 2]) = %v, %v, wanted int", k, err)
	}
	// same kind but different Go types is not uniform
	_, err = elementKind(sequenceElems(reflect.ValueOf([]any{1, int8(2)})))
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("elementKind([int int8]) = %v, wanted ErrUnsupported", err)
	}
	_, err = elementKind(sequenceElems(reflect.ValueOf([]any{1, "a"})))
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("elementKind([1 a]) = %v, wanted ErrUnsupported", err)
	}
	_, err = elementKind(sequenceElems(reflect.ValueOf([][]int{{1}})))
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("elementKind([[1]]) = %v, wanted ErrUnsupported", err)
	}
}

func TestCanonicalDict_sorted(t *testing.T) {
	d, kk, vk, err := canonicalDict(reflect.ValueOf(map[string]int{"b": 2, "c": 3, "a": 1}))
	if err != nil {
		t.Fatalf("canonicalDict failed: %v", err)
	}
	if kk != KindStr || vk != KindInt {
		t.Fatalf("canonicalDict kinds = %v, %v, wanted str, int", kk, vk)
	}
	if a, e := d.Keys, []any{"a", "b", "c"}; !reflect.DeepEqual(a, e) {
		t.Fatalf("keys = %v, wanted %v", a, e)
	}
	if a, e := d.Values, []any{int64(1), int64(2), int64(3)}; !reflect.DeepEqual(a, e) {
		t.Fatalf("values = %v, wanted %v", a, e)
	}
	if d.Len() != 3 {
		t.Fatalf("Len() = %d, wanted 3", d.Len())
	}

	_, _, _, err = canonicalDict(reflect.ValueOf(map[string]any{"a": 1, "b": "x"}))
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("canonicalDict(mixed values) = %v, wanted ErrUnsupported", err)
	}
}

func TestCanonicalSet_sorted(t *testing.T) {
	items, err := canonicalSet(reflect.ValueOf(map[bool]struct{}{true: {}, false: {}}))
	if err != nil {
		t.Fatalf("canonicalSet failed: %v", err)
	}
	if a, e := items, []any{false, true}; !reflect.DeepEqual(a, e) {
		t.Fatalf("canonicalSet = %v, wanted %v", a, e)
	}
	items, err = canonicalSet(reflect.ValueOf(map[float64]struct{}{2.5: {}, -1: {}}))
	if err != nil {
		t.Fatalf("canonicalSet failed: %v", err)
	}
	if a, e := items, []any{-1.0, 2.5}; !reflect.DeepEqual(a, e) {
		t.Fatalf("canonicalSet = %v, wanted %v", a, e)
	}
}

func TestScalarValue_uint_overflow(t *testing.T) {
	if _, err := scalarValue(reflect.ValueOf(uint64(1 << 63))); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("scalarValue(1<<63) = %v, wanted ErrUnsupported", err)
	}
	v, err := scalarValue(reflect.ValueOf(uint64(1<<63 - 1)))
	if err != nil || v != int64(1<<63-1) {
		t.Fatalf("scalarValue(MaxInt64) = %v, %v", v, err)
	}
}
