package saveable

import (
	"math"
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
)

func assignTo(t *testing.T, target any, meta MetaData, val any) error {
	t.Helper()
	return assign(reflect.ValueOf(target).Elem(), DataField{Meta: meta, Value: val})
}

func scalarMeta(k Kind) MetaData {
	return MetaData{Type: k, Name: "f", Elem: k}
}

func TestAssign_scalars(t *testing.T) {
	var i8 int8
	if err := assignTo(t, &i8, scalarMeta(KindInt), int64(-128)); err != nil || i8 != -128 {
		t.Fatalf("int8 = %v, %v, wanted -128", i8, err)
	}
	if err := assignTo(t, &i8, scalarMeta(KindInt), int64(128)); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("int8 <- 128 = %v, wanted ErrInconsistent", err)
	}

	var u uint16
	if err := assignTo(t, &u, scalarMeta(KindInt), int64(-1)); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("uint16 <- -1 = %v, wanted ErrInconsistent", err)
	}
	if err := assignTo(t, &u, scalarMeta(KindInt), int64(math.MaxUint16)); err != nil || u != math.MaxUint16 {
		t.Fatalf("uint16 = %v, %v", u, err)
	}

	var f32 float32
	if err := assignTo(t, &f32, scalarMeta(KindFloat), 1e300); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("float32 <- 1e300 = %v, wanted ErrInconsistent", err)
	}

	var b bool
	if err := assignTo(t, &b, scalarMeta(KindInt), int64(1)); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("bool <- 1 = %v, wanted ErrInconsistent", err)
	}
	var n int
	if err := assignTo(t, &n, scalarMeta(KindBool), true); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("int <- true = %v, wanted ErrInconsistent", err)
	}
}

func TestAssign_none(t *testing.T) {
	none := scalarMeta(KindNone)
	x := 5
	p := &x
	if err := assignTo(t, &p, none, nil); err != nil || p != nil {
		t.Fatalf("*int <- none = %v, %v, wanted nil", p, err)
	}
	var a any = "x"
	if err := assignTo(t, &a, none, nil); err != nil || a != nil {
		t.Fatalf("any <- none = %v, %v, wanted nil", a, err)
	}
	if err := assignTo(t, &x, none, nil); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("int <- none = %v, wanted ErrInconsistent", err)
	}
}

func TestAssign_pointer(t *testing.T) {
	var p *string
	if err := assignTo(t, &p, scalarMeta(KindStr), "hi"); err != nil || p == nil || *p != "hi" {
		t.Fatalf("*string <- hi = %v, %v", p, err)
	}
}

func TestAssign_collections(t *testing.T) {
	list := MetaData{Type: KindList, Name: "l", Elem: KindInt}
	var s []int
	if err := assignTo(t, &s, list, []any{int64(3), int64(1)}); err != nil || !reflect.DeepEqual(s, []int{3, 1}) {
		t.Fatalf("[]int = %v, %v", s, err)
	}

	tuple := MetaData{Type: KindTuple, Name: "t", Elem: KindStr}
	var arr [2]string
	if err := assignTo(t, &arr, tuple, []any{"a", "b"}); err != nil || arr != [2]string{"a", "b"} {
		t.Fatalf("[2]string = %v, %v", arr, err)
	}
	if err := assignTo(t, &arr, tuple, []any{"a"}); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("[2]string <- 1 element = %v, wanted ErrInconsistent", err)
	}

	set := MetaData{Type: KindSet, Name: "s", Elem: KindStr}
	var m map[string]struct{}
	if err := assignTo(t, &m, set, []any{"a", "b"}); err != nil || !reflect.DeepEqual(m, map[string]struct{}{"a": {}, "b": {}}) {
		t.Fatalf("set = %v, %v", m, err)
	}
	if err := assignTo(t, &s, set, []any{int64(1)}); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("[]int <- set = %v, wanted ErrInconsistent", err)
	}

	dict := MetaData{Type: KindDict, Name: "d", Elem: KindNone}
	var d map[string]float64
	val := Dict{Keys: []any{"x", "y"}, Values: []any{1.5, 2.5}}
	if err := assignTo(t, &d, dict, val); err != nil || !reflect.DeepEqual(d, map[string]float64{"x": 1.5, "y": 2.5}) {
		t.Fatalf("dict = %v, %v", d, err)
	}
	if err := assignTo(t, &m, dict, val); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("set <- dict = %v, wanted ErrInconsistent", err)
	}
	bad := Dict{Keys: []any{"x", "y"}, Values: []any{1.5}}
	if err := assignTo(t, &d, dict, bad); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("dict with missing value = %v, wanted ErrInconsistent", err)
	}
}

func TestAssign_natural(t *testing.T) {
	tests := []struct {
		meta MetaData
		val  any
		want any
	}{
		{scalarMeta(KindInt), int64(7), 7},
		{scalarMeta(KindFloat), 7.0, 7.0},
		{scalarMeta(KindBool), true, true},
		{MetaData{Type: KindList, Elem: KindStr}, []any{"a"}, []string{"a"}},
		{MetaData{Type: KindList, Elem: KindEmpty}, []any{}, []any{}},
		{MetaData{Type: KindTuple, Elem: KindInt}, []any{int64(1), int64(2)}, [2]int{1, 2}},
		{MetaData{Type: KindSet, Elem: KindBool}, []any{true}, map[bool]struct{}{true: {}}},
		{MetaData{Type: KindSet, Elem: KindEmpty}, []any{}, map[any]struct{}{}},
		{MetaData{Type: KindDict, Elem: KindNone}, Dict{Keys: []any{"a"}, Values: []any{int64(1)}}, map[string]int{"a": 1}},
		{MetaData{Type: KindDict, Elem: KindNone}, Dict{Keys: []any{}, Values: []any{}}, map[any]any{}},
	}
	for _, tt := range tests {
		var a any
		if err := assignTo(t, &a, tt.meta, tt.val); err != nil {
			t.Errorf("any <- %v failed: %v", tt.meta, err)
		} else if !reflect.DeepEqual(a, tt.want) {
			t.Errorf("any <- %v = %#v, wanted %#v", tt.meta, a, tt.want)
		}
	}
}
