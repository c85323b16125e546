package fixtures

import (
	"reflect"
	"strings"
	"testing"

	"github.com/andreyvit/saveable"
	"github.com/cockroachdb/errors"
)

// Opener returns a fresh Storage over one backing file in the given mode.
type Opener func(mode saveable.Mode) saveable.Storage

func must(t testing.TB, err error, what string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s failed: %v", what, err)
	}
}

func mustFail(t testing.TB, err, wanted error, what string) {
	t.Helper()
	if !errors.Is(err, wanted) {
		t.Fatalf("%s = %v, wanted %v", what, err, wanted)
	}
}

func deepEqual(t testing.TB, a, e any, what string) {
	t.Helper()
	if !reflect.DeepEqual(a, e) {
		t.Errorf("** %s = %#v\nwanted: %#v", what, a, e)
	}
}

// roundTrip saves in and loads it back into out through fresh storages.
func roundTrip(t testing.TB, open Opener, in, out any) {
	t.Helper()
	must(t, saveable.SaveTo(open(saveable.Write), in, saveable.Options{}), "SaveTo")
	must(t, saveable.LoadFrom(open(saveable.Read), out, saveable.Options{}), "LoadFrom")
}

// RunStorageSuite checks the round-trip behavior every format must share.
// newOpener is called once per subtest and must point at a new file.
func RunStorageSuite(t *testing.T, newOpener func(t *testing.T) Opener) {
	t.Run("everything", func(t *testing.T) {
		want := NewEverything()
		got := &Everything{Skipped: "kept"}
		roundTrip(t, newOpener(t), want, got)
		if got.Skipped != "kept" {
			t.Errorf("Skipped = %q, wanted it untouched", got.Skipped)
		}
		got.Skipped = ""
		deepEqual(t, got, want, "Everything")
	})

	t.Run("nested person", func(t *testing.T) {
		open := newOpener(t)
		must(t, saveable.SaveTo(open(saveable.Write), Homer(), saveable.Options{}), "SaveTo")

		err := saveable.With(open(saveable.Read), saveable.Options{}, func(f *saveable.File) error {
			children, err := f.Root().Children()
			must(t, err, "Children")
			if len(children) != 1 || children[0].Name() != "address" {
				t.Fatalf("children = %v, wanted just address", children)
			}
			var p Person
			must(t, f.Load(&p), "Load")
			deepEqual(t, &p, Homer(), "Person")
			return nil
		})
		must(t, err, "With")
	})

	t.Run("case-insensitive names", func(t *testing.T) {
		var out CaseNames
		roundTrip(t, newOpener(t), NewCaseNames(), &out)
		deepEqual(t, &out, NewCaseNames(), "CaseNames")
	})

	t.Run("line endings", func(t *testing.T) {
		var out LineEndings
		roundTrip(t, newOpener(t), NewLineEndings(), &out)
		deepEqual(t, &out, NewLineEndings(), "LineEndings")
	})

	t.Run("none zero empty", func(t *testing.T) {
		in := &NoneZeroEmpty{Empty: []int{}, ZeroAny: 0, EmptyAny: []any{}}
		zero := 5
		out := &NoneZeroEmpty{None: &zero, Zero: 5, NoneAny: "x", ZeroAny: "x"}
		roundTrip(t, newOpener(t), in, out)
		if out.None != nil {
			t.Errorf("None = %v, wanted nil", *out.None)
		}
		if out.Zero != 0 {
			t.Errorf("Zero = %v, wanted 0", out.Zero)
		}
		if out.Empty == nil || len(out.Empty) != 0 {
			t.Errorf("Empty = %#v, wanted an empty non-nil slice", out.Empty)
		}
		if out.NoneAny != nil {
			t.Errorf("NoneAny = %#v, wanted nil", out.NoneAny)
		}
		deepEqual(t, out.ZeroAny, 0, "ZeroAny")
		deepEqual(t, out.EmptyAny, []any{}, "EmptyAny")
	})

	t.Run("type fidelity", func(t *testing.T) {
		in := &Fidelity{True: true, One: 1, Ones: []any{true, true}}
		var out Fidelity
		roundTrip(t, newOpener(t), in, &out)
		deepEqual(t, out.True, true, "True")
		deepEqual(t, out.One, 1, "One")
		deepEqual(t, out.Ones, []any{true, true}, "Ones")
	})

	t.Run("dictionary order", func(t *testing.T) {
		open := newOpener(t)
		in := &Scores{Scores: map[string]int{"b": 2, "c": 3, "a": 1}}
		must(t, saveable.SaveTo(open(saveable.Write), in, saveable.Options{}), "SaveTo")

		err := saveable.With(open(saveable.Read), saveable.Options{}, func(f *saveable.File) error {
			fields, err := saveable.ReadAttributes(f.Root())
			must(t, err, "ReadAttributes")
			if len(fields) != 1 {
				t.Fatalf("fields = %v, wanted one", fields)
			}
			if a, e := fields[0].Meta, (saveable.MetaData{Type: saveable.KindDict, Name: "Scores", Elem: saveable.KindNone}); a != e {
				t.Errorf("Meta = %v, wanted %v", a, e)
			}
			d, ok := fields[0].Value.(saveable.Dict)
			if !ok {
				t.Fatalf("value is %T, wanted saveable.Dict", fields[0].Value)
			}
			deepEqual(t, d.Keys, []any{"a", "b", "c"}, "Keys")
			deepEqual(t, d.Values, []any{int64(1), int64(2), int64(3)}, "Values")

			var out Scores
			must(t, f.Load(&out), "Load")
			deepEqual(t, &out, in, "Scores")
			return nil
		})
		must(t, err, "With")
	})

	t.Run("save before open", func(t *testing.T) {
		f := saveable.NewFile(newOpener(t)(saveable.Write), saveable.Options{})
		mustFail(t, f.Save(Homer()), saveable.ErrNotOpen, "Save")
		mustFail(t, f.Load(&Person{}), saveable.ErrNotOpen, "Load")
		mustFail(t, f.Close(), saveable.ErrNotOpen, "Close")
	})

	t.Run("mixed list", func(t *testing.T) {
		open := newOpener(t)
		in := &MixedList{Count: 3, Mixed: []any{1, "a"}}
		err := saveable.SaveTo(open(saveable.Write), in, saveable.Options{})
		mustFail(t, err, saveable.ErrUnsupported, "SaveTo")
		if !strings.Contains(err.Error(), "Mixed") {
			t.Errorf("error %q does not name the field", err)
		}
		ExpectNothingStored(t, open)
	})

	t.Run("unknown attribute", func(t *testing.T) {
		open := newOpener(t)
		must(t, saveable.SaveTo(open(saveable.Write), Homer(), saveable.Options{}), "SaveTo")

		var out NameOnly
		err := saveable.LoadFrom(open(saveable.Read), &out, saveable.Options{})
		mustFail(t, err, saveable.ErrUnknownAttribute, "LoadFrom")
		if !strings.Contains(err.Error(), "address") {
			t.Errorf("error %q does not name the field", err)
		}
	})

	t.Run("incomplete dictionary", func(t *testing.T) {
		open := newOpener(t)
		st := open(saveable.Write)
		root, err := st.Open()
		must(t, err, "Open")
		meta, err := saveable.NewMetaData(saveable.KindDict, saveable.RoleDictKeys, "Scores", saveable.KindStr)
		must(t, err, "NewMetaData")
		must(t, root.WriteIterable(saveable.DataField{Meta: meta, Value: []any{"a", "b"}}), "WriteIterable")
		must(t, st.Close(), "Close")

		st = open(saveable.Read)
		root, err = st.Open()
		must(t, err, "Open")
		defer st.Close()
		_, err = saveable.ReadAttributes(root)
		mustFail(t, err, saveable.ErrIncompleteDict, "ReadAttributes")
		if !strings.Contains(err.Error(), "Scores") {
			t.Errorf("error %q does not name the dictionary", err)
		}
	})

	t.Run("declared empty", func(t *testing.T) {
		st := newOpener(t)(saveable.Write)
		root, err := st.Open()
		must(t, err, "Open")
		defer st.Close()

		empty, err := saveable.NewMetaData(saveable.KindList, saveable.RoleAttribute, "Numbers", saveable.KindEmpty)
		must(t, err, "NewMetaData")
		err = root.WriteIterable(saveable.DataField{Meta: empty, Value: []any{int64(1)}})
		mustFail(t, err, saveable.ErrInconsistent, "WriteIterable(elements declared empty)")

		ints, err := saveable.NewMetaData(saveable.KindList, saveable.RoleAttribute, "Other", saveable.KindInt)
		must(t, err, "NewMetaData")
		err = root.WriteIterable(saveable.DataField{Meta: ints, Value: []any{}})
		mustFail(t, err, saveable.ErrInconsistent, "WriteIterable(no elements declared int)")
	})

	t.Run("none into non-nullable", func(t *testing.T) {
		open := newOpener(t)
		must(t, saveable.SaveTo(open(saveable.Write), &Nullable{}, saveable.Options{}), "SaveTo")

		var out NotNullable
		err := saveable.LoadFrom(open(saveable.Read), &out, saveable.Options{})
		mustFail(t, err, saveable.ErrInconsistent, "LoadFrom")
	})
}

// ExpectNothingStored checks that the file behind open has no fields and no
// nested objects.
func ExpectNothingStored(t testing.TB, open Opener) {
	t.Helper()
	err := saveable.With(open(saveable.Read), saveable.Options{}, func(f *saveable.File) error {
		fields, err := saveable.ReadAttributes(f.Root())
		must(t, err, "ReadAttributes")
		if len(fields) != 0 {
			t.Errorf("fields = %v, wanted none", fields)
		}
		children, err := f.Root().Children()
		must(t, err, "Children")
		if len(children) != 0 {
			t.Errorf("children = %d, wanted none", len(children))
		}
		return nil
	})
	must(t, err, "With")
}
