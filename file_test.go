package saveable

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeStorage struct {
	root     *fakeNode
	opened   int
	closed   int
	openErr  error
	closeErr error
}

func (s *fakeStorage) Open() (Node, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opened++
	if s.root == nil {
		s.root = newFakeNode("root", nil)
	}
	return s.root, nil
}

func (s *fakeStorage) Close() error {
	s.closed++
	return s.closeErr
}

func TestFile_not_open(t *testing.T) {
	f := NewFile(&fakeStorage{}, Options{})
	if f.Root() != nil {
		t.Fatalf("Root() before Open = %v, wanted nil", f.Root())
	}
	if err := f.Save(newEngineSample()); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Save = %v, wanted ErrNotOpen", err)
	}
	if err := f.Load(&engineSample{}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Load = %v, wanted ErrNotOpen", err)
	}
	if err := f.Close(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Close = %v, wanted ErrNotOpen", err)
	}
}

func TestFile_save_load(t *testing.T) {
	st := &fakeStorage{}
	want := newEngineSample()
	if err := SaveTo(st, want, Options{}); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	got := &engineSample{}
	if err := LoadFrom(st, got, Options{}); err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if got.Name != want.Name || got.Scores["b"] != 2 || got.Work.City != "Home" {
		t.Fatalf("LoadFrom = %+v, wanted %+v", got, want)
	}
	if st.opened != 2 || st.closed != 2 {
		t.Fatalf("opened/closed = %d/%d, wanted 2/2", st.opened, st.closed)
	}
}

func TestFile_close_twice(t *testing.T) {
	st := &fakeStorage{}
	f := NewFile(st, Options{})
	if err := f.Open(); err != nil {
		t.Fatal(err)
	}
	if f.Storage() != Storage(st) {
		t.Fatalf("Storage() is not the wrapped storage")
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("second Close = %v, wanted ErrNotOpen", err)
	}
	if st.closed != 1 {
		t.Fatalf("closed = %d, wanted 1", st.closed)
	}
}

func TestSave_validates_before_writing(t *testing.T) {
	type bad struct {
		Ok   string `save:"ok"`
		Deep struct {
			Mixed []any `save:"mixed"`
		} `save:"deep"`
	}
	in := &bad{Ok: "fine"}
	in.Deep.Mixed = []any{1, "two"}

	st := &fakeStorage{}
	err := SaveTo(st, in, Options{})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("SaveTo = %v, wanted ErrUnsupported", err)
	}
	if len(st.root.entries) != 0 || len(st.root.children) != 0 {
		t.Fatalf("failed Save stored %d entries and %d children", len(st.root.entries), len(st.root.children))
	}
	if st.closed != 1 {
		t.Fatalf("closed = %d, wanted 1", st.closed)
	}
}

func TestSave_field_validator(t *testing.T) {
	var seen []string
	root := newFakeNode("root", nil)
	root.validate = func(node string, f DataField) error {
		seen = append(seen, node+"."+f.Meta.Name)
		if f.Meta.Name == "city" && f.Value == "Nowhere" {
			return fieldErrf(node, f.Meta.Name, ErrUnsupported, "rejected")
		}
		return nil
	}
	st := &fakeStorage{root: root}

	in := &struct {
		Name string        `save:"name"`
		Home engineAddress `save:"home"`
	}{Name: "Abe", Home: engineAddress{City: "Nowhere"}}
	err := SaveTo(st, in, Options{})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("SaveTo = %v, wanted ErrUnsupported", err)
	}
	if a, e := strings.Join(seen, " "), "root.name root.home home.city"; a != e {
		t.Fatalf("validated %q, wanted %q", a, e)
	}
	if len(root.entries) != 0 || len(root.children) != 0 {
		t.Fatalf("rejected Save stored %d entries and %d children", len(root.entries), len(root.children))
	}

	in.Home.City = "Springfield"
	if err := SaveTo(st, in, Options{}); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	if len(root.entries) != 1 || len(root.children) != 1 {
		t.Fatalf("stored %d entries and %d children, wanted 1 and 1", len(root.entries), len(root.children))
	}
}

func TestSave_non_struct(t *testing.T) {
	err := SaveTo(&fakeStorage{}, 42, Options{})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("SaveTo(42) = %v, wanted ErrUnsupported", err)
	}
}

func TestWith_errors(t *testing.T) {
	openErr := errors.New("cannot open")
	st := &fakeStorage{openErr: openErr}
	called := false
	err := With(st, Options{}, func(f *File) error {
		called = true
		return nil
	})
	if !errors.Is(err, openErr) || called || st.closed != 0 {
		t.Fatalf("With(open failure) = %v, called=%v, closed=%d", err, called, st.closed)
	}

	closeErr := errors.New("cannot close")
	st = &fakeStorage{closeErr: closeErr}
	if err := With(st, Options{}, func(f *File) error { return nil }); !errors.Is(err, closeErr) {
		t.Fatalf("With(close failure) = %v, wanted %v", err, closeErr)
	}

	fnErr := errors.New("callback failed")
	st = &fakeStorage{closeErr: closeErr}
	err = With(st, Options{}, func(f *File) error { return fnErr })
	if !errors.Is(err, fnErr) {
		t.Fatalf("With(both failures) = %v, wanted %v", err, fnErr)
	}
	if errors.Is(err, closeErr) {
		t.Fatalf("close error must be secondary, got %v", err)
	}
	if full := fmt.Sprintf("%+v", err); !strings.Contains(full, "cannot close") {
		t.Fatalf("%%+v = %q, wanted the close error attached", full)
	}
	if st.closed != 1 {
		t.Fatalf("closed = %d, wanted 1", st.closed)
	}
}

func TestFile_verbose_logging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	opt := Options{Logger: zap.New(core), Verbose: true}
	st := &fakeStorage{}
	if err := SaveTo(st, &engineAddress{City: "Ogdenville"}, opt); err != nil {
		t.Fatal(err)
	}
	var out engineAddress
	if err := LoadFrom(st, &out, opt); err != nil {
		t.Fatal(err)
	}
	for _, msg := range []string{"opened", "write", "read", "closed"} {
		if n := logs.FilterMessage(msg).Len(); n == 0 {
			t.Errorf("no %q log entries", msg)
		}
	}
}
