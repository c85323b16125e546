package saveable

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Storage is a backing store that hands out a root node while open. One
// handle is held per open Storage; nodes descended from the root share it
// and never close it.
type Storage interface {
	Open() (Node, error)
	Close() error
}

// File saves and loads objects through a Storage.
type File struct {
	storage Storage
	root    Node
	opt     Options
	engine  *engine
}

func NewFile(st Storage, opt Options) *File {
	return &File{
		storage: st,
		opt:     opt,
		engine:  newEngine(opt),
	}
}

func (f *File) Storage() Storage { return f.storage }

// Root returns the root node, or nil before Open.
func (f *File) Root() Node { return f.root }

func (f *File) Open() error {
	root, err := f.storage.Open()
	if err != nil {
		return err
	}
	f.root = root
	f.opt.logger().Debug("opened", zap.String("root", root.Name()))
	return nil
}

// Save writes every field of obj into the root node. The whole object graph
// is classified before the first write, so shape errors leave the store
// untouched.
func (f *File) Save(obj any) error {
	if f.root == nil {
		return ErrNotOpen
	}
	v, err := structValue(obj)
	if err != nil {
		return err
	}
	fields, err := iterFields(v)
	if err != nil {
		return err
	}
	validator, _ := f.root.(FieldValidator)
	if err := validateTree(validator, f.root.Name(), fields); err != nil {
		return err
	}
	for _, df := range fields {
		if err := f.engine.writeData(f.root, df); err != nil {
			return err
		}
	}
	return nil
}

// validateTree walks every nested object of fields, letting v reject what
// the backend cannot store. v may be nil.
func validateTree(v FieldValidator, node string, fields []DataField) error {
	for _, df := range fields {
		if v != nil {
			if err := v.ValidateField(node, df); err != nil {
				return err
			}
		}
		obj, ok := df.Value.(Object)
		if !ok {
			continue
		}
		nested, err := iterFields(obj.v)
		if err != nil {
			return err
		}
		if err := validateTree(v, df.Meta.Name, nested); err != nil {
			return err
		}
	}
	return nil
}

// Load fills obj, a pointer to a struct, from the root node.
func (f *File) Load(obj any) error {
	if f.root == nil {
		return ErrNotOpen
	}
	return f.engine.load(f.root, obj)
}

// Close releases the storage handle. It is safe to call after a failed
// Save or Load; calling it before Open returns ErrNotOpen.
func (f *File) Close() error {
	if f.root == nil {
		return ErrNotOpen
	}
	f.root = nil
	err := f.storage.Close()
	f.opt.logger().Debug("closed", zap.Error(err))
	return err
}

// With opens st, runs fn and always closes st afterwards. The first error
// wins; a close error after a failed fn is attached as a secondary error.
func With(st Storage, opt Options, fn func(f *File) error) (err error) {
	f := NewFile(st, opt)
	if err := f.Open(); err != nil {
		return err
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		} else if cerr != nil {
			err = errors.WithSecondaryError(err, cerr)
		}
	}()
	return fn(f)
}

func SaveTo(st Storage, obj any, opt Options) error {
	return With(st, opt, func(f *File) error {
		return f.Save(obj)
	})
}

func LoadFrom(st Storage, obj any, opt Options) error {
	return With(st, opt, func(f *File) error {
		return f.Load(obj)
	})
}
