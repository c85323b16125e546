// Package formats opens a saveable.File in one of the supported storage
// formats, picked by name or by file extension.
package formats

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/andreyvit/saveable"
	"github.com/andreyvit/saveable/boltfmt"
	"github.com/andreyvit/saveable/sqlfmt"
	"github.com/andreyvit/saveable/xmlfmt"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

type Format string

const (
	Bolt   Format = "bolt"
	SQLite Format = "sqlite"
	XML    Format = "xml"
)

var ErrUnknownFormat = errors.New("unknown format")

var extensions = map[string]Format{
	".bolt":    Bolt,
	".db":      Bolt,
	".sqlite":  SQLite,
	".sqlite3": SQLite,
	".xml":     XML,
}

// All lists the supported formats.
func All() []Format {
	return []Format{Bolt, SQLite, XML}
}

// Extensions lists the file extensions recognized for f, sorted.
func Extensions(f Format) []string {
	exts := lo.Keys(lo.PickBy(extensions, func(_ string, v Format) bool { return v == f }))
	slices.Sort(exts)
	return exts
}

// Detect picks the format from the extension of path.
func Detect(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	return "", errors.Wrapf(ErrUnknownFormat, "cannot tell the format of %q", path)
}

// Parse validates a format name.
func Parse(name string) (Format, error) {
	f := Format(strings.ToLower(name))
	if lo.Contains(All(), f) {
		return f, nil
	}
	return "", errors.Wrapf(ErrUnknownFormat, "%q", name)
}

// Storage returns the storage for path in format f.
func Storage(f Format, path string, mode saveable.Mode, opt saveable.Options) (saveable.Storage, error) {
	switch f {
	case Bolt:
		return boltfmt.New(path, mode, boltfmt.Config{Logger: opt.Logger}), nil
	case SQLite:
		return sqlfmt.New(path, mode, sqlfmt.Config{Logger: opt.Logger}), nil
	case XML:
		return xmlfmt.New(path, mode, xmlfmt.Config{Logger: opt.Logger}), nil
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", string(f))
	}
}

// Open creates a File for path, picking the format from its extension. The
// file still has to be opened.
func Open(path string, mode saveable.Mode, opt saveable.Options) (*saveable.File, error) {
	f, err := Detect(path)
	if err != nil {
		return nil, err
	}
	return OpenFormat(f, path, mode, opt)
}

// OpenFormat is like Open with an explicit format.
func OpenFormat(f Format, path string, mode saveable.Mode, opt saveable.Options) (*saveable.File, error) {
	st, err := Storage(f, path, mode, opt)
	if err != nil {
		return nil, err
	}
	return saveable.NewFile(st, opt), nil
}

// Save writes obj to path in the format its extension names.
func Save(path string, obj any, opt saveable.Options) error {
	f, err := Detect(path)
	if err != nil {
		return err
	}
	st, err := Storage(f, path, saveable.Write, opt)
	if err != nil {
		return err
	}
	return saveable.SaveTo(st, obj, opt)
}

// Load fills obj from path in the format its extension names.
func Load(path string, obj any, opt saveable.Options) error {
	f, err := Detect(path)
	if err != nil {
		return err
	}
	st, err := Storage(f, path, saveable.Read, opt)
	if err != nil {
		return err
	}
	return saveable.LoadFrom(st, obj, opt)
}
