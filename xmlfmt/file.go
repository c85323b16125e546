package xmlfmt

import (
	"github.com/andreyvit/saveable"
	"github.com/beevik/etree"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// RootName is the tag of the document element.
const RootName = "root"

const attrEncoding = "encoding"

type Config struct {
	// Indent pretty-prints the document with this many spaces when it is
	// written; 0 writes it compact. Indentation drops whitespace-only
	// string values.
	Indent int
	Logger *zap.Logger
}

// Storage is a saveable.Storage backed by an XML document. Write mode
// builds the tree in memory and writes the file on Close.
type Storage struct {
	path   string
	mode   saveable.Mode
	cfg    Config
	logger *zap.Logger

	doc *etree.Document
}

func New(path string, mode saveable.Mode, cfg Config) *Storage {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{path: path, mode: mode, cfg: cfg, logger: logger}
}

// NewFile is a shortcut for saveable.NewFile(New(path, mode, cfg), opt).
func NewFile(path string, mode saveable.Mode, cfg Config, opt saveable.Options) *saveable.File {
	if cfg.Logger == nil {
		cfg.Logger = opt.Logger
	}
	return saveable.NewFile(New(path, mode, cfg), opt)
}

func (s *Storage) Path() string { return s.path }

// Document returns the open document, or nil.
func (s *Storage) Document() *etree.Document { return s.doc }

func (s *Storage) Open() (saveable.Node, error) {
	if s.doc != nil {
		return nil, errors.Newf("xmlfmt: %s is already open", s.path)
	}
	var root *etree.Element
	switch s.mode {
	case saveable.Write:
		doc := etree.NewDocument()
		// escape \r so the parser does not fold it into \n
		doc.WriteSettings.CanonicalText = true
		doc.WriteSettings.CanonicalAttrVal = true
		doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
		root = doc.CreateElement(RootName)
		root.CreateAttr(attrEncoding, saveable.TextEncoding)
		s.doc = doc
	case saveable.Read:
		doc := etree.NewDocument()
		if err := doc.ReadFromFile(s.path); err != nil {
			return nil, errors.Wrapf(err, "xmlfmt: %s", s.path)
		}
		root = doc.Root()
		if root == nil || root.Tag != RootName {
			return nil, errors.Wrapf(saveable.ErrMissingMeta, "xmlfmt: %s has no %q element", s.path, RootName)
		}
		if enc := root.SelectAttrValue(attrEncoding, saveable.TextEncoding); enc != saveable.TextEncoding {
			return nil, errors.Wrapf(saveable.ErrInconsistent, "xmlfmt: unsupported text encoding %q", enc)
		}
		s.doc = doc
	default:
		return nil, errors.Newf("xmlfmt: unknown file mode %q", s.mode)
	}
	s.logger.Debug("xmlfmt: opened", zap.String("path", s.path), zap.String("mode", string(s.mode)))
	return newNode(RootName, nil, root), nil
}

// Close writes the document in write mode and releases it.
func (s *Storage) Close() error {
	if s.doc == nil {
		return errors.Wrapf(saveable.ErrNotOpen, "xmlfmt: %s has not been opened", s.path)
	}
	doc := s.doc
	s.doc = nil
	if s.mode != saveable.Write {
		return nil
	}
	if s.cfg.Indent > 0 {
		doc.Indent(s.cfg.Indent)
	}
	if err := doc.WriteToFile(s.path); err != nil {
		return errors.Wrapf(err, "xmlfmt: writing %s", s.path)
	}
	s.logger.Debug("xmlfmt: written", zap.String("path", s.path))
	return nil
}
