package boltfmt

import (
	"io/fs"
	"os"
	"time"

	"github.com/andreyvit/saveable"
	"github.com/cockroachdb/errors"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// RootName is the top-level group that holds the saved object.
const RootName = "root"

type Config struct {
	// Timeout for acquiring the file lock; defaults to 10 seconds.
	Timeout   time.Duration
	MmapSize  int
	IsTesting bool
	Logger    *zap.Logger
}

// Storage is a saveable.Storage backed by a Bolt file or an in-memory
// container. Write mode starts from an empty root.
type Storage struct {
	path   string
	mode   saveable.Mode
	cfg    Config
	mem    *Mem
	logger *zap.Logger

	c  container
	tx containerTx
}

func New(path string, mode saveable.Mode, cfg Config) *Storage {
	return &Storage{path: path, mode: mode, cfg: cfg, logger: loggerOr(cfg.Logger)}
}

func NewInMemory(mem *Mem, mode saveable.Mode) *Storage {
	return &Storage{path: ":memory:", mode: mode, mem: mem, logger: zap.NewNop()}
}

// NewFile is a shortcut for saveable.NewFile(New(path, mode, cfg), opt).
func NewFile(path string, mode saveable.Mode, cfg Config, opt saveable.Options) *saveable.File {
	if cfg.Logger == nil {
		cfg.Logger = opt.Logger
	}
	return saveable.NewFile(New(path, mode, cfg), opt)
}

func loggerOr(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func (s *Storage) Open() (saveable.Node, error) {
	if !s.mode.Valid() {
		return nil, errors.Newf("boltfmt: unknown file mode %q", s.mode)
	}
	if s.c != nil {
		return nil, errors.Newf("boltfmt: %s is already open", s.path)
	}
	c, err := s.openContainer()
	if err != nil {
		return nil, err
	}
	tx, err := c.BeginTx(s.mode == saveable.Write)
	if err != nil {
		c.Close()
		return nil, errors.Wrapf(err, "boltfmt: %s", s.path)
	}

	var g group
	if s.mode == saveable.Write {
		if err := tx.DeleteGroup(RootName); err != nil && !errors.Is(err, ErrGroupNotFound) {
			tx.Rollback()
			c.Close()
			return nil, errors.Wrapf(err, "boltfmt: clearing %s", s.path)
		}
		g, err = tx.CreateGroup(RootName)
		if err != nil {
			tx.Rollback()
			c.Close()
			return nil, errors.Wrapf(err, "boltfmt: %s", s.path)
		}
	} else {
		g = tx.Group(RootName)
		if g == nil {
			tx.Rollback()
			c.Close()
			return nil, errors.Wrapf(saveable.ErrMissingMeta, "boltfmt: group %q does not exist in %s", RootName, s.path)
		}
	}
	s.c, s.tx = c, tx
	s.logger.Debug("boltfmt: opened", zap.String("path", s.path), zap.String("mode", string(s.mode)))
	return newNode(RootName, nil, g), nil
}

func (s *Storage) openContainer() (container, error) {
	if s.mem != nil {
		return memContainer{s.mem}, nil
	}
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if s.cfg.Timeout != 0 {
		bopt.Timeout = s.cfg.Timeout
	}
	if s.cfg.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	}
	if s.cfg.MmapSize != 0 {
		bopt.InitialMmapSize = s.cfg.MmapSize
	}
	if s.mode == saveable.Read {
		if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "boltfmt")
		}
		bopt.ReadOnly = true
	}
	bdb, err := bbolt.Open(s.path, 0666, bopt)
	if err != nil {
		return nil, errors.Wrapf(err, "boltfmt: %s", s.path)
	}
	return newBoltContainer(bdb), nil
}

// Close commits a write transaction (or rolls back a read one) and closes
// the container.
func (s *Storage) Close() error {
	if s.c == nil {
		return errors.Wrapf(saveable.ErrNotOpen, "boltfmt: %s has not been opened", s.path)
	}
	var err error
	if s.tx.Writable() {
		err = s.tx.Commit()
	} else {
		err = s.tx.Rollback()
	}
	if cerr := s.c.Close(); err == nil {
		err = cerr
	}
	s.c, s.tx = nil, nil
	s.logger.Debug("boltfmt: closed", zap.String("path", s.path), zap.Error(err))
	return err
}

func (s *Storage) Path() string { return s.path }

// Size returns the size of the open file in bytes, 0 when closed or in memory.
func (s *Storage) Size() int64 {
	if s.tx == nil {
		return 0
	}
	return s.tx.Size()
}
