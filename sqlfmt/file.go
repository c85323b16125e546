package sqlfmt

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/andreyvit/saveable"
	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver used to open files.
const DriverName = "sqlite"

func init() {
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
}

// RootName is the table holding the saved object itself.
const RootName = "root"

type Config struct {
	// BusyTimeout is how long to wait on a locked database; defaults to 5 seconds.
	BusyTimeout time.Duration
	// NoSync turns off fsync, for tests.
	NoSync bool
	Logger *zap.Logger
}

// Storage is a saveable.Storage backed by an SQLite file. All access goes
// through one transaction from Open to Close.
type Storage struct {
	path   string
	mode   saveable.Mode
	cfg    Config
	logger *zap.Logger

	db *sqlx.DB
	tx *sqlx.Tx

	metaIDs map[saveable.MetaData]int64
	metas   map[int64]saveable.MetaData
	tables  map[string]bool
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

func (s *Storage) Open() (saveable.Node, error) {
	if !s.mode.Valid() {
		return nil, errors.Newf("sqlfmt: unknown file mode %q", s.mode)
	}
	if s.db != nil {
		return nil, errors.Newf("sqlfmt: %s is already open", s.path)
	}
	switch s.mode {
	case saveable.Write:
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "sqlfmt: removing %s", s.path)
		}
	case saveable.Read:
		if _, err := os.Stat(s.path); err != nil {
			return nil, errors.Wrap(err, "sqlfmt")
		}
	}

	db, err := sqlx.Open(DriverName, s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlfmt: %s", s.path)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)
	if err := s.configure(db); err != nil {
		db.Close()
		return nil, err
	}
	tx, err := db.Beginx()
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "sqlfmt: %s", s.path)
	}
	s.db, s.tx = db, tx
	s.metaIDs = make(map[saveable.MetaData]int64)
	s.metas = make(map[int64]saveable.MetaData)
	s.tables = make(map[string]bool)

	var root *Node
	if s.mode == saveable.Write {
		root, err = s.openToWrite()
	} else {
		root, err = s.openToRead()
	}
	if err != nil {
		tx.Rollback()
		db.Close()
		s.db, s.tx = nil, nil
		return nil, err
	}
	s.logger.Debug("sqlfmt: opened", zap.String("path", s.path), zap.String("mode", string(s.mode)), zap.String("root", root.objectID))
	return root, nil
}

func (s *Storage) configure(db *sqlx.DB) error {
	timeout := 5 * time.Second
	if s.cfg.BusyTimeout != 0 {
		timeout = s.cfg.BusyTimeout
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", timeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}
	if s.cfg.NoSync {
		pragmas = append(pragmas, "PRAGMA synchronous = OFF")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return errors.Wrapf(err, "sqlfmt: %s", p)
		}
	}
	return nil
}

func (s *Storage) openToWrite() (*Node, error) {
	for _, stmt := range []string{createInfoTableSQL(), createMetaTableSQL()} {
		if _, err := s.tx.Exec(stmt); err != nil {
			return nil, errors.Wrap(err, "sqlfmt: creating tables")
		}
	}
	root := newNode(s, RootName, nil, newObjectID())
	if err := s.ensureTable(RootName); err != nil {
		return nil, err
	}
	info := [][2]string{
		{infoEncoding, saveable.TextEncoding},
		{infoFormatVersion, formatVersion},
		{infoRootObjectID, root.objectID},
	}
	for _, kv := range info {
		if _, err := s.tx.Exec(insertInfoSQL(), kv[0], kv[1]); err != nil {
			return nil, errors.Wrap(err, "sqlfmt: writing file info")
		}
	}
	return root, nil
}

func (s *Storage) openToRead() (*Node, error) {
	for _, name := range []string{metaTable, RootName} {
		ok, err := s.tableExists(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Wrapf(saveable.ErrMissingMeta, "sqlfmt: table %s does not exist in %s", name, s.path)
		}
	}

	ok, err := s.tableExists(infoTable)
	if err != nil {
		return nil, err
	}
	if !ok {
		// files without an info table keep the root object in the first row
		var objectID string
		err := s.tx.Get(&objectID, firstObjectIDSQL(RootName))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(saveable.ErrMissingMeta, "sqlfmt: table %s exists in %s but is empty", RootName, s.path)
		} else if err != nil {
			return nil, errors.Wrap(err, "sqlfmt")
		}
		return newNode(s, RootName, nil, objectID), nil
	}

	info := make(map[string]string)
	for _, key := range []string{infoEncoding, infoFormatVersion, infoRootObjectID} {
		var value string
		err := s.tx.Get(&value, selectInfoSQL(), key)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(saveable.ErrMissingMeta, "sqlfmt: %s is missing %q", s.path, key)
		} else if err != nil {
			return nil, errors.Wrap(err, "sqlfmt")
		}
		info[key] = value
	}
	if enc := info[infoEncoding]; enc != saveable.TextEncoding {
		return nil, errors.Wrapf(saveable.ErrInconsistent, "sqlfmt: unsupported text encoding %q", enc)
	}
	if v := info[infoFormatVersion]; v != formatVersion {
		return nil, errors.Wrapf(saveable.ErrInconsistent, "sqlfmt: unsupported format version %q", v)
	}
	return newNode(s, RootName, nil, info[infoRootObjectID]), nil
}

// Close commits what was written (read mode rolls back) and closes the
// database.
func (s *Storage) Close() error {
	if s.db == nil {
		return errors.Wrapf(saveable.ErrNotOpen, "sqlfmt: %s has not been opened", s.path)
	}
	var err error
	if s.mode == saveable.Write {
		err = s.tx.Commit()
	} else {
		err = s.tx.Rollback()
	}
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	s.db, s.tx = nil, nil
	s.logger.Debug("sqlfmt: closed", zap.String("path", s.path), zap.Error(err))
	return err
}
