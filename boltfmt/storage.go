package boltfmt

import "github.com/cockroachdb/errors"

// ErrGroupNotFound is returned when a group to open or delete does not exist.
var ErrGroupNotFound = errors.New("group not found")

// ErrKeyExists is returned by group.Put when the key is already taken.
var ErrKeyExists = errors.New("key already exists")

// container is a hierarchical key-value store (Bolt, in-memory).
type container interface {
	// BeginTx starts a new transaction.
	BeginTx(writable bool) (containerTx, error)
	// Close closes the container.
	Close() error
}

// containerTx is a transaction over a container.
type containerTx interface {
	// Writable returns true if this is a writable transaction.
	Writable() bool

	// Group returns a top-level group, or nil if it doesn't exist.
	Group(name string) group

	// CreateGroup creates a top-level group; it fails if it already exists.
	CreateGroup(name string) (group, error)

	// DeleteGroup deletes a top-level group with everything nested in it.
	DeleteGroup(name string) error

	// Commit commits the transaction.
	Commit() error

	// Rollback aborts the transaction. It should be safe to call multiple times.
	Rollback() error

	// Size returns the database size in bytes (0 if unknown / not applicable).
	Size() int64
}

// group is a sorted collection of datasets (key-value pairs) and nested groups.
type group interface {
	// Get retrieves a dataset by key. Returns nil if not found.
	Get(key []byte) []byte

	// Put stores a new dataset; an existing key yields ErrKeyExists.
	Put(key, value []byte) error

	// Group returns a nested group, or nil if it doesn't exist.
	Group(name []byte) group

	// CreateGroup creates a nested group; it fails if the name is taken.
	CreateGroup(name []byte) (group, error)

	// ForEach visits datasets and nested groups in key order. value is nil
	// for nested groups.
	ForEach(fn func(key, value []byte) error) error

	// Stats returns the number of datasets and nested groups.
	Stats() groupStats
}

type groupStats struct {
	KeyN   int
	GroupN int
}
