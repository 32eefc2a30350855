// ABOUTME: Document store interface shared by the SQLite and Badger backends
// ABOUTME: Defines collections of JSON documents keyed by public id, plus id allocation
package db

import (
	"context"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var (
	// Error is the class for storage failures that are not one of the cases below.
	Error = errs.Class("db")
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errs.Class("document not found")
	// ErrDuplicate is returned when inserting an id that is already taken.
	ErrDuplicate = errs.Class("duplicate document")
)

// Supported backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Store holds collections of JSON documents keyed by an integer public id.
type Store interface {
	// Get returns the document body, or ErrNotFound.
	Get(ctx context.Context, collection string, id int64) ([]byte, error)
	// FindAll returns every document in the collection matching filter,
	// ordered by public id.
	FindAll(ctx context.Context, collection string, filter Filter) ([][]byte, error)
	// Insert stores a new document, or fails with ErrDuplicate.
	Insert(ctx context.Context, collection string, id int64, doc []byte) error
	// Replace overwrites an existing document, or fails with ErrNotFound.
	Replace(ctx context.Context, collection string, id int64, doc []byte) error
	// Delete removes a document, or fails with ErrNotFound.
	Delete(ctx context.Context, collection string, id int64) error
	// NextID allocates the next public id for the collection. Ids are
	// strictly increasing and never collide with an id already stored.
	NextID(ctx context.Context, collection string) (int64, error)
	Close() error
}

// Open opens the store for backend at path.
func Open(backend, path string, log *zap.Logger) (Store, error) {
	switch backend {
	case BackendSQLite, "":
		s, err := OpenSQLiteStore(path, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendBadger:
		s, err := OpenBadgerStore(path, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, Error.New("unknown backend %q", backend)
	}
}
