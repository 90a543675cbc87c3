// Package docstore defines the document-store contract the record-keeper
// runs on: per-document atomic writes, a revision-conditioned replace for
// optimistic concurrency, and equality-filtered listing in insertion order.
package docstore

import (
	"context"
	"errors"
)

// Collection names used by the record-keeper.
const (
	Customers    = "customer"
	Accounts     = "account"
	Transactions = "transaction"
)

// KnownCollections lists every collection a backend must be able to hold.
var KnownCollections = []string{Customers, Accounts, Transactions}

var (
	// ErrNotFound is returned when no document exists under the given ID.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned by Replace when the stored revision does not
	// match the caller's expected revision.
	ErrConflict = errors.New("document revision conflict")

	// ErrUnavailable is returned when the backend cannot be reached or a
	// write cannot be made durable.
	ErrUnavailable = errors.New("store unavailable")
)

// Document is a stored record together with its store metadata.
type Document struct {
	ID string
	// Rev starts at 1 and is bumped by every successful Replace.
	Rev int64
	// Seq is assigned by the store on insert and is strictly increasing
	// within a collection, so it orders documents by insertion.
	Seq  int64
	Data []byte
}

// Store is the persistence contract. Every method honors the context
// deadline. Implementations guarantee atomicity per document only;
// coordinating multi-document effects is the caller's responsibility.
type Store interface {
	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Insert stores a new document at revision 1 and returns its sequence
	// number. Inserting an existing ID fails with ErrConflict.
	Insert(ctx context.Context, collection, id string, data []byte) (int64, error)

	// Replace overwrites the document's data if and only if its current
	// revision equals expectRev, bumping the revision by one. A revision
	// mismatch fails with ErrConflict, a missing document with ErrNotFound.
	Replace(ctx context.Context, collection, id string, data []byte, expectRev int64) error

	// List returns documents whose top-level string field equals value,
	// newest first, at most limit. An empty field matches everything.
	List(ctx context.Context, collection, field, value string, limit int) ([]*Document, error)

	// Collections reports the collections present in the store.
	Collections(ctx context.Context) ([]string, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	Close() error
}

func knownCollection(collection string) bool {
	for _, c := range KnownCollections {
		if c == collection {
			return true
		}
	}
	return false
}
