// Package storage defines the document store the route groups persist through.
// Backends live in sub-packages; connector picks one from a connection URI.
package storage

import (
	"context"
	"errors"
)

// IDField is the key under which every backend exposes a document's identifier.
const IDField = "_id"

var (
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidID is returned when an id is not in the backend's id format.
	ErrInvalidID = errors.New("invalid document id")

	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate key")
)

// Document is a schemaless JSON-compatible record.
type Document map[string]any

// ID returns the document identifier, or "" if unset.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// ListOptions bounds a List call. A zero Limit returns every document.
type ListOptions struct {
	Limit  int
	Offset int
}

// Collection is a named set of documents.
type Collection interface {
	List(ctx context.Context, opts ListOptions) ([]Document, error)
	Count(ctx context.Context) (int64, error)
	Get(ctx context.Context, id string) (Document, error)
	// Insert stores doc under a freshly generated id and returns the stored form.
	// Any caller-supplied id is discarded.
	Insert(ctx context.Context, doc Document) (Document, error)
	// Update merges fields into the stored document and returns the result.
	Update(ctx context.Context, id string, fields Document) (Document, error)
	Delete(ctx context.Context, id string) error
}

// DocumentStore owns the single long-lived connection to the backing store.
type DocumentStore interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close() error
}

// WithoutID returns a shallow copy of doc with the id field removed.
func WithoutID(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if k == IDField {
			continue
		}
		out[k] = v
	}
	return out
}
