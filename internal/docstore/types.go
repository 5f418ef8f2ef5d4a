package docstore

import (
	"context"
	"fmt"
)

// Document is a single record in a collection. Payload holds every
// backend field except the identifier; Vector is populated for the
// vector backend only.
type Document struct {
	ID      string         `json:"id"`
	Payload map[string]any `json:"payload,omitempty"`
	Vector  []float32      `json:"vector,omitempty"`
	Score   *float32       `json:"score,omitempty"`
}

// Selector picks documents either by explicit IDs or by a backend
// filter expression. Exactly one of the two must be set.
type Selector struct {
	IDs    []string
	Filter string
}

// Validate enforces the exactly-one-of constraint.
func (s Selector) Validate() error {
	hasIDs := len(s.IDs) > 0
	hasFilter := s.Filter != ""
	if hasIDs == hasFilter {
		return fmt.Errorf("%w: exactly one of ids or filter must be provided", ErrInvalidInput)
	}
	return nil
}

// SearchRequest describes a search call. Vector drives the vector
// backend, Query the search backend; the other field is ignored.
type SearchRequest struct {
	Vector      []float32
	Query       string
	Filter      string
	Limit       uint64
	WithVectors bool
}

// FieldMutation is a batch field-level change applied to all documents
// matched by a Selector. Exactly one of the three maps/lists must be set.
type FieldMutation struct {
	Add     map[string]any
	Delete  []string
	Replace map[string]any
}

// Validate enforces the exactly-one-of constraint.
func (m FieldMutation) Validate() error {
	n := 0
	if len(m.Add) > 0 {
		n++
	}
	if len(m.Delete) > 0 {
		n++
	}
	if len(m.Replace) > 0 {
		n++
	}
	if n != 1 {
		return fmt.Errorf("%w: exactly one of add, delete, or replace fields must be provided", ErrInvalidInput)
	}
	return nil
}

// Store is the uniform contract both backend adapters implement. All
// calls are synchronous and block until the backend responds; there is
// no retry logic at this layer or below.
type Store interface {
	// ListCollections returns the collection names known to the backend.
	ListCollections(ctx context.Context) ([]string, error)
	// CreateCollection creates a collection using the adapter's configured
	// schema parameters. With recreate set, an existing collection is
	// deleted first; without it a name collision is ErrAlreadyExists.
	CreateCollection(ctx context.Context, name string, recreate bool) error
	// DeleteCollection removes a collection. Missing collections are
	// ErrNotFound.
	DeleteCollection(ctx context.Context, name string) error
	// CollectionInfo returns the backend-specific collection descriptor as
	// a plain mapping.
	CollectionInfo(ctx context.Context, name string) (map[string]any, error)
	// AddDocuments inserts or overwrites documents, batching internally.
	// A failing batch aborts the whole call.
	AddDocuments(ctx context.Context, collection string, docs []Document) error
	// GetDocuments retrieves documents by the selector. The withVectors
	// flag is passed to the backend call and must match what the caller
	// uses for output filtering.
	GetDocuments(ctx context.Context, collection string, sel Selector, withVectors bool) ([]Document, error)
	// RemoveDocuments deletes documents matched by the selector.
	RemoveDocuments(ctx context.Context, collection string, sel Selector) error
	// Search runs a similarity or text-query search.
	Search(ctx context.Context, collection string, req SearchRequest) ([]Document, error)
	// Count returns the number of documents matching the optional filter.
	Count(ctx context.Context, collection string, filter string) (uint64, error)
	// MutateFields applies a field-level mutation to all matched documents.
	MutateFields(ctx context.Context, collection string, sel Selector, mut FieldMutation) error
	// Close releases the backend connection.
	Close() error
}
