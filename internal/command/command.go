// Package command implements the backend-agnostic command logic shared
// by both CLI subtrees. Each method validates its arguments before
// touching the store, calls exactly one store operation, and renders the
// result.
package command

import (
	"context"
	"fmt"
	"log/slog"

	"docstorectl/internal/docstore"
	"docstorectl/internal/format"
)

// Runner binds a store to an output formatter.
type Runner struct {
	store docstore.Store
	fmtr  *format.Formatter
}

// New creates a Runner.
func New(store docstore.Store, fmtr *format.Formatter) *Runner {
	return &Runner{store: store, fmtr: fmtr}
}

// Write renders an arbitrary value through the formatter.
func (r *Runner) Write(v any) error {
	return r.fmtr.Write(v)
}

// WriteDocuments renders pre-fetched documents through the formatter.
func (r *Runner) WriteDocuments(docs []docstore.Document, withVectors bool) error {
	return r.fmtr.WriteDocuments(docs, withVectors)
}

// ListCollections prints the collection names as one row each.
func (r *Runner) ListCollections(ctx context.Context) error {
	names, err := r.store.ListCollections(ctx)
	if err != nil {
		return err
	}
	rows := make([]any, 0, len(names))
	for _, name := range names {
		rows = append(rows, map[string]any{"name": name})
	}
	return r.fmtr.Write(rows)
}

func (r *Runner) CreateCollection(ctx context.Context, name string, recreate bool) error {
	if name == "" {
		return fmt.Errorf("%w: collection name is required", docstore.ErrInvalidInput)
	}
	if err := r.store.CreateCollection(ctx, name, recreate); err != nil {
		return err
	}
	slog.Info("collection created", "collection", name)
	return r.fmtr.Write(map[string]any{"name": name, "status": "created"})
}

func (r *Runner) DeleteCollection(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name is required", docstore.ErrInvalidInput)
	}
	if err := r.store.DeleteCollection(ctx, name); err != nil {
		return err
	}
	slog.Info("collection deleted", "collection", name)
	return r.fmtr.Write(map[string]any{"name": name, "status": "deleted"})
}

// CollectionInfo prints the collection descriptor with the name merged
// in, so output is self-identifying even when piped to a file.
func (r *Runner) CollectionInfo(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name is required", docstore.ErrInvalidInput)
	}
	info, err := r.store.CollectionInfo(ctx, name)
	if err != nil {
		return err
	}
	return r.fmtr.Write(format.MergeInfo(name, info, nil))
}

func (r *Runner) AddDocuments(ctx context.Context, collection string, docs []docstore.Document) error {
	if collection == "" {
		return fmt.Errorf("%w: collection name is required", docstore.ErrInvalidInput)
	}
	if len(docs) == 0 {
		return fmt.Errorf("%w: no documents provided", docstore.ErrInvalidInput)
	}
	if err := r.store.AddDocuments(ctx, collection, docs); err != nil {
		return err
	}
	slog.Info("documents added", "collection", collection, "count", len(docs))
	return r.fmtr.Write(map[string]any{"collection": collection, "added": len(docs)})
}

// GetDocuments passes withVectors both to the store call and to the
// renderer so retrieval and output always agree on vector visibility.
func (r *Runner) GetDocuments(ctx context.Context, collection string, sel docstore.Selector, withVectors bool) error {
	if collection == "" {
		return fmt.Errorf("%w: collection name is required", docstore.ErrInvalidInput)
	}
	if err := sel.Validate(); err != nil {
		return err
	}
	docs, err := r.store.GetDocuments(ctx, collection, sel, withVectors)
	if err != nil {
		return err
	}
	return r.fmtr.WriteDocuments(docs, withVectors)
}

func (r *Runner) RemoveDocuments(ctx context.Context, collection string, sel docstore.Selector) error {
	if collection == "" {
		return fmt.Errorf("%w: collection name is required", docstore.ErrInvalidInput)
	}
	if err := sel.Validate(); err != nil {
		return err
	}
	if err := r.store.RemoveDocuments(ctx, collection, sel); err != nil {
		return err
	}
	slog.Info("documents removed", "collection", collection)
	return r.fmtr.Write(map[string]any{"collection": collection, "status": "removed"})
}

func (r *Runner) Search(ctx context.Context, collection string, req docstore.SearchRequest) error {
	if collection == "" {
		return fmt.Errorf("%w: collection name is required", docstore.ErrInvalidInput)
	}
	docs, err := r.store.Search(ctx, collection, req)
	if err != nil {
		return err
	}
	return r.fmtr.WriteDocuments(docs, req.WithVectors)
}

func (r *Runner) Count(ctx context.Context, collection string, filter string) error {
	if collection == "" {
		return fmt.Errorf("%w: collection name is required", docstore.ErrInvalidInput)
	}
	count, err := r.store.Count(ctx, collection, filter)
	if err != nil {
		return err
	}
	return r.fmtr.Write(map[string]any{"collection": collection, "count": count})
}

func (r *Runner) MutateFields(ctx context.Context, collection string, sel docstore.Selector, mut docstore.FieldMutation) error {
	if collection == "" {
		return fmt.Errorf("%w: collection name is required", docstore.ErrInvalidInput)
	}
	if err := sel.Validate(); err != nil {
		return err
	}
	if err := mut.Validate(); err != nil {
		return err
	}
	if err := r.store.MutateFields(ctx, collection, sel, mut); err != nil {
		return err
	}
	slog.Info("fields updated", "collection", collection)
	return r.fmtr.Write(map[string]any{"collection": collection, "status": "updated"})
}
