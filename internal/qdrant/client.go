// Package qdrant adapts the vector backend to the docstore.Store contract.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	qdrant "github.com/qdrant/go-client/qdrant"

	"docstorectl/internal/config"
	"docstorectl/internal/docstore"
)

// upsertBatchSize bounds the points sent per upsert request.
const upsertBatchSize = 100

// filterGetLimit caps how many documents a filter-based get fetches in
// one call; a warning with the resume offset is logged when more
// matches remain.
const filterGetLimit = 1000

// Client wraps the Qdrant Go client behind the docstore.Store contract.
type Client struct {
	api *qdrant.Client
	cfg config.QdrantConfig
}

var _ docstore.Store = (*Client)(nil)

// New connects to Qdrant and verifies the connection with a health check.
func New(ctx context.Context, cfg config.QdrantConfig) (*Client, error) {
	if cfg.Connection.URL == "" {
		return nil, fmt.Errorf("%w: qdrant connection url is not configured", docstore.ErrInvalidInput)
	}
	api, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Connection.URL,
		Port:   cfg.Connection.Port,
		APIKey: cfg.Connection.APIKey,
		UseTLS: cfg.Connection.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docstore.ErrConnection, err)
	}
	c := &Client{api: api, cfg: cfg}
	if err := c.healthCheck(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) healthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := c.api.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %v", docstore.ErrConnection, err)
	}
	return nil
}

func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	names, err := c.api.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", mapErr(err))
	}
	return names, nil
}

// CreateCollection creates a collection using the profile's vector
// schema, then creates any configured payload field indices. With
// recreate set an existing collection is dropped first.
func (c *Client) CreateCollection(ctx context.Context, name string, recreate bool) error {
	if name == "" {
		return fmt.Errorf("%w: collection name is required", docstore.ErrInvalidInput)
	}
	distance, err := parseDistance(c.cfg.Vectors.Distance)
	if err != nil {
		return err
	}

	if recreate {
		if err := c.api.DeleteCollection(ctx, name); err != nil {
			if mapped := mapErr(err); !isNotFound(mapped) {
				return fmt.Errorf("recreate collection %q: %w", name, mapped)
			}
		}
	} else {
		exists, err := c.api.CollectionExists(ctx, name)
		if err != nil {
			return fmt.Errorf("check collection %q: %w", name, mapErr(err))
		}
		if exists {
			return fmt.Errorf("%w: collection %q", docstore.ErrAlreadyExists, name)
		}
	}

	req := &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     c.cfg.Vectors.Size,
			Distance: distance,
		}),
	}
	if c.cfg.Vectors.OnDiskPayload {
		req.OnDiskPayload = qdrant.PtrOf(true)
	}
	if c.cfg.Vectors.Shards > 0 {
		req.ShardNumber = qdrant.PtrOf(c.cfg.Vectors.Shards)
	}
	if c.cfg.Vectors.ReplicationFactor > 0 {
		req.ReplicationFactor = qdrant.PtrOf(c.cfg.Vectors.ReplicationFactor)
	}
	if c.cfg.Vectors.IndexingThreshold > 0 {
		req.OptimizersConfig = &qdrant.OptimizersConfigDiff{
			IndexingThreshold: qdrant.PtrOf(c.cfg.Vectors.IndexingThreshold),
		}
	}
	if err := c.api.CreateCollection(ctx, req); err != nil {
		return fmt.Errorf("create collection %q: %w", name, mapErr(err))
	}

	for _, idx := range c.cfg.PayloadIndices {
		fieldType, err := parseFieldType(idx.Type)
		if err != nil {
			return err
		}
		if _, err := c.api.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      idx.Field,
			FieldType:      &fieldType,
			Wait:           qdrant.PtrOf(true),
		}); err != nil {
			return fmt.Errorf("create payload index on %q.%s: %w", name, idx.Field, mapErr(err))
		}
		slog.Debug("created payload index", "collection", name, "field", idx.Field, "type", idx.Type)
	}
	return nil
}

func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name is required", docstore.ErrInvalidInput)
	}
	exists, err := c.api.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %q: %w", name, mapErr(err))
	}
	if !exists {
		return fmt.Errorf("%w: collection %q", docstore.ErrNotFound, name)
	}
	if err := c.api.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("delete collection %q: %w", name, mapErr(err))
	}
	return nil
}

// CollectionInfo returns the collection descriptor as a plain mapping,
// built from known fields only.
func (c *Client) CollectionInfo(ctx context.Context, name string) (map[string]any, error) {
	info, err := c.api.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get collection %q: %w", name, mapErr(err))
	}
	return describeCollection(info), nil
}

// AddDocuments upserts documents in batches. A failing batch aborts the
// whole call with the batch range in the error.
func (c *Client) AddDocuments(ctx context.Context, collection string, docs []docstore.Document) error {
	if len(docs) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("%w: document %d is missing an id", docstore.ErrInvalidInput, i)
		}
		if len(d.Vector) == 0 {
			return fmt.Errorf("%w: document %d (%s) is missing a vector", docstore.ErrInvalidInput, i, d.ID)
		}
		payload := d.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		points[i] = &qdrant.PointStruct{
			Id:      pointID(d.ID),
			Vectors: qdrant.NewVectors(d.Vector...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))
		_, err := c.api.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points[start:end],
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("upsert batch [%d:%d] into %q: %w", start, end, collection, mapErr(err))
		}
		slog.Debug("upserted batch", "collection", collection, "start", start, "end", end)
	}
	return nil
}

// GetDocuments retrieves by IDs or by filter. The withVectors flag is
// threaded into the backend request; callers use the same value to decide
// whether to render vectors.
func (c *Client) GetDocuments(ctx context.Context, collection string, sel docstore.Selector, withVectors bool) ([]docstore.Document, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	if len(sel.IDs) > 0 {
		ids := make([]*qdrant.PointId, len(sel.IDs))
		for i, id := range sel.IDs {
			ids[i] = pointID(id)
		}
		points, err := c.api.Get(ctx, &qdrant.GetPoints{
			CollectionName: collection,
			Ids:            ids,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(withVectors),
		})
		if err != nil {
			return nil, fmt.Errorf("get documents from %q: %w", collection, mapErr(err))
		}
		return retrievedToDocuments(points), nil
	}

	docs, next, err := c.Scroll(ctx, collection, ScrollRequest{
		Limit:       filterGetLimit,
		Filter:      sel.Filter,
		WithVectors: withVectors,
		WithPayload: true,
	})
	if err != nil {
		return nil, err
	}
	if next != "" {
		slog.Warn("filter matched more documents than one fetch returns, use scroll to resume",
			"collection", collection, "limit", filterGetLimit, "next_offset", next)
	}
	return docs, nil
}

func (c *Client) RemoveDocuments(ctx context.Context, collection string, sel docstore.Selector) error {
	if err := sel.Validate(); err != nil {
		return err
	}
	selector, err := pointsSelector(sel)
	if err != nil {
		return err
	}
	_, err = c.api.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         selector,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("remove documents from %q: %w", collection, mapErr(err))
	}
	return nil
}

// Search runs a nearest-neighbour query.
func (c *Client) Search(ctx context.Context, collection string, req docstore.SearchRequest) ([]docstore.Document, error) {
	if len(req.Vector) == 0 {
		return nil, fmt.Errorf("%w: a query vector is required", docstore.ErrInvalidInput)
	}
	limit := req.Limit
	if limit == 0 {
		limit = 10
	}
	query := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(req.WithVectors),
	}
	if req.Filter != "" {
		filter, err := compileFilter(req.Filter)
		if err != nil {
			return nil, err
		}
		query.Filter = filter
	}
	scored, err := c.api.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", collection, mapErr(err))
	}

	docs := make([]docstore.Document, 0, len(scored))
	for _, pt := range scored {
		score := pt.GetScore()
		docs = append(docs, docstore.Document{
			ID:      pointIDString(pt.GetId()),
			Payload: payloadToMap(pt.GetPayload()),
			Vector:  vectorData(pt.GetVectors()),
			Score:   &score,
		})
	}
	return docs, nil
}

func (c *Client) Count(ctx context.Context, collection string, filter string) (uint64, error) {
	req := &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	}
	if filter != "" {
		compiled, err := compileFilter(filter)
		if err != nil {
			return 0, err
		}
		req.Filter = compiled
	}
	count, err := c.api.Count(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", collection, mapErr(err))
	}
	return count, nil
}

// MutateFields applies a payload mutation to all matched points:
// add sets new keys, replace overwrites the whole payload selection,
// delete drops keys.
func (c *Client) MutateFields(ctx context.Context, collection string, sel docstore.Selector, mut docstore.FieldMutation) error {
	if err := sel.Validate(); err != nil {
		return err
	}
	if err := mut.Validate(); err != nil {
		return err
	}
	selector, err := pointsSelector(sel)
	if err != nil {
		return err
	}

	switch {
	case len(mut.Add) > 0:
		_, err = c.api.SetPayload(ctx, &qdrant.SetPayloadPoints{
			CollectionName: collection,
			Payload:        qdrant.NewValueMap(mut.Add),
			PointsSelector: selector,
			Wait:           qdrant.PtrOf(true),
		})
	case len(mut.Replace) > 0:
		_, err = c.api.OverwritePayload(ctx, &qdrant.SetPayloadPoints{
			CollectionName: collection,
			Payload:        qdrant.NewValueMap(mut.Replace),
			PointsSelector: selector,
			Wait:           qdrant.PtrOf(true),
		})
	default:
		_, err = c.api.DeletePayload(ctx, &qdrant.DeletePayloadPoints{
			CollectionName: collection,
			Keys:           mut.Delete,
			PointsSelector: selector,
			Wait:           qdrant.PtrOf(true),
		})
	}
	if err != nil {
		return fmt.Errorf("mutate fields in %q: %w", collection, mapErr(err))
	}
	return nil
}

// ScrollRequest drives paginated iteration over a collection.
type ScrollRequest struct {
	Limit       uint32
	Offset      string
	Filter      string
	WithVectors bool
	WithPayload bool
}

// Scroll pages through a collection and returns the next offset token
// (empty when the collection is exhausted).
func (c *Client) Scroll(ctx context.Context, collection string, req ScrollRequest) ([]docstore.Document, string, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}
	sreq := &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(req.WithPayload),
		WithVectors:    qdrant.NewWithVectors(req.WithVectors),
	}
	if req.Offset != "" {
		sreq.Offset = pointID(req.Offset)
	}
	if req.Filter != "" {
		filter, err := compileFilter(req.Filter)
		if err != nil {
			return nil, "", err
		}
		sreq.Filter = filter
	}

	resp, err := c.api.GetPointsClient().Scroll(ctx, sreq)
	if err != nil {
		return nil, "", fmt.Errorf("scroll %q: %w", collection, mapErr(err))
	}
	next := ""
	if offset := resp.GetNextPageOffset(); offset != nil {
		next = pointIDString(offset)
	}
	return retrievedToDocuments(resp.GetResult()), next, nil
}

func (c *Client) Close() error {
	return c.api.Close()
}
