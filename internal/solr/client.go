// Package solr adapts a SolrCloud cluster to the docstore.Store
// contract over the collections and update/select HTTP APIs.
package solr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"docstorectl/internal/config"
	"docstorectl/internal/docstore"
)

// updateBatchSize bounds the documents sent per update request.
const updateBatchSize = 500

// vectorField is the stored field holding dense vector data. It is
// stripped from returned payloads unless vectors were asked for.
const vectorField = "_vector_"

// Client talks to a Solr node or load balancer.
type Client struct {
	baseURL string
	http    *http.Client
	cfg     config.SolrConfig
}

var _ docstore.Store = (*Client)(nil)

// New builds a client for the configured Solr URL. The URL may point at
// the server root or at the /solr context path.
func New(cfg config.SolrConfig) (*Client, error) {
	if cfg.Connection.URL == "" {
		return nil, fmt.Errorf("%w: solr connection url is not configured", docstore.ErrInvalidInput)
	}
	base := strings.TrimRight(cfg.Connection.URL, "/")
	if !strings.HasSuffix(base, "/solr") {
		base += "/solr"
	}
	timeout := time.Duration(cfg.Connection.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		cfg:     cfg,
	}, nil
}

// do issues one request and decodes the JSON response into out when out
// is non-nil. Solr error bodies are parsed for their message.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Connection.Username != "" {
		req.SetBasicAuth(c.cfg.Connection.Username, c.cfg.Connection.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return connErr(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return apiError(resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// connErr classifies a transport-level failure. Anything that never got
// an HTTP response counts as a connection problem.
func connErr(err error) error {
	return fmt.Errorf("%w: %v", docstore.ErrConnection, err)
}

// apiError maps a Solr error response onto the shared taxonomy. Solr
// reports collection collisions and missing collections with generic
// status codes, so the message text decides.
func apiError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var parsed struct {
		Error struct {
			Msg string `json:"msg"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Msg != "" {
		msg = parsed.Error.Msg
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "already exists"):
		return fmt.Errorf("%w: %s", docstore.ErrAlreadyExists, msg)
	case status == http.StatusNotFound,
		strings.Contains(lower, "could not find collection"),
		strings.Contains(lower, "not found"):
		return fmt.Errorf("%w: %s", docstore.ErrNotFound, msg)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%w: solr returned %d: %s", docstore.ErrConnection, status, msg)
	case status == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", docstore.ErrInvalidInput, msg)
	default:
		return fmt.Errorf("solr returned %d: %s", status, msg)
	}
}

func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var resp struct {
		Collections []string `json:"collections"`
	}
	q := url.Values{"action": {"LIST"}}
	if err := c.do(ctx, http.MethodGet, "/admin/collections", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return resp.Collections, nil
}

// CreateCollection creates a collection with the configured shard and
// replication parameters. With recreate set an existing collection is
// dropped first.
func (c *Client) CreateCollection(ctx context.Context, name string, recreate bool) error {
	if name == "" {
		return fmt.Errorf("%w: collection name is required", docstore.ErrInvalidInput)
	}
	if recreate {
		if err := c.DeleteCollection(ctx, name); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("recreate collection %q: %w", name, err)
		}
	}
	q := url.Values{
		"action":            {"CREATE"},
		"name":              {name},
		"numShards":         {strconv.Itoa(c.cfg.Connection.NumShards)},
		"replicationFactor": {strconv.Itoa(c.cfg.Connection.ReplicationFactor)},
	}
	if c.cfg.Connection.ConfigName != "" {
		q.Set("collection.configName", c.cfg.Connection.ConfigName)
	}
	if err := c.do(ctx, http.MethodGet, "/admin/collections", q, nil, nil); err != nil {
		return fmt.Errorf("create collection %q: %w", name, err)
	}
	return nil
}

func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name is required", docstore.ErrInvalidInput)
	}
	q := url.Values{"action": {"DELETE"}, "name": {name}}
	if err := c.do(ctx, http.MethodGet, "/admin/collections", q, nil, nil); err != nil {
		return fmt.Errorf("delete collection %q: %w", name, err)
	}
	return nil
}

// CollectionInfo returns the cluster-status entry for one collection.
func (c *Client) CollectionInfo(ctx context.Context, name string) (map[string]any, error) {
	var resp struct {
		Cluster struct {
			Collections map[string]map[string]any `json:"collections"`
		} `json:"cluster"`
	}
	q := url.Values{"action": {"CLUSTERSTATUS"}, "collection": {name}}
	if err := c.do(ctx, http.MethodGet, "/admin/collections", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("get collection %q: %w", name, err)
	}
	info, ok := resp.Cluster.Collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: collection %q", docstore.ErrNotFound, name)
	}
	return info, nil
}

// AddDocuments indexes documents in batches with an immediate commit. A
// failing batch aborts the whole call with the batch range in the error.
func (c *Client) AddDocuments(ctx context.Context, collection string, docs []docstore.Document) error {
	if len(docs) == 0 {
		return nil
	}
	solrDocs := make([]map[string]any, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("%w: document %d is missing an id", docstore.ErrInvalidInput, i)
		}
		solrDocs[i] = toSolrDoc(d)
	}

	q := url.Values{"commit": {"true"}}
	for start := 0; start < len(solrDocs); start += updateBatchSize {
		end := min(start+updateBatchSize, len(solrDocs))
		if err := c.do(ctx, http.MethodPost, "/"+collection+"/update", q, solrDocs[start:end], nil); err != nil {
			return fmt.Errorf("index batch [%d:%d] into %q: %w", start, end, collection, err)
		}
		slog.Debug("indexed batch", "collection", collection, "start", start, "end", end)
	}
	return nil
}

func (c *Client) GetDocuments(ctx context.Context, collection string, sel docstore.Selector, withVectors bool) ([]docstore.Document, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	q := url.Values{
		"wt":   {"json"},
		"rows": {"1000"},
		"fl":   {fieldList(withVectors, false)},
	}
	if len(sel.IDs) > 0 {
		q.Set("q", idsQuery(sel.IDs))
	} else {
		q.Set("q", sel.Filter)
	}

	var resp selectResponse
	if err := c.do(ctx, http.MethodGet, "/"+collection+"/select", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("get documents from %q: %w", collection, err)
	}
	return fromSolrDocs(resp.Response.Docs, withVectors), nil
}

// RemoveDocuments deletes by IDs or by query with an immediate commit.
func (c *Client) RemoveDocuments(ctx context.Context, collection string, sel docstore.Selector) error {
	if err := sel.Validate(); err != nil {
		return err
	}
	var body map[string]any
	if len(sel.IDs) > 0 {
		body = map[string]any{"delete": sel.IDs}
	} else {
		body = map[string]any{"delete": map[string]any{"query": sel.Filter}}
	}
	q := url.Values{"commit": {"true"}}
	if err := c.do(ctx, http.MethodPost, "/"+collection+"/update", q, body, nil); err != nil {
		return fmt.Errorf("remove documents from %q: %w", collection, err)
	}
	return nil
}

// Search runs a text query, with an optional filter query narrowing the
// result set.
func (c *Client) Search(ctx context.Context, collection string, req docstore.SearchRequest) ([]docstore.Document, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("%w: a query string is required", docstore.ErrInvalidInput)
	}
	limit := req.Limit
	if limit == 0 {
		limit = 10
	}
	q := url.Values{
		"wt":   {"json"},
		"q":    {req.Query},
		"rows": {strconv.FormatUint(limit, 10)},
		"fl":   {fieldList(req.WithVectors, true)},
	}
	if req.Filter != "" {
		q.Set("fq", req.Filter)
	}

	var resp selectResponse
	if err := c.do(ctx, http.MethodGet, "/"+collection+"/select", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("search %q: %w", collection, err)
	}
	return fromSolrDocs(resp.Response.Docs, req.WithVectors), nil
}

func (c *Client) Count(ctx context.Context, collection string, filter string) (uint64, error) {
	query := filter
	if query == "" {
		query = "*:*"
	}
	q := url.Values{"wt": {"json"}, "q": {query}, "rows": {"0"}}
	var resp selectResponse
	if err := c.do(ctx, http.MethodGet, "/"+collection+"/select", q, nil, &resp); err != nil {
		return 0, fmt.Errorf("count %q: %w", collection, err)
	}
	return resp.Response.NumFound, nil
}

// MutateFields applies atomic updates to the matched documents. Filter
// selectors are resolved to IDs first since atomic updates address
// documents individually.
func (c *Client) MutateFields(ctx context.Context, collection string, sel docstore.Selector, mut docstore.FieldMutation) error {
	if err := sel.Validate(); err != nil {
		return err
	}
	if err := mut.Validate(); err != nil {
		return err
	}

	ids := sel.IDs
	if len(ids) == 0 {
		docs, err := c.GetDocuments(ctx, collection, sel, false)
		if err != nil {
			return err
		}
		ids = make([]string, len(docs))
		for i, d := range docs {
			ids[i] = d.ID
		}
	}
	if len(ids) == 0 {
		return nil
	}

	updates := make([]map[string]any, len(ids))
	for i, id := range ids {
		update := map[string]any{"id": id}
		switch {
		case len(mut.Add) > 0:
			for k, v := range mut.Add {
				update[k] = map[string]any{"set": v}
			}
		case len(mut.Replace) > 0:
			// A plain (non-atomic) add of {id, fields} is Solr's full
			// document replacement.
			for k, v := range mut.Replace {
				update[k] = v
			}
		default:
			for _, k := range mut.Delete {
				update[k] = map[string]any{"set": nil}
			}
		}
		updates[i] = update
	}

	q := url.Values{"commit": {"true"}}
	for start := 0; start < len(updates); start += updateBatchSize {
		end := min(start+updateBatchSize, len(updates))
		if err := c.do(ctx, http.MethodPost, "/"+collection+"/update", q, updates[start:end], nil); err != nil {
			return fmt.Errorf("update batch [%d:%d] in %q: %w", start, end, collection, err)
		}
	}
	return nil
}

// ConfigSets lists the config sets available on the cluster.
func (c *Client) ConfigSets(ctx context.Context) ([]string, error) {
	var resp struct {
		ConfigSets []string `json:"configSets"`
	}
	q := url.Values{"action": {"LIST"}}
	if err := c.do(ctx, http.MethodGet, "/admin/configs", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("list config sets: %w", err)
	}
	return resp.ConfigSets, nil
}

// Config returns the effective config overlay of a collection.
func (c *Client) Config(ctx context.Context, collection string) (map[string]any, error) {
	var resp struct {
		Overlay map[string]any `json:"overlay"`
	}
	if err := c.do(ctx, http.MethodGet, "/"+collection+"/config/overlay", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get config for %q: %w", collection, err)
	}
	if resp.Overlay == nil {
		return map[string]any{}, nil
	}
	return resp.Overlay, nil
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

type selectResponse struct {
	Response struct {
		NumFound uint64           `json:"numFound"`
		Docs     []map[string]any `json:"docs"`
	} `json:"response"`
}

// fieldList builds the fl parameter for a select request. The stored
// vector field is requested only when vectors were asked for, so the
// flag reaches the backend instead of being applied client-side alone.
func fieldList(withVectors, withScore bool) string {
	fl := "*"
	if withScore {
		fl += ",score"
	}
	if withVectors {
		fl += "," + vectorField
	}
	return fl
}

func idsQuery(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = `"` + strings.ReplaceAll(id, `"`, `\"`) + `"`
	}
	return "id:(" + strings.Join(quoted, " OR ") + ")"
}

// toSolrDoc flattens a Document into the indexable field map. Vector
// data goes into the dedicated stored field.
func toSolrDoc(d docstore.Document) map[string]any {
	doc := make(map[string]any, len(d.Payload)+2)
	for k, v := range d.Payload {
		doc[k] = v
	}
	doc["id"] = d.ID
	if len(d.Vector) > 0 {
		doc[vectorField] = d.Vector
	}
	return doc
}

// fromSolrDocs rebuilds Documents from select results. Internal
// underscore-prefixed fields are stripped from payloads; the vector
// field survives only when vectors were requested.
func fromSolrDocs(docs []map[string]any, withVectors bool) []docstore.Document {
	out := make([]docstore.Document, 0, len(docs))
	for _, raw := range docs {
		doc := docstore.Document{Payload: map[string]any{}}
		for k, v := range raw {
			switch {
			case k == "id":
				doc.ID = fmt.Sprint(v)
			case k == "score":
				if f, ok := v.(float64); ok {
					score := float32(f)
					doc.Score = &score
				}
			case k == vectorField:
				if withVectors {
					doc.Vector = toVector(v)
				}
			case strings.HasPrefix(k, "_"):
				// _version_ and friends are index bookkeeping.
			default:
				doc.Payload[k] = v
			}
		}
		out = append(out, doc)
	}
	return out
}

func toVector(v any) []float32 {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	vec := make([]float32, 0, len(items))
	for _, item := range items {
		f, ok := item.(float64)
		if !ok {
			return nil
		}
		vec = append(vec, float32(f))
	}
	return vec
}
