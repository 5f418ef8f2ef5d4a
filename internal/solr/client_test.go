package solr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"docstorectl/internal/config"
	"docstorectl/internal/docstore"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(config.SolrConfig{
		Connection: config.SolrConnection{
			URL:               srv.URL,
			NumShards:         1,
			ReplicationFactor: 1,
			ConfigName:        "_default",
			TimeoutSeconds:    5,
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(config.SolrConfig{})
	if !errors.Is(err, docstore.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestListCollections(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/solr/admin/collections" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("action") != "LIST" {
			t.Errorf("action = %s", r.URL.Query().Get("action"))
		}
		json.NewEncoder(w).Encode(map[string]any{"collections": []string{"a", "b"}})
	}))
	got, err := client.ListCollections(context.Background())
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if len(got) != 2 || got[0] != "a" {
		t.Errorf("got %v", got)
	}
}

func TestCreateCollectionParams(t *testing.T) {
	var query map[string]string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{
			"action":                r.URL.Query().Get("action"),
			"name":                  r.URL.Query().Get("name"),
			"numShards":             r.URL.Query().Get("numShards"),
			"replicationFactor":     r.URL.Query().Get("replicationFactor"),
			"collection.configName": r.URL.Query().Get("collection.configName"),
		}
		w.Write([]byte(`{}`))
	}))
	if err := client.CreateCollection(context.Background(), "docs", false); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	want := map[string]string{
		"action": "CREATE", "name": "docs", "numShards": "1",
		"replicationFactor": "1", "collection.configName": "_default",
	}
	for k, v := range want {
		if query[k] != v {
			t.Errorf("%s = %q, want %q", k, query[k], v)
		}
	}
}

func TestCreateCollectionConflict(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"msg":"collection already exists: docs"}}`))
	}))
	err := client.CreateCollection(context.Background(), "docs", false)
	if !errors.Is(err, docstore.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestDeleteCollectionMissing(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"msg":"Could not find collection : docs"}}`))
	}))
	err := client.DeleteCollection(context.Background(), "docs")
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCollectionInfo(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"cluster": map[string]any{
				"collections": map[string]any{
					"docs": map[string]any{"configName": "_default", "shards": map[string]any{}},
				},
			},
		})
	}))
	info, err := client.CollectionInfo(context.Background(), "docs")
	if err != nil {
		t.Fatalf("CollectionInfo: %v", err)
	}
	if info["configName"] != "_default" {
		t.Errorf("info = %v", info)
	}
}

func TestGetDocumentsStripsInternalFields(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{
				"numFound": 1,
				"docs": []map[string]any{{
					"id":        "1",
					"title":     "first",
					"_version_": 123,
					"_vector_":  []float64{0.1, 0.2},
				}},
			},
		})
	}))
	docs, err := client.GetDocuments(context.Background(), "docs", docstore.Selector{IDs: []string{"1"}}, false)
	if err != nil {
		t.Fatalf("GetDocuments: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs", len(docs))
	}
	doc := docs[0]
	if doc.ID != "1" || doc.Payload["title"] != "first" {
		t.Errorf("doc = %+v", doc)
	}
	if _, ok := doc.Payload["_version_"]; ok {
		t.Error("_version_ leaked into payload")
	}
	if doc.Vector != nil {
		t.Error("vector returned without withVectors")
	}
}

func TestGetDocumentsFieldListHonorsVectorFlag(t *testing.T) {
	var fl string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl = r.URL.Query().Get("fl")
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{"numFound": 0, "docs": []map[string]any{}},
		})
	}))
	sel := docstore.Selector{IDs: []string{"1"}}

	if _, err := client.GetDocuments(context.Background(), "docs", sel, false); err != nil {
		t.Fatalf("GetDocuments: %v", err)
	}
	if fl != "*" {
		t.Errorf("fl = %q, want %q: vector field must not be requested", fl, "*")
	}

	if _, err := client.GetDocuments(context.Background(), "docs", sel, true); err != nil {
		t.Fatalf("GetDocuments: %v", err)
	}
	if fl != "*,"+vectorField {
		t.Errorf("fl = %q, want %q", fl, "*,"+vectorField)
	}
}

func TestSearchFieldListHonorsVectorFlag(t *testing.T) {
	var fl string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl = r.URL.Query().Get("fl")
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{"numFound": 0, "docs": []map[string]any{}},
		})
	}))
	req := docstore.SearchRequest{Query: "*:*", WithVectors: true}
	if _, err := client.Search(context.Background(), "docs", req); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if fl != "*,score,"+vectorField {
		t.Errorf("fl = %q, want %q", fl, "*,score,"+vectorField)
	}
}

func TestGetDocumentsWithVectors(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{
				"numFound": 1,
				"docs":     []map[string]any{{"id": "1", "_vector_": []float64{0.5}}},
			},
		})
	}))
	docs, err := client.GetDocuments(context.Background(), "docs", docstore.Selector{IDs: []string{"1"}}, true)
	if err != nil {
		t.Fatalf("GetDocuments: %v", err)
	}
	if len(docs[0].Vector) != 1 || docs[0].Vector[0] != 0.5 {
		t.Errorf("vector = %v", docs[0].Vector)
	}
}

func TestSearchScoreAndFilter(t *testing.T) {
	var gotQuery map[string]string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"q":    r.URL.Query().Get("q"),
			"fq":   r.URL.Query().Get("fq"),
			"rows": r.URL.Query().Get("rows"),
			"fl":   r.URL.Query().Get("fl"),
		}
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{
				"numFound": 1,
				"docs":     []map[string]any{{"id": "1", "score": 1.5}},
			},
		})
	}))
	docs, err := client.Search(context.Background(), "docs", docstore.SearchRequest{
		Query:  "title:first",
		Filter: "kind:book",
		Limit:  5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery["q"] != "title:first" || gotQuery["fq"] != "kind:book" || gotQuery["rows"] != "5" {
		t.Errorf("query = %v", gotQuery)
	}
	if gotQuery["fl"] != "*,score" {
		t.Errorf("fl = %q", gotQuery["fl"])
	}
	if docs[0].Score == nil || *docs[0].Score != 1.5 {
		t.Errorf("score = %v", docs[0].Score)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	_, err := client.Search(context.Background(), "docs", docstore.SearchRequest{})
	if !errors.Is(err, docstore.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCount(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("rows") != "0" {
			t.Errorf("rows = %s", r.URL.Query().Get("rows"))
		}
		if r.URL.Query().Get("q") != "*:*" {
			t.Errorf("q = %s", r.URL.Query().Get("q"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{"numFound": 42, "docs": []map[string]any{}},
		})
	}))
	count, err := client.Count(context.Background(), "docs", "")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d", count)
	}
}

func TestRemoveDocumentsBody(t *testing.T) {
	var body map[string]any
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		if r.URL.Query().Get("commit") != "true" {
			t.Errorf("commit = %s", r.URL.Query().Get("commit"))
		}
		w.Write([]byte(`{}`))
	}))

	if err := client.RemoveDocuments(context.Background(), "docs", docstore.Selector{IDs: []string{"1", "2"}}); err != nil {
		t.Fatalf("RemoveDocuments: %v", err)
	}
	ids, ok := body["delete"].([]any)
	if !ok || len(ids) != 2 {
		t.Errorf("body = %v", body)
	}

	if err := client.RemoveDocuments(context.Background(), "docs", docstore.Selector{Filter: "kind:old"}); err != nil {
		t.Fatalf("RemoveDocuments by filter: %v", err)
	}
	del, ok := body["delete"].(map[string]any)
	if !ok || del["query"] != "kind:old" {
		t.Errorf("body = %v", body)
	}
}

func TestMutateFieldsAtomicUpdate(t *testing.T) {
	var body []map[string]any
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		w.Write([]byte(`{}`))
	}))

	sel := docstore.Selector{IDs: []string{"1"}}
	err := client.MutateFields(context.Background(), "docs", sel, docstore.FieldMutation{
		Add: map[string]any{"status": "done"},
	})
	if err != nil {
		t.Fatalf("MutateFields: %v", err)
	}
	if len(body) != 1 || body[0]["id"] != "1" {
		t.Fatalf("body = %v", body)
	}
	set, ok := body[0]["status"].(map[string]any)
	if !ok || set["set"] != "done" {
		t.Errorf("status update = %v", body[0]["status"])
	}

	err = client.MutateFields(context.Background(), "docs", sel, docstore.FieldMutation{
		Delete: []string{"stale"},
	})
	if err != nil {
		t.Fatalf("MutateFields delete: %v", err)
	}
	del, ok := body[0]["stale"].(map[string]any)
	if !ok {
		t.Fatalf("stale update = %v", body[0]["stale"])
	}
	if v, present := del["set"]; !present || v != nil {
		t.Errorf("delete must set the field to null, got %v", del)
	}

	err = client.MutateFields(context.Background(), "docs", sel, docstore.FieldMutation{
		Replace: map[string]any{"title": "new"},
	})
	if err != nil {
		t.Fatalf("MutateFields replace: %v", err)
	}
	if body[0]["title"] != "new" {
		t.Errorf("replace must re-add plain fields, got %v", body[0])
	}
}

func TestAddDocumentsBatchAndVectorField(t *testing.T) {
	var batches [][]map[string]any
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []map[string]any
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &batch)
		batches = append(batches, batch)
		w.Write([]byte(`{}`))
	}))

	docs := make([]docstore.Document, updateBatchSize+1)
	for i := range docs {
		docs[i] = docstore.Document{ID: "id", Payload: map[string]any{"n": i}}
	}
	docs[0].Vector = []float32{0.1}

	if err := client.AddDocuments(context.Background(), "docs", docs); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if len(batches[0]) != updateBatchSize || len(batches[1]) != 1 {
		t.Errorf("batch sizes = %d, %d", len(batches[0]), len(batches[1]))
	}
	if _, ok := batches[0][0][vectorField]; !ok {
		t.Error("vector field missing from indexed document")
	}
}

func TestAddDocumentsRequiresID(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be reached")
	}))
	err := client.AddDocuments(context.Background(), "docs", []docstore.Document{{}})
	if !errors.Is(err, docstore.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestConnectionRefused(t *testing.T) {
	client, err := New(config.SolrConfig{
		Connection: config.SolrConnection{URL: "http://127.0.0.1:1", TimeoutSeconds: 1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.ListCollections(context.Background()); !errors.Is(err, docstore.ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
}
