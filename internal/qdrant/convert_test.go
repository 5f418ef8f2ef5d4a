package qdrant

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"docstorectl/internal/docstore"
)

func TestPointIDRoundTrip(t *testing.T) {
	tests := []struct {
		in string
	}{
		{"42"},
		{"0"},
		{"550e8400-e29b-41d4-a716-446655440000"},
		{"doc-key"},
	}
	for _, tt := range tests {
		if got := pointIDString(pointID(tt.in)); got != tt.in {
			t.Errorf("round trip of %q = %q", tt.in, got)
		}
	}
}

func TestPointIDNumericDetection(t *testing.T) {
	if _, ok := pointID("42").GetPointIdOptions().(*qdrant.PointId_Num); !ok {
		t.Error("42 should become a numeric ID")
	}
	if _, ok := pointID("abc").GetPointIdOptions().(*qdrant.PointId_Uuid); !ok {
		t.Error("abc should become a UUID ID")
	}
	// Negative numbers are not valid point numbers.
	if _, ok := pointID("-1").GetPointIdOptions().(*qdrant.PointId_Uuid); !ok {
		t.Error("-1 should fall back to a UUID ID")
	}
}

func TestCompileFilter(t *testing.T) {
	t.Run("valid conditions", func(t *testing.T) {
		filter, err := compileFilter(`{"kind":"book","year":2020,"archived":false}`)
		if err != nil {
			t.Fatalf("compileFilter: %v", err)
		}
		if len(filter.Must) != 3 {
			t.Errorf("got %d conditions, want 3", len(filter.Must))
		}
	})

	tests := []struct {
		name string
		in   string
	}{
		{"not json", "kind = book"},
		{"not an object", `["kind"]`},
		{"empty object", `{}`},
		{"fractional number", `{"score":1.5}`},
		{"nested object", `{"meta":{"a":1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := compileFilter(tt.in); !errors.Is(err, docstore.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	in := map[string]any{
		"title":  "first",
		"count":  int64(3),
		"score":  0.5,
		"tags":   []any{"a", "b"},
		"nested": map[string]any{"k": "v"},
		"flag":   true,
	}
	got := payloadToMap(qdrant.NewValueMap(in))
	if !reflect.DeepEqual(got, in) {
		t.Errorf("payload round trip:\n got %v\nwant %v", got, in)
	}
}

func TestParseDistance(t *testing.T) {
	tests := []struct {
		in      string
		want    qdrant.Distance
		wantErr bool
	}{
		{"", qdrant.Distance_Cosine, false},
		{"cosine", qdrant.Distance_Cosine, false},
		{"Cosine", qdrant.Distance_Cosine, false},
		{"euclid", qdrant.Distance_Euclid, false},
		{"dot", qdrant.Distance_Dot, false},
		{"manhattan", qdrant.Distance_Manhattan, false},
		{"hamming", 0, true},
	}
	for _, tt := range tests {
		got, err := parseDistance(tt.in)
		if tt.wantErr {
			if !errors.Is(err, docstore.ErrInvalidInput) {
				t.Errorf("parseDistance(%q) err = %v, want ErrInvalidInput", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parseDistance(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestParseFieldType(t *testing.T) {
	if got, err := parseFieldType(""); err != nil || got != qdrant.FieldType_FieldTypeKeyword {
		t.Errorf("empty type = %v, %v", got, err)
	}
	if _, err := parseFieldType("geo_point"); !errors.Is(err, docstore.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestMapErr(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"grpc not found", status.Error(codes.NotFound, "nope"), docstore.ErrNotFound},
		{"grpc already exists", status.Error(codes.AlreadyExists, "dup"), docstore.ErrAlreadyExists},
		{"grpc invalid", status.Error(codes.InvalidArgument, "bad"), docstore.ErrInvalidInput},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), docstore.ErrConnection},
		{"grpc unauthenticated", status.Error(codes.Unauthenticated, "key"), docstore.ErrConnection},
		{"message doesn't exist", fmt.Errorf("collection `docs` doesn't exist"), docstore.ErrNotFound},
		{"message already exists", fmt.Errorf("collection docs already exists"), docstore.ErrAlreadyExists},
		{"message refused", fmt.Errorf("dial tcp: connection refused"), docstore.ErrConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapErr(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Errorf("mapErr(nil) = %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("mapErr(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMapErrPassesUnknownThrough(t *testing.T) {
	in := fmt.Errorf("something else")
	if got := mapErr(in); got != in {
		t.Errorf("mapErr rewrote an unclassified error: %v", got)
	}
}
