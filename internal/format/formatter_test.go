package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"docstorectl/internal/docstore"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"csv", FormatCSV, false},
		{"", FormatJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			if !errors.Is(err, docstore.ErrInvalidInput) {
				t.Errorf("Parse(%q) err = %v, want ErrInvalidInput", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Parse(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	f := New(FormatJSON, &buf)
	if err := f.Write(map[string]any{"name": "docs", "count": 3}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got["name"] != "docs" {
		t.Errorf("name = %v", got["name"])
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	f := New(FormatYAML, &buf)
	if err := f.Write(map[string]any{"name": "docs"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), "name: docs") {
		t.Errorf("yaml output missing key: %q", buf.String())
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	f := New(FormatCSV, &buf)
	rows := []any{
		map[string]any{"name": "a", "count": 1},
		map[string]any{"name": "b", "extra": true},
	}
	if err := f.Write(rows); err != nil {
		t.Fatalf("Write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), buf.String())
	}
	if lines[0] != "count,extra,name" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "1,,a" {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != ",true,b" {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestWriteCSVNestedCell(t *testing.T) {
	var buf bytes.Buffer
	f := New(FormatCSV, &buf)
	err := f.Write(map[string]any{"payload": map[string]any{"k": "v"}})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), `"{""k"":""v""}"`) {
		t.Errorf("nested cell not embedded as JSON: %q", buf.String())
	}
}

func TestWriteCSVRejectsNonTabular(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"bare scalar", "hello"},
		{"list of scalars", []any{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(FormatCSV, &bytes.Buffer{})
			if err := f.Write(tt.in); !errors.Is(err, docstore.ErrFormatting) {
				t.Errorf("err = %v, want ErrFormatting", err)
			}
		})
	}
}

func TestWriteDocuments(t *testing.T) {
	score := float32(0.9)
	docs := []docstore.Document{
		{ID: "1", Payload: map[string]any{"title": "first"}, Vector: []float32{0.1, 0.2}, Score: &score},
		{ID: "2"},
	}

	t.Run("vectors hidden by default", func(t *testing.T) {
		var buf bytes.Buffer
		f := New(FormatJSON, &buf)
		if err := f.WriteDocuments(docs, false); err != nil {
			t.Fatalf("WriteDocuments: %v", err)
		}
		if strings.Contains(buf.String(), "vector") {
			t.Errorf("vector leaked into output: %s", buf.String())
		}
		if !strings.Contains(buf.String(), `"score"`) {
			t.Error("score missing from output")
		}
	})

	t.Run("vectors shown when requested", func(t *testing.T) {
		var buf bytes.Buffer
		f := New(FormatJSON, &buf)
		if err := f.WriteDocuments(docs, true); err != nil {
			t.Fatalf("WriteDocuments: %v", err)
		}
		if !strings.Contains(buf.String(), `"vector"`) {
			t.Error("vector missing from output")
		}
	})

	t.Run("nil payload renders as empty mapping", func(t *testing.T) {
		var buf bytes.Buffer
		f := New(FormatJSON, &buf)
		if err := f.WriteDocuments(docs[1:], false); err != nil {
			t.Fatalf("WriteDocuments: %v", err)
		}
		var rows []map[string]any
		if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if _, ok := rows[0]["payload"].(map[string]any); !ok {
			t.Errorf("payload = %T, want mapping", rows[0]["payload"])
		}
	})
}
