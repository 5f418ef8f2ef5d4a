package format

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"docstorectl/internal/docstore"
)

// Format is an output rendering format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// Parse validates a format name given on the command line.
func Parse(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatYAML, FormatCSV:
		return Format(s), nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unsupported output format %q (expected json, yaml, or csv)", docstore.ErrInvalidInput, s)
	}
}

// Formatter normalizes values and renders them in a fixed output format.
type Formatter struct {
	format Format
	out    io.Writer
}

// New creates a Formatter writing to out.
func New(format Format, out io.Writer) *Formatter {
	return &Formatter{format: format, out: out}
}

// Write normalizes v and renders it. Normalization itself never fails;
// renderer errors surface as ErrFormatting.
func (f *Formatter) Write(v any) error {
	cleaned := Normalize(v)
	switch f.format {
	case FormatYAML:
		data, err := yaml.Marshal(cleaned)
		if err != nil {
			return fmt.Errorf("%w: %v", docstore.ErrFormatting, err)
		}
		_, err = f.out.Write(data)
		return err
	case FormatCSV:
		return f.writeCSV(cleaned)
	default:
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cleaned); err != nil {
			return fmt.Errorf("%w: %v", docstore.ErrFormatting, err)
		}
		return nil
	}
}

// WriteDocuments renders documents, including vector data only when
// withVectors is set. Callers pass the same flag value they used for the
// backend call so output and retrieval always agree.
func (f *Formatter) WriteDocuments(docs []docstore.Document, withVectors bool) error {
	rows := make([]any, 0, len(docs))
	for _, doc := range docs {
		row := map[string]any{"id": doc.ID}
		if doc.Payload != nil {
			row["payload"] = doc.Payload
		} else {
			row["payload"] = map[string]any{}
		}
		if doc.Score != nil {
			row["score"] = *doc.Score
		}
		if withVectors && len(doc.Vector) > 0 {
			row["vector"] = doc.Vector
		}
		rows = append(rows, row)
	}
	return f.Write(rows)
}

// writeCSV renders a mapping as one row, or a sequence of mappings as a
// header plus one row per element. Anything else cannot be tabulated.
func (f *Formatter) writeCSV(v any) error {
	var rows []map[string]any
	switch x := v.(type) {
	case map[string]any:
		rows = []map[string]any{x}
	case []any:
		rows = make([]map[string]any, 0, len(x))
		for _, item := range x {
			m, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: csv output requires a sequence of mappings, found %T element", docstore.ErrFormatting, item)
			}
			rows = append(rows, m)
		}
	default:
		return fmt.Errorf("%w: csv output requires a mapping or sequence of mappings, got %T", docstore.ErrFormatting, v)
	}

	fields := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			fields[k] = true
		}
	}
	header := make([]string, 0, len(fields))
	for k := range fields {
		header = append(header, k)
	}
	sort.Strings(header)

	w := csv.NewWriter(f.out)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("%w: %v", docstore.ErrFormatting, err)
	}
	for _, row := range rows {
		record := make([]string, len(header))
		for i, k := range header {
			cell, err := csvCell(row[k])
			if err != nil {
				return err
			}
			record[i] = cell
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("%w: %v", docstore.ErrFormatting, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: %v", docstore.ErrFormatting, err)
	}
	return nil
}

// csvCell flattens a normalized value into a single CSV cell. Nested
// containers are embedded as compact JSON.
func csvCell(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	default:
		if isScalar(v) {
			return fmt.Sprint(v), nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("%w: %v", docstore.ErrFormatting, err)
		}
		return string(data), nil
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		json.Number:
		return true
	}
	return false
}
