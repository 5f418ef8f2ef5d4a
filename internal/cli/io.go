package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"docstorectl/internal/docstore"
)

// loadDocuments reads documents from an inline JSON array or a file,
// exactly one of which must be given. Each element must be an object
// with an "id" field; a "vector" field becomes the document vector and
// every other field goes into the payload.
func loadDocuments(inline, file string) ([]docstore.Document, error) {
	raw, err := inlineOrFile(inline, file, "documents")
	if err != nil {
		return nil, err
	}
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: documents must be a JSON array of objects: %v", docstore.ErrInvalidInput, err)
	}

	docs := make([]docstore.Document, 0, len(items))
	for i, item := range items {
		doc := docstore.Document{Payload: map[string]any{}}
		for k, v := range item {
			switch k {
			case "id":
				doc.ID = fmt.Sprint(v)
			case "vector":
				vec, err := toFloat32s(v)
				if err != nil {
					return nil, fmt.Errorf("%w: document %d: %v", docstore.ErrInvalidInput, i, err)
				}
				doc.Vector = vec
			default:
				doc.Payload[k] = v
			}
		}
		if doc.ID == "" {
			return nil, fmt.Errorf("%w: document %d is missing an id", docstore.ErrInvalidInput, i)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// loadIDs reads IDs from a comma-separated inline list or a
// one-ID-per-line file.
func loadIDs(inline, file string) ([]string, error) {
	if inline != "" && file != "" {
		return nil, fmt.Errorf("%w: ids given both inline and as a file", docstore.ErrInvalidInput)
	}
	var ids []string
	switch {
	case inline != "":
		for _, id := range strings.Split(inline, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	case file != "":
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", docstore.ErrInvalidInput, err)
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if id := strings.TrimSpace(scanner.Text()); id != "" {
				ids = append(ids, id)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading ids from %s: %w", file, err)
		}
	default:
		return nil, nil
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no ids found", docstore.ErrInvalidInput)
	}
	return ids, nil
}

// selector builds a Selector from the shared --ids/--ids-file/--filter
// flag trio. Validation of the exactly-one-of rule happens downstream.
func selector(idsInline, idsFile, filter string) (docstore.Selector, error) {
	ids, err := loadIDs(idsInline, idsFile)
	if err != nil {
		return docstore.Selector{}, err
	}
	return docstore.Selector{IDs: ids, Filter: filter}, nil
}

// loadVector reads a query vector from a comma-separated inline list or
// a JSON array file.
func loadVector(inline, file string) ([]float32, error) {
	if inline != "" && file != "" {
		return nil, fmt.Errorf("%w: vector given both inline and as a file", docstore.ErrInvalidInput)
	}
	switch {
	case inline != "":
		parts := strings.Split(inline, ",")
		vec := make([]float32, 0, len(parts))
		for _, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid vector component %q", docstore.ErrInvalidInput, p)
			}
			vec = append(vec, float32(f))
		}
		return vec, nil
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", docstore.ErrInvalidInput, err)
		}
		var vec []float32
		if err := json.Unmarshal(raw, &vec); err != nil {
			return nil, fmt.Errorf("%w: vector file must be a JSON array of numbers: %v", docstore.ErrInvalidInput, err)
		}
		return vec, nil
	default:
		return nil, nil
	}
}

// loadFieldsJSON parses a JSON object flag value used by the batch
// field mutations.
func loadFieldsJSON(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return nil, fmt.Errorf("%w: fields must be a JSON object: %v", docstore.ErrInvalidInput, err)
	}
	return fields, nil
}

func inlineOrFile(inline, file, what string) ([]byte, error) {
	switch {
	case inline != "" && file != "":
		return nil, fmt.Errorf("%w: %s given both inline and as a file", docstore.ErrInvalidInput, what)
	case inline != "":
		return []byte(inline), nil
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", docstore.ErrInvalidInput, err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: no %s provided", docstore.ErrInvalidInput, what)
	}
}

func toFloat32s(v any) ([]float32, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("vector must be an array of numbers")
	}
	vec := make([]float32, 0, len(items))
	for _, item := range items {
		f, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("vector must be an array of numbers")
		}
		vec = append(vec, float32(f))
	}
	return vec, nil
}
