package qdrant

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"docstorectl/internal/docstore"
)

// pointID converts a CLI-level identifier into a point ID. Unsigned
// integers become numeric IDs, everything else is treated as a UUID.
func pointID(id string) *qdrant.PointId {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return qdrant.NewIDNum(n)
	}
	return qdrant.NewID(id)
}

func pointIDString(id *qdrant.PointId) string {
	switch opt := id.GetPointIdOptions().(type) {
	case *qdrant.PointId_Num:
		return strconv.FormatUint(opt.Num, 10)
	case *qdrant.PointId_Uuid:
		return opt.Uuid
	default:
		return ""
	}
}

func pointsSelector(sel docstore.Selector) (*qdrant.PointsSelector, error) {
	if len(sel.IDs) > 0 {
		ids := make([]*qdrant.PointId, len(sel.IDs))
		for i, id := range sel.IDs {
			ids[i] = pointID(id)
		}
		return &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: ids},
			},
		}, nil
	}
	filter, err := compileFilter(sel.Filter)
	if err != nil {
		return nil, err
	}
	return &qdrant.PointsSelector{
		PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
	}, nil
}

// compileFilter turns a JSON object of field/value pairs into a
// conjunctive match filter. Values must be strings, booleans, or
// integers; anything else has no exact-match semantics here.
func compileFilter(expr string) (*qdrant.Filter, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(expr), &fields); err != nil {
		return nil, fmt.Errorf("%w: filter must be a JSON object of field/value pairs: %v", docstore.ErrInvalidInput, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: filter object is empty", docstore.ErrInvalidInput)
	}
	must := make([]*qdrant.Condition, 0, len(fields))
	for field, value := range fields {
		switch x := value.(type) {
		case string:
			must = append(must, qdrant.NewMatchKeyword(field, x))
		case bool:
			must = append(must, qdrant.NewMatchBool(field, x))
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("%w: filter field %q: non-integer numbers cannot be matched exactly", docstore.ErrInvalidInput, field)
			}
			must = append(must, qdrant.NewMatchInt(field, int64(x)))
		default:
			return nil, fmt.Errorf("%w: filter field %q has unsupported value type %T", docstore.ErrInvalidInput, field, value)
		}
	}
	return &qdrant.Filter{Must: must}, nil
}

func retrievedToDocuments(points []*qdrant.RetrievedPoint) []docstore.Document {
	docs := make([]docstore.Document, 0, len(points))
	for _, pt := range points {
		docs = append(docs, docstore.Document{
			ID:      pointIDString(pt.GetId()),
			Payload: payloadToMap(pt.GetPayload()),
			Vector:  vectorData(pt.GetVectors()),
		})
	}
	return docs
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_NullValue:
		return nil
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, valueToAny(item))
		}
		return out
	case *qdrant.Value_StructValue:
		return payloadToMap(kind.StructValue.GetFields())
	default:
		return nil
	}
}

func vectorData(vectors *qdrant.VectorsOutput) []float32 {
	if vectors == nil {
		return nil
	}
	return vectors.GetVector().GetData()
}

func parseDistance(name string) (qdrant.Distance, error) {
	switch strings.ToLower(name) {
	case "", "cosine":
		return qdrant.Distance_Cosine, nil
	case "euclid", "euclidean":
		return qdrant.Distance_Euclid, nil
	case "dot":
		return qdrant.Distance_Dot, nil
	case "manhattan":
		return qdrant.Distance_Manhattan, nil
	default:
		return 0, fmt.Errorf("%w: unknown distance metric %q (expected cosine, euclid, dot, or manhattan)", docstore.ErrInvalidInput, name)
	}
}

func parseFieldType(name string) (qdrant.FieldType, error) {
	switch strings.ToLower(name) {
	case "", "keyword":
		return qdrant.FieldType_FieldTypeKeyword, nil
	case "integer":
		return qdrant.FieldType_FieldTypeInteger, nil
	case "float":
		return qdrant.FieldType_FieldTypeFloat, nil
	case "bool":
		return qdrant.FieldType_FieldTypeBool, nil
	case "text":
		return qdrant.FieldType_FieldTypeText, nil
	default:
		return 0, fmt.Errorf("%w: unknown payload index type %q", docstore.ErrInvalidInput, name)
	}
}

// mapErr translates gRPC status codes into the shared error taxonomy.
// Qdrant reports some conditions only in the message text, so those are
// sniffed as a fallback.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", docstore.ErrNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", docstore.ErrAlreadyExists, err)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %v", docstore.ErrInvalidInput, err)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", docstore.ErrConnection, err)
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %v", docstore.ErrConnection, err)
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "doesn't exist"), strings.Contains(lower, "not found"):
		return fmt.Errorf("%w: %v", docstore.ErrNotFound, err)
	case strings.Contains(lower, "already exists"):
		return fmt.Errorf("%w: %v", docstore.ErrAlreadyExists, err)
	case strings.Contains(lower, "connection refused"):
		return fmt.Errorf("%w: %v", docstore.ErrConnection, err)
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, docstore.ErrNotFound)
}
