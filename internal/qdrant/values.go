// internal/qdrant/values.go
package qdrant

import (
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// toQdrantPayload converts a payload map to the wire representation.
func toQdrantPayload(payload map[string]any) map[string]*qdrant.Value {
	if payload == nil {
		return nil
	}
	out := make(map[string]*qdrant.Value, len(payload))
	for k, v := range payload {
		out[k] = toQdrantValue(v)
	}
	return out
}

// toQdrantValue converts one payload value, recursing into maps and lists.
func toQdrantValue(v any) *qdrant.Value {
	switch val := v.(type) {
	case nil:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{NullValue: qdrant.NullValue_NULL_VALUE}}
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case int32:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
	case uint64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case float32:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(val)}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
	case map[string]any:
		fields := make(map[string]*qdrant.Value, len(val))
		for k, item := range val {
			fields[k] = toQdrantValue(item)
		}
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{
			StructValue: &qdrant.Struct{Fields: fields},
		}}
	case []any:
		items := make([]*qdrant.Value, len(val))
		for i, item := range val {
			items[i] = toQdrantValue(item)
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{
			ListValue: &qdrant.ListValue{Values: items},
		}}
	case []string:
		items := make([]*qdrant.Value, len(val))
		for i, item := range val {
			items[i] = toQdrantValue(item)
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{
			ListValue: &qdrant.ListValue{Values: items},
		}}
	default:
		// Fallback to string representation
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprintf("%v", val)}}
	}
}

// fromQdrantPayload converts a wire payload back to plain Go values.
func fromQdrantPayload(payload map[string]*qdrant.Value) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = fromQdrantValue(v)
	}
	return out
}

// fromQdrantValue converts one wire value, recursing into structs and lists.
func fromQdrantValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.Kind.(type) {
	case *qdrant.Value_NullValue:
		return nil
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StructValue:
		fields := val.StructValue.GetFields()
		out := make(map[string]any, len(fields))
		for k, item := range fields {
			out[k] = fromQdrantValue(item)
		}
		return out
	case *qdrant.Value_ListValue:
		values := val.ListValue.GetValues()
		out := make([]any, len(values))
		for i, item := range values {
			out[i] = fromQdrantValue(item)
		}
		return out
	default:
		return nil
	}
}

// extractPointID converts a wire point ID back to its string form.
func extractPointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	if num := id.GetNum(); num != 0 {
		return fmt.Sprintf("%d", num)
	}
	return ""
}

// extractNamedVector pulls one named vector out of a point's vector output.
// An empty name accepts the sole entry of a single-slot collection. Falls
// back to the unnamed vector for legacy collections.
func extractNamedVector(vectors *qdrant.VectorsOutput, name string) (string, []float32) {
	if vectors == nil {
		return "", nil
	}
	if m := vectors.GetVectors(); m != nil {
		named := m.GetVectors()
		if name != "" {
			vec, ok := named[name]
			if !ok {
				return "", nil
			}
			return name, vectorData(vec)
		}
		if len(named) == 1 {
			for slot, vec := range named {
				return slot, vectorData(vec)
			}
		}
		return "", nil
	}
	return "", vectorData(vectors.GetVector())
}

func vectorData(vec *qdrant.VectorOutput) []float32 {
	if vec == nil {
		return nil
	}
	if dense := vec.GetDense(); dense != nil {
		return dense.GetData()
	}
	return vec.GetData()
}
