package vectorstore

import (
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"github.com/spf13/cast"
)

// toString renders scalar payload values with cast. Lists and objects are
// rejected. Bools render lowercase ("true") and whole floats drop the
// fraction (1.0 renders "1"), where Python str() gives "True" and "1.0".
func toString(v any) (string, error) {
	switch v.(type) {
	case []any, map[string]any:
		return "", fmt.Errorf("unsupported payload type %T", v)
	}
	return cast.ToStringE(v)
}

// qdrantPayload flattens a Qdrant payload into plain Go values.
func qdrantPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		switch val := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = val.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = val.BoolValue
		}
	}
	return out
}

// chromemPayload widens chromem's string metadata.
func chromemPayload(metadata map[string]string) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
