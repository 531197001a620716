package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/corleone113/waypoint/internal/ir"
)

// marshalPayload converts a payload to canonical JSON TEXT for storage.
func marshalPayload(payload any) (string, error) {
	data, err := ir.MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses stored JSON TEXT back into plain Go values.
// Integral numbers that fit in an int decode as int so handlers see the
// same types they were committed with; other numbers decode as float64.
func unmarshalPayload(data string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return convertNumbers(v), nil
}

func convertNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil && i >= math.MinInt && i <= math.MaxInt {
			return int(i)
		}
		f, _ := val.Float64()
		return f
	case []any:
		for i, elem := range val {
			val[i] = convertNumbers(elem)
		}
		return val
	case map[string]any:
		for k, elem := range val {
			val[k] = convertNumbers(elem)
		}
		return val
	}
	return v
}
