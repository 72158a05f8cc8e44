package index

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// Document is the registry entry for one indexed document. Terms maps each
// term to its positions in the analyzed text.
type Document struct {
	Number     uint32
	URL        string
	Length     int
	Terms      map[string][]int
	Tombstoned bool
}

// Properties is a document's key/value property set. Values are strings,
// booleans, int64s, or float64s.
type Properties map[string]any

// NormalizeProperties converts numeric values to int64 or float64 and
// rejects values that are not scalars or strings.
func NormalizeProperties(in map[string]any) (Properties, error) {
	if in == nil {
		return nil, nil
	}
	out := make(Properties, len(in))
	for k, v := range in {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case string, bool, int64, float64:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, fmt.Errorf("value %d overflows int64: %w", x, apperrors.ErrInvalidInput)
		}
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("value %d overflows int64: %w", x, apperrors.ErrInvalidInput)
		}
		return int64(x), nil
	case float32:
		return float64(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", x.String(), apperrors.ErrInvalidInput)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T: %w", v, apperrors.ErrInvalidInput)
	}
}

func (p Properties) clone() Properties {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}
