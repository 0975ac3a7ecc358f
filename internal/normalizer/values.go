package normalizer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// number coerces the loosely typed numeric values found in POS payloads.
// present reports whether v carried any value at all.
func number(v any) (f float64, present, ok bool) {
	switch n := v.(type) {
	case nil:
		return 0, false, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, true, false
		}
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false, false
		}
		var err error
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, true, false
		}
	default:
		return 0, true, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true, false
	}
	return f, true, true
}

func firstPresent(vals ...any) any {
	for _, v := range vals {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}
