package normalize

import (
	"encoding/json"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// field returns the first non-null value stored under one of aliases.
// Exact key matches take precedence over case-insensitive ones. Among keys
// that differ only by case, the lexically smallest wins.
func field(m map[string]any, aliases ...string) any {
	for _, a := range aliases {
		if v, ok := m[a]; ok && v != nil {
			return v
		}
	}
	keys := slices.Sorted(maps.Keys(m))
	for _, a := range aliases {
		for _, k := range keys {
			if v := m[k]; v != nil && strings.EqualFold(k, a) {
				return v
			}
		}
	}
	return nil
}

func toFloat(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case json.Number:
		f, _ = x.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(x), 64)
	case bool:
		if x {
			f = 1
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func toInt(v any) int64 {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n
		}
	}
	f := toFloat(v)
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func toBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(x))
		return b
	case float64, json.Number:
		return toFloat(x) != 0
	}
	return false
}

// toTime parses an RFC 3339 timestamp. Unparseable values become the zero
// time, which sorts after every real timestamp in newest-first order.
func toTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
