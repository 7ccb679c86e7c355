package docstore

import (
	"encoding/json"
	"math"
)

// String returns the string at key, or "" when missing or of another type.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Bool returns the bool at key, or false when missing or of another type.
func (d Document) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Int64 returns the integer at key. Backends decode numbers differently
// (JSON gives float64, CBOR gives int64 or uint64), so every shape is accepted.
func (d Document) Int64(key string) (int64, bool) {
	switch v := d[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return n, true
	default:
		return 0, false
	}
}
