package codec

import "math"

// Claims is the decoded token payload. Values are JSON primitives; numbers
// decode as float64.
type Claims map[string]any

// Int64 returns an integral numeric claim.
func (c Claims) Int64(name string) (int64, bool) {
	switch v := c[name].(type) {
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

// String returns a string claim.
func (c Claims) String(name string) (string, bool) {
	s, ok := c[name].(string)
	return s, ok
}
