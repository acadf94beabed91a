package handlers

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// number is a numeric body field sent either as a JSON number or as text.
// Decoding never fails; conversion is checked by Float and Int.
type number string

// UnmarshalJSON keeps the literal of a number, or the content of a string.
func (n *number) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = number(s)
		return nil
	}
	*n = number(bytes.TrimSpace(b))
	return nil
}

// UnmarshalText is used by form decoding.
func (n *number) UnmarshalText(b []byte) error {
	*n = number(b)
	return nil
}

// Float reports the value as a finite float64.
func (n *number) Float() (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(*n)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Int reports the value as an int. Fractional values are rejected.
func (n *number) Int() (int, bool) {
	s := strings.TrimSpace(string(*n))
	if v, err := strconv.ParseInt(s, 10, strconv.IntSize); err == nil {
		return int(v), true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != math.Trunc(v) || v < math.MinInt || v >= math.MaxInt {
		return 0, false
	}
	return int(v), true
}

// floatField converts an optional field. A nil field stays nil.
func floatField(n *number) (*float64, bool) {
	if n == nil {
		return nil, true
	}
	v, ok := n.Float()
	if !ok {
		return nil, false
	}
	return &v, true
}

func intField(n *number) (*int, bool) {
	if n == nil {
		return nil, true
	}
	v, ok := n.Int()
	if !ok {
		return nil, false
	}
	return &v, true
}
