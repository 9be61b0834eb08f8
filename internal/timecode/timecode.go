// Package timecode converts between clock-style time strings and seconds.
package timecode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidTime = errors.New("invalid time")

// ParseSeconds parses HH:MM:SS, MM:SS or plain seconds. Parts may carry a
// fraction ("1:02.5"). An empty string parses to 0.
func ParseSeconds(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q has too many parts", ErrInvalidTime, s)
	}

	var total float64
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return 0, fmt.Errorf("%w: %q has an empty part", ErrInvalidTime, s)
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || !finite(v) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		total = total*60 + v
	}
	return total, nil
}

// finite rejects the "nan" and "inf" spellings ParseFloat accepts.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FormatSeconds renders seconds as H:MM:SS (e.g. 0:01:30).
func FormatSeconds(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// Value is a time taken from JSON, either a string like "1:30" or a number of
// seconds. The zero Value means "not provided".
type Value struct {
	raw    string
	num    float64
	isNum  bool
	isNull bool
}

// String returns a Value holding a clock-style string.
func String(s string) Value { return Value{raw: s} }

// Seconds returns a Value holding a number of seconds.
func Seconds(v float64) Value { return Value{num: v, isNum: true} }

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Value{isNull: true}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value{raw: s}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: expected string or number", ErrInvalidTime)
	}
	*v = Value{num: f, isNum: true}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.isNum:
		return json.Marshal(v.num)
	case v.IsEmpty():
		return []byte("null"), nil
	default:
		return json.Marshal(v.raw)
	}
}

// IsEmpty reports whether no time was given.
func (v Value) IsEmpty() bool {
	return !v.isNum && strings.TrimSpace(v.raw) == ""
}

// Resolve returns the value in seconds.
func (v Value) Resolve() (float64, error) {
	if v.isNum {
		if !finite(v.num) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidTime, v.num)
		}
		return v.num, nil
	}
	return ParseSeconds(v.raw)
}
