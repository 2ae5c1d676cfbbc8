package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind tells which side of a flag Value is populated.
type ValueKind uint8

const (
	KindBool ValueKind = iota + 1
	KindString
)

// Value is a persistent flag value: either a boolean or a string.
// The zero Value is invalid and reports IsZero() == true.
type Value struct {
	kind ValueKind
	b    bool
	s    string
}

// Bool builds a boolean flag value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// String builds a string flag value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Kind returns the populated side of the value.
func (v Value) Kind() ValueKind { return v.kind }

// IsZero reports whether the value was never assigned.
func (v Value) IsZero() bool { return v.kind == 0 }

// AsBool returns the boolean and whether the value is a boolean.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsString returns the string and whether the value is a string.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// Truthy is true for Bool(true) and for strings strconv.ParseBool accepts as true
// ("1", "t", "true", ...). Legacy saves stored some markers as strings.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindString:
		b, err := strconv.ParseBool(v.s)
		return err == nil && b
	}
	return false
}

// Int parses a string value as a base-10 integer (chapter counters).
// Integral decimals such as "2.0" or "2e0" are accepted too.
func (v Value) Int() (int, bool) {
	if v.kind != KindString {
		return 0, false
	}
	s := strings.TrimSpace(v.s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	}
	return "<unset>"
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.b == o.b && v.s == o.s
}

// MarshalJSON encodes the value as a JSON bool or JSON string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindString:
		return json.Marshal(v.s)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts JSON bools, strings and numbers.
// Numbers are kept as their literal decimal text so counters read back as strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch data[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("invalid flag value %s: %w", data, err)
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid flag value %s: %w", data, err)
		}
		*v = String(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported flag value %s", data)
		}
		*v = String(n.String())
	}
	return nil
}

// ParseValue interprets CLI/HTTP text: "true"/"false" become booleans, anything else a string.
func ParseValue(raw string) Value {
	switch raw {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	return String(raw)
}

// Snapshot is a point-in-time copy of every flag in a store.
// A nil Snapshot means the store has not been loaded yet.
type Snapshot map[string]Value

// Get returns the value stored under key.
func (s Snapshot) Get(key string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	v, ok := s[key]
	return v, ok && !v.IsZero()
}

// Truthy reports whether key holds a true flag.
func (s Snapshot) Truthy(key string) bool {
	v, ok := s.Get(key)
	return ok && v.Truthy()
}

// Clone returns an independent copy (nil stays nil).
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
