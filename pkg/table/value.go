package table

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the coarse type of a cell value
type Kind int

const (
	// KindNull marks an absent cell (column missing from a short record)
	KindNull Kind = iota
	KindString
	KindNumber
	KindDate
)

// String returns the profiler name of the kind
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindString:
		return "string"
	default:
		return "null"
	}
}

// Value is a typed scalar held by a Row
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Time time.Time
}

// Null is the absent value
var Null = Value{}

// String builds a string value
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Number builds a numeric value
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// Date builds a date value
func Date(t time.Time) Value { return Value{Kind: KindDate, Time: t} }

// IsNull reports whether the value is absent
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Text renders the value the way it is used as a group key or loose-equality operand
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindDate:
		return v.Time.UTC().Format(time.RFC3339)
	default:
		return "undefined"
	}
}

// Float coerces the value to a number. ok is false when the value has no
// numeric reading (null, blank or non-numeric text).
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, !math.IsNaN(v.Num)
	case KindDate:
		return float64(v.Time.UnixMilli()), true
	case KindString:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// MarshalJSON encodes numbers as JSON numbers, dates as RFC3339 strings and
// nulls as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.Num)
	case KindDate:
		return json.Marshal(v.Time.UTC().Format(time.RFC3339))
	case KindString:
		return json.Marshal(v.Str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON literal. Strings are kept as strings, no cast
// is attempted.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FromAny converts a decoded JSON scalar into a Value
func FromAny(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null
	case float64:
		return Number(t)
	case int:
		return Number(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return String(t.String())
	case bool:
		return String(strconv.FormatBool(t))
	case string:
		return String(t)
	case time.Time:
		return Date(t)
	default:
		b, _ := json.Marshal(t)
		return String(string(b))
	}
}

// Row maps a column name to its typed cell
type Row map[string]Value

// Column returns the values of one column, in row order
func Column(rows []Row, name string) []Value {
	out := make([]Value, len(rows))
	for i, r := range rows {
		out[i] = r[name]
	}
	return out
}
