package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/autom8ter/docstore/errors"
	"github.com/spf13/cast"
)

// DateKey is the field used to persist a date inside a json document: {"$date": "<RFC3339Nano>"}
const DateKey = "$date"

// Kind is the type tag of a Value. Kinds are declared in their sort order.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindDocument
	KindArray
	KindBool
	KindDate
)

var kindNames = map[Kind]string{
	KindNull:     "null",
	KindNumber:   "number",
	KindString:   "string",
	KindDocument: "document",
	KindArray:    "array",
	KindBool:     "bool",
	KindDate:     "date",
}

func (k Kind) String() string {
	return kindNames[k]
}

// ParseKind parses a kind name (null, number, string, document, array, bool, date)
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return k, nil
		}
	}
	return KindNull, errors.New(errors.Validation, "unknown kind: '%s'", name)
}

// Ordered returns true if values of the kind support range comparisons
func (k Kind) Ordered() bool {
	return k == KindNumber || k == KindString || k == KindDate
}

// Value is a tagged union over the values a document field may hold
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	t    time.Time
	arr  []Value
	doc  map[string]Value
}

// Null returns the null value
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String returns a string value
func String(s string) Value { return Value{kind: KindString, s: s} }

// Date returns a date value. Dates are kept in UTC.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t.UTC()} }

// Array returns an array value
func Array(values ...Value) Value { return Value{kind: KindArray, arr: values} }

// Object returns a nested document value
func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindDocument, doc: fields}
}

// ValueOf converts a json compatible go value into a Value.
// Maps of the form {"$date": "<RFC3339Nano>"} become dates.
func ValueOf(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case *Value:
		if v == nil {
			return Null(), nil
		}
		return *v, nil
	case *Document:
		if v == nil {
			return Null(), nil
		}
		return ValueOf(v.Value())
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case time.Time:
		return Date(v), nil
	case *time.Time:
		if v == nil {
			return Null(), nil
		}
		return Date(*v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Null(), errors.Wrap(err, errors.Validation, "invalid number: %s", v)
		}
		return Number(f), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return Number(cast.ToFloat64(v)), nil
	case []any:
		values := make([]Value, 0, len(v))
		for _, e := range v {
			ev, err := ValueOf(e)
			if err != nil {
				return Null(), err
			}
			values = append(values, ev)
		}
		return Array(values...), nil
	case []string:
		values := make([]Value, 0, len(v))
		for _, e := range v {
			values = append(values, String(e))
		}
		return Array(values...), nil
	case []float64:
		values := make([]Value, 0, len(v))
		for _, e := range v {
			values = append(values, Number(e))
		}
		return Array(values...), nil
	case map[string]any:
		if len(v) == 1 {
			if raw, ok := v[DateKey].(string); ok {
				t, err := time.Parse(time.RFC3339Nano, raw)
				if err != nil {
					return Null(), errors.Wrap(err, errors.Validation, "invalid date: %s", raw)
				}
				return Date(t), nil
			}
		}
		fields := make(map[string]Value, len(v))
		for k, e := range v {
			ev, err := ValueOf(e)
			if err != nil {
				return Null(), err
			}
			fields[k] = ev
		}
		return Object(fields), nil
	default:
		bits, err := json.Marshal(v)
		if err != nil {
			return Null(), errors.Wrap(err, errors.Validation, "unsupported value: %#v", v)
		}
		var decoded any
		if err := json.Unmarshal(bits, &decoded); err != nil {
			return Null(), errors.Wrap(err, errors.Validation, "unsupported value: %#v", v)
		}
		return ValueOf(decoded)
	}
}

// MustValueOf is like ValueOf but panics on unsupported input
func MustValueOf(v any) Value {
	val, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Kind returns the value's type tag
func (v Value) Kind() Kind { return v.kind }

// IsNull returns true if the value is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric value and whether the value is a number
func (v Value) Float() (float64, bool) { return v.n, v.kind == KindNumber }

// Str returns the string value and whether the value is a string
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Time returns the date value and whether the value is a date
func (v Value) Time() (time.Time, bool) { return v.t, v.kind == KindDate }

// Elements returns the array elements
func (v Value) Elements() []Value { return v.arr }

// Fields returns the nested document fields
func (v Value) Fields() map[string]Value { return v.doc }

// Interface returns the json compatible representation of the value.
// Dates are rendered as {"$date": "<RFC3339Nano>"}.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindDate:
		return map[string]any{DateKey: v.t.Format(time.RFC3339Nano)}
	case KindArray:
		out := make([]any, 0, len(v.arr))
		for _, e := range v.arr {
			out = append(out, e.Interface())
		}
		return out
	case KindDocument:
		out := make(map[string]any, len(v.doc))
		for k, e := range v.doc {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// Native returns the go representation of the value. Dates are rendered as time.Time.
func (v Value) Native() any {
	switch v.kind {
	case KindDate:
		return v.t
	case KindArray:
		out := make([]any, 0, len(v.arr))
		for _, e := range v.arr {
			out = append(out, e.Native())
		}
		return out
	case KindDocument:
		out := make(map[string]any, len(v.doc))
		for k, e := range v.doc {
			out[k] = e.Native()
		}
		return out
	default:
		return v.Interface()
	}
}

// MarshalJSON satisfies the json Marshaler interface
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON satisfies the json Unmarshaler interface
func (v *Value) UnmarshalJSON(bits []byte) error {
	var decoded any
	if err := json.Unmarshal(bits, &decoded); err != nil {
		return errors.Wrap(err, errors.Validation, "invalid value")
	}
	val, err := ValueOf(decoded)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// Key returns a canonical string for the value. Equal values produce equal keys.
func (v Value) Key() string {
	bits, _ := json.Marshal(v.Interface())
	return fmt.Sprintf("%d:%s", v.kind, bits)
}

// String renders the value as json
func (v Value) String() string {
	bits, _ := json.Marshal(v.Interface())
	return string(bits)
}

// Equal returns true if both values have the same kind and contents
func (v Value) Equal(other Value) bool {
	return Compare(v, other) == 0
}

// Compare returns -1, 0 or 1. Values of different kinds are ordered by kind.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		return cmpInt(int(a.kind), int(b.kind))
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case KindNumber:
		switch {
		case a.n < b.n:
			return -1
		case a.n > b.n:
			return 1
		case math.IsNaN(a.n) && !math.IsNaN(b.n):
			return -1
		case !math.IsNaN(a.n) && math.IsNaN(b.n):
			return 1
		default:
			return 0
		}
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindDate:
		return a.t.Compare(b.t)
	case KindArray:
		for i := 0; i < len(a.arr) && i < len(b.arr); i++ {
			if c := Compare(a.arr[i], b.arr[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(a.arr), len(b.arr))
	case KindDocument:
		aKeys, bKeys := sortedKeys(a.doc), sortedKeys(b.doc)
		for i := 0; i < len(aKeys) && i < len(bKeys); i++ {
			if c := strings.Compare(aKeys[i], bKeys[i]); c != 0 {
				return c
			}
			if c := Compare(a.doc[aKeys[i]], b.doc[bKeys[i]]); c != 0 {
				return c
			}
		}
		return cmpInt(len(aKeys), len(bKeys))
	}
	return 0
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
