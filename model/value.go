package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ErrUnsupportedValue is returned when a JSON value is not one of the supported kinds.
var ErrUnsupportedValue = errors.New("unsupported value type")

// Kind enumerates the shapes a metric value can take.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "invalid"
	}
}

// Value is a metric value: string, number, bool, sequence or string-keyed mapping.
// The zero Value is invalid.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	seq  []Value
	m    map[string]Value
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Sequence returns an ordered sequence value.
func Sequence(items ...Value) Value {
	seq := make([]Value, len(items))
	copy(seq, items)
	return Value{kind: KindSequence, seq: seq}
}

// Numbers is a shorthand for a sequence of numbers.
func Numbers(fs ...float64) Value {
	seq := make([]Value, len(fs))
	for i, f := range fs {
		seq[i] = Number(f)
	}
	return Value{kind: KindSequence, seq: seq}
}

// Mapping returns a string-keyed mapping value.
func Mapping(fields map[string]Value) Value {
	m := make(map[string]Value, len(fields))
	for k, v := range fields {
		m[k] = v
	}
	return Value{kind: KindMapping, m: m}
}

// Kind reports the shape of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds one of the supported kinds.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsSequence() ([]Value, bool) { return v.seq, v.kind == KindSequence }

func (v Value) AsMapping() (map[string]Value, bool) { return v.m, v.kind == KindMapping }

// Field returns the mapping field with the given name.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindMapping {
		return Value{}, false
	}
	f, ok := v.m[name]
	return f, ok
}

// AsInteger returns the value as int64 when it is a number without fractional part.
func (v Value) AsInteger() (int64, bool) {
	if v.kind != KindNumber || math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return 0, false
	}
	if v.num != math.Trunc(v.num) || math.Abs(v.num) > 1<<53 {
		return 0, false
	}
	return int64(v.num), true
}

// Equal reports deep equality of two values.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindSequence:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, a := range v.m {
			b, ok := o.m[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return true
}

// MarshalJSON implements json.Marshaler. Mapping keys are written in sorted order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("%w: non-finite number", ErrUnsupportedValue)
		}
		return []byte(strconv.FormatFloat(v.num, 'f', -1, 64)), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindSequence:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.seq {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindMapping:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			b, err := v.m[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, ErrUnsupportedValue
	}
}

// UnmarshalJSON implements json.Unmarshaler. JSON null is rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromAny converts a decoded JSON document into a Value.
func FromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return Number(f), nil
	case []any:
		seq := make([]Value, len(t))
		for i, item := range t {
			parsed, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			seq[i] = parsed
		}
		return Value{kind: KindSequence, seq: seq}, nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			parsed, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			m[k] = parsed
		}
		return Value{kind: KindMapping, m: m}, nil
	case nil:
		return Value{}, fmt.Errorf("%w: null", ErrUnsupportedValue)
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}
}
