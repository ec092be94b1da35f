package metadata

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unique"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindNull is the missing sentinel: the value a reader observes for
	// any field a spectrum does not carry.
	KindNull
	KindInt
	KindFloat
	KindString
	KindBool
	KindArray
)

var kindNames = [...]string{
	KindInvalid: "Invalid",
	KindNull:    "Null",
	KindInt:     "Int",
	KindFloat:   "Float",
	KindString:  "String",
	KindBool:    "Bool",
	KindArray:   "Array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Invalid"
}

// Value is one typed cell of a metadata table.
//
// It is a tagged union rather than an `any`: reading a retention time
// or an MS level never goes through reflection, and comparing values
// in a filter is a couple of field loads. Strings are interned, so a
// library with a million rows all tagged "QExactive" stores that name
// once.
//
// The zero Value is Invalid; absent fields read as Null.
//
// NOTE: This is also used for persistence; keep it stable.
type Value struct {
	Kind Kind                  `json:"k"`
	I64  int64                 `json:"i,omitempty"`
	F64  float64               `json:"f,omitempty"`
	s    unique.Handle[string] `json:"-"`
	B    bool                  `json:"b,omitempty"`
	A    []Value               `json:"a,omitempty"`
}

// Null returns the missing sentinel Value.
func Null() Value { return Value{Kind: KindNull} }

// Int returns an int64 Value.
func Int(v int64) Value { return Value{Kind: KindInt, I64: v} }

// Float returns a float64 Value. NaN is stored as-is; use Null for
// missing data.
func Float(v float64) Value { return Value{Kind: KindFloat, F64: v} }

// String returns an interned string Value.
func String(v string) Value { return Value{Kind: KindString, s: unique.Make(v)} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{Kind: KindBool, B: v} }

// Array returns an array Value.
func Array(v []Value) Value { return Value{Kind: KindArray, A: v} }

// IsNull reports whether the value is the missing sentinel.
func (v Value) IsNull() bool { return v.Kind == KindNull || v.Kind == KindInvalid }

// AsInt64 returns the int64 value if Kind is KindInt.
func (v Value) AsInt64() (int64, bool) {
	if v.Kind == KindInt {
		return v.I64, true
	}
	return 0, false
}

// AsFloat64 returns the float64 value if Kind is KindFloat. Integer
// values are widened, so a field parsed as 2 still reads as 2.0.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindFloat:
		return v.F64, true
	case KindInt:
		return float64(v.I64), true
	default:
		return 0, false
	}
}

// AsString returns the string value if Kind is KindString.
func (v Value) AsString() (string, bool) {
	if v.Kind == KindString {
		return v.s.Value(), true
	}
	return "", false
}

// AsBool returns the boolean value if Kind is KindBool.
func (v Value) AsBool() (bool, bool) {
	if v.Kind == KindBool {
		return v.B, true
	}
	return false, false
}

// AsArray returns the array value if Kind is KindArray.
func (v Value) AsArray() ([]Value, bool) {
	if v.Kind == KindArray {
		return v.A, true
	}
	return nil, false
}

// StringValue returns the string value if Kind is KindString, otherwise
// the empty string.
func (v Value) StringValue() string {
	if v.Kind == KindString {
		return v.s.Value()
	}
	return ""
}

// Key returns a stable string representation for use in maps.
//
// It distinguishes kinds that compare equal as text (Int(1) vs
// Bool(true) vs String("1")) and must remain stable across versions
// for persisted metadata usage.
func (v Value) Key() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInt:
		return "i:" + strconv.FormatInt(v.I64, 10)
	case KindFloat:
		return "f:" + strconv.FormatUint(math.Float64bits(v.F64), 16)
	case KindString:
		return "s:" + v.s.Value()
	case KindBool:
		if v.B {
			return "b:1"
		}
		return "b:0"
	case KindArray:
		var sb strings.Builder
		sb.WriteString("a:")
		for i := range v.A {
			if i > 0 {
				sb.WriteByte('\x1f')
			}
			sb.WriteString(v.A[i].Key())
		}
		return sb.String()
	default:
		return "invalid"
	}
}

// valueWire is the persisted shape of a Value. The interned string is
// materialized into S on the way out and re-interned on the way in.
type valueWire struct {
	Kind Kind    `json:"k"`
	I64  int64   `json:"i,omitempty"`
	F64  float64 `json:"f,omitempty"`
	S    string  `json:"s,omitempty"`
	B    bool    `json:"b,omitempty"`
	A    []Value `json:"a,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	w := valueWire{Kind: v.Kind, I64: v.I64, F64: v.F64, B: v.B, A: v.A}
	if v.Kind == KindString {
		w.S = v.s.Value()
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w valueWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*v = Value{Kind: w.Kind, I64: w.I64, F64: w.F64, B: w.B, A: w.A}
	if w.Kind == KindString {
		v.s = unique.Make(w.S)
	}
	return nil
}

func (v Value) clone() Value {
	if v.Kind != KindArray || len(v.A) == 0 {
		return v
	}
	a := make([]Value, len(v.A))
	for i := range v.A {
		a[i] = v.A[i].clone()
	}
	v.A = a
	return v
}

// Document is a single spectrum's metadata as a field-to-value map. It
// is the row view of a Table and the unit sources hand over when they
// parse one spectrum record.
type Document map[string]Value

// Clone creates a deep copy of the document, including nested arrays.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	c := make(Document, len(d))
	for k, v := range d {
		c[k] = v.clone()
	}
	return c
}
