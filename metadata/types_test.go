package metadata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueKinds(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		kind Kind
	}{
		{name: "null", v: Null(), kind: KindNull},
		{name: "int", v: Int(2), kind: KindInt},
		{name: "float", v: Float(529.23), kind: KindFloat},
		{name: "string", v: String("sample.msp"), kind: KindString},
		{name: "bool", v: Bool(true), kind: KindBool},
		{name: "array", v: Array([]Value{Int(1), Int(2)}), kind: KindArray},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.v.Kind)
		})
	}
}

func TestValueAccessors(t *testing.T) {
	i, ok := Int(3).AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(3), i)

	f, ok := Float(1.5).AsFloat64()
	require.True(t, ok)
	assert.Equal(t, 1.5, f)

	// Integer cells widen to float so numeric fields parsed as ints
	// still read through float accessors.
	f, ok = Int(2).AsFloat64()
	require.True(t, ok)
	assert.Equal(t, 2.0, f)

	s, ok := String("positive").AsString()
	require.True(t, ok)
	assert.Equal(t, "positive", s)

	b, ok := Bool(true).AsBool()
	require.True(t, ok)
	assert.True(t, b)

	_, ok = String("x").AsInt64()
	assert.False(t, ok)

	assert.True(t, Null().IsNull())
	assert.False(t, Int(0).IsNull())
}

func TestValueKeyStability(t *testing.T) {
	assert.Equal(t, "null", Null().Key())
	assert.Equal(t, "i:42", Int(42).Key())
	assert.Equal(t, "s:file.msp", String("file.msp").Key())
	assert.Equal(t, "b:1", Bool(true).Key())
	assert.Equal(t, "b:0", Bool(false).Key())

	// Same float, same key; different floats, different keys.
	assert.Equal(t, Float(1.25).Key(), Float(1.25).Key())
	assert.NotEqual(t, Float(1.25).Key(), Float(1.26).Key())
}

func TestValueJSONRoundTrip(t *testing.T) {
	doc := Document{
		"msLevel":    Int(2),
		"rtime":      Float(12.34),
		"dataOrigin": String("a.msp"),
		"centroided": Bool(true),
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var got Document
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, doc["msLevel"], got["msLevel"])
	assert.Equal(t, doc["rtime"], got["rtime"])
	assert.Equal(t, "a.msp", got["dataOrigin"].StringValue())
	b, ok := got["centroided"].AsBool()
	require.True(t, ok)
	assert.True(t, b)
}

func TestDocumentClone(t *testing.T) {
	doc := Document{
		"tags": Array([]Value{String("a"), String("b")}),
		"n":    Int(1),
	}

	clone := doc.Clone()
	clone["n"] = Int(2)
	arr, _ := clone["tags"].AsArray()
	arr[0] = String("changed")

	n, _ := doc["n"].AsInt64()
	assert.Equal(t, int64(1), n)
	orig, _ := doc["tags"].AsArray()
	assert.Equal(t, "a", orig[0].StringValue())
}

func TestFromAny(t *testing.T) {
	v, err := FromAny("text")
	require.NoError(t, err)
	assert.Equal(t, KindString, v.Kind)

	v, err = FromAny(42)
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind)

	v, err = FromAny(3.14)
	require.NoError(t, err)
	assert.Equal(t, KindFloat, v.Kind)

	v, err = FromAny(nil)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	v, err = FromAny([]float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, KindArray, v.Kind)

	_, err = FromAny(struct{}{})
	require.Error(t, err)
}
