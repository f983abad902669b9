package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueConstructors(t *testing.T) {
	assert.True(t, Null().IsNull())

	i, ok := Int(42).AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(42), i)

	f, ok := Float(2.5).AsFloat64()
	require.True(t, ok)
	assert.Equal(t, 2.5, f)

	s, ok := String("hi").AsString()
	require.True(t, ok)
	assert.Equal(t, "hi", s)

	b, ok := Bool(true).AsBool()
	require.True(t, ok)
	assert.True(t, b)

	// Cross-kind accessors fail closed.
	_, ok = Int(1).AsString()
	assert.False(t, ok)
}

func TestValueEqual(t *testing.T) {
	assert.True(t, Null().Equal(Null()))
	assert.False(t, Null().Equal(Int(0)))

	// Numbers compare across kinds.
	assert.True(t, Int(2).Equal(Float(2.0)))
	assert.False(t, Int(2).Equal(Float(2.5)))

	assert.True(t, String("a").Equal(String("a")))
	assert.False(t, String("a").Equal(Bool(true)))
}

func TestValueLess(t *testing.T) {
	// null < numbers < strings < bools.
	assert.True(t, Null().Less(Int(0)))
	assert.True(t, Int(99).Less(String("")))
	assert.True(t, String("z").Less(Bool(false)))

	assert.True(t, Int(1).Less(Int(2)))
	assert.True(t, Int(1).Less(Float(1.5)))
	assert.True(t, String("a").Less(String("b")))
	assert.True(t, Bool(false).Less(Bool(true)))
	assert.False(t, Int(2).Less(Int(2)))
}

func TestValueKeyStable(t *testing.T) {
	assert.Equal(t, "null", Null().Key())
	assert.Equal(t, "i:7", Int(7).Key())
	assert.Equal(t, "s:x", String("x").Key())
	assert.Equal(t, "b:1", Bool(true).Key())
	assert.NotEqual(t, Int(1).Key(), Float(1).Key())
}

func TestValueJSONRoundTrip(t *testing.T) {
	for _, v := range []Value{Null(), Int(-3), Float(1.25), String("hello"), Bool(true)} {
		data, err := json.Marshal(v)
		require.NoError(t, err)

		var got Value
		require.NoError(t, json.Unmarshal(data, &got))
		assert.True(t, v.Equal(got), "round trip of %s", v.Key())
	}
}
