package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseJSONScalarsAndComposites(t *testing.T) {
	v, err := ParseJSON([]byte(`{"name":"gopher","age":11,"tags":["go","mascot"],"active":true,"nickname":null}`))
	assert.NoError(t, err)
	assert.Equal(t, KindObject, v.Kind)

	assert.Equal(t, "gopher", v.Get("name").Str)
	assert.EqualValues(t, 11, v.Get("age").Number)
	assert.Equal(t, KindNull, v.Get("nickname").Kind)
	assert.True(t, v.Get("active").Bool)

	tags := v.Get("tags")
	assert.Equal(t, KindArray, tags.Kind)
	assert.Len(t, tags.Arr, 2)
	assert.Equal(t, "go", tags.Arr[0].Str)
}

func TestObjectPreservesInsertionOrder(t *testing.T) {
	o := Object()
	o.Set("z", String("last-declared-first"))
	o.Set("a", String("first-declared-second"))

	assert.Equal(t, []string{"z", "a"}, o.Keys())
}

func TestToInterfaceRoundTripsThroughMarshal(t *testing.T) {
	o := Object()
	o.Set("n", Number(3))
	o.Set("s", String("x"))

	b, err := o.MarshalJSON()
	assert.NoError(t, err)
	assert.Contains(t, string(b), `"n":3`)
	assert.Contains(t, string(b), `"s":"x"`)
}
