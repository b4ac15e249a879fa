package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func userSpec() *ModelSpec {
	spec := NewModelSpec(OfObject(
		Field{
			Name:      "name",
			Validator: OfLength(1, 64, true, true),
			Required:  true,
		},
		Field{
			Name:      "age",
			Validator: InRange(0, 150, true, true),
			Required:  true,
		},
		Field{
			Name:      "email",
			Validator: MatchingPattern(`^[^@]+@[^@]+$`),
			Required:  false,
			Default:   String("unknown@example.com"),
		},
	))
	if err := Compile(spec); err != nil {
		panic(err)
	}
	return spec
}

func TestValidateAcceptsWellFormedObject(t *testing.T) {
	spec := userSpec()
	in, _ := ParseJSON([]byte(`{"name":"Ada","age":36,"email":"ada@example.com"}`))

	out, err := Validate(spec, in)
	assert.NoError(t, err)
	assert.Equal(t, "Ada", out.Get("name").Str)
	assert.EqualValues(t, 36, out.Get("age").Number)
	assert.Equal(t, "ada@example.com", out.Get("email").Str)
}

func TestValidateFillsDefaultForMissingOptionalField(t *testing.T) {
	spec := userSpec()
	in, _ := ParseJSON([]byte(`{"name":"Ada","age":36}`))

	out, err := Validate(spec, in)
	assert.NoError(t, err)
	assert.Equal(t, "unknown@example.com", out.Get("email").Str)
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	spec := userSpec()
	in, _ := ParseJSON([]byte(`{"age":36}`))

	_, err := Validate(spec, in)
	if assert.Error(t, err) {
		errs := err.(Errors)
		assert.Len(t, errs, 1)
		assert.Equal(t, Required, errs[0].Kind)
		assert.Equal(t, "name", errs[0].Field)
	}
}

func TestValidateTwoPassNeverBuildsOutputWhenDirty(t *testing.T) {
	spec := userSpec()
	in, _ := ParseJSON([]byte(`{"name":"","age":999,"email":"not-an-email"}`))

	out, err := Validate(spec, in)
	assert.Nil(t, out)
	if assert.Error(t, err) {
		errs := err.(Errors)
		assert.Len(t, errs, 3)
	}
}

func TestValidateRangeOutsideBounds(t *testing.T) {
	spec := NewModelSpec(InRange(0, 10, true, true))
	assert.NoError(t, Compile(spec))

	_, err := Validate(spec, Number(20))
	if assert.Error(t, err) {
		errs := err.(Errors)
		assert.Equal(t, Range, errs[0].Kind)
	}
}

func TestValidateArrayElementErrorsCarryIndexedFieldPath(t *testing.T) {
	spec := NewModelSpec(OfArray(OfType(KindString)))
	assert.NoError(t, Compile(spec))

	in := Array(String("ok"), Number(5))
	_, err := Validate(spec, in)
	if assert.Error(t, err) {
		errs := err.(Errors)
		assert.Equal(t, "[1]", errs[0].Field)
	}
}

func TestValidatePanicsIfNotCompiled(t *testing.T) {
	spec := NewModelSpec(Any())
	assert.Panics(t, func() {
		Validate(spec, Null())
	})
}

func TestCompileIsIdempotent(t *testing.T) {
	spec := NewModelSpec(MatchingPattern(`^ok$`))
	assert.NoError(t, Compile(spec))
	assert.NoError(t, Compile(spec))
}

func TestCustomValidatorFailureMessage(t *testing.T) {
	spec := NewModelSpec(WithCustom(func(v *JSONValue) (string, bool) {
		if v.Kind == KindString && v.Str == "forbidden" {
			return "value is on the blocklist", false
		}
		return "", true
	}))
	assert.NoError(t, Compile(spec))

	_, err := Validate(spec, String("forbidden"))
	if assert.Error(t, err) {
		errs := err.(Errors)
		assert.Equal(t, Custom, errs[0].Kind)
	}
}

func TestOneOfAcceptsFirstMatchingOption(t *testing.T) {
	spec := NewModelSpec(OneOf(OfType(KindString), OfType(KindNumber)))
	assert.NoError(t, Compile(spec))

	out, err := Validate(spec, Number(42))
	assert.NoError(t, err)
	assert.EqualValues(t, 42, out.Number)
}

func TestOneOfRejectsValueMatchingNoOption(t *testing.T) {
	spec := NewModelSpec(OneOf(OfType(KindString), OfType(KindNumber)))
	assert.NoError(t, Compile(spec))

	_, err := Validate(spec, Bool(true))
	assert.Error(t, err)
}

func TestStatsAccumulate(t *testing.T) {
	spec := NewModelSpec(Any())
	assert.NoError(t, Compile(spec))

	before, _ := Stats()
	Validate(spec, Null())
	after, _ := Stats()
	assert.Greater(t, after, before)
}
