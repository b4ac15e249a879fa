// Package validate implements Catzilla's validation engine: a compiled
// validator tree evaluated against a JSONValue tagged union, following
// spec.md §4.5's two-step "build a validator tree, then compile(model)"
// model and two-pass object validation.
//
// Grounded on air/binder.go's reflect-based per-field decode walk
// (bindData/setWithProperType), generalized from "bind into a Go struct"
// into "validate a JSONValue tree against a pre-compiled spec" so
// validation never needs runtime reflection on the hot path.
package validate

import (
	"encoding/json"
	"fmt"
)

// Kind is the discriminant of a JSONValue.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// JSONValue is a closed tagged union over the JSON data model, formalizing
// encoding/json's usual decode-to-interface{} shape into explicit variants
// instead of runtime type assertions scattered through validator code.
type JSONValue struct {
	Kind   Kind
	Bool   bool
	Number float64
	Str    string
	Arr    []*JSONValue
	Obj    map[string]*JSONValue

	// keys preserves object key declaration order from the source
	// document, independent of Go's randomized map iteration, so
	// two-pass object validation can walk fields in a stable order when
	// no ModelSpec field order applies (e.g. for an "additionalProperties"
	// pass over unknown keys).
	keys []string
}

// Null, Bool, Number, String, and Array build scalar and array JSONValues;
// each call returns a new value.
func Null() *JSONValue                  { return &JSONValue{Kind: KindNull} }
func Bool(b bool) *JSONValue            { return &JSONValue{Kind: KindBool, Bool: b} }
func Number(n float64) *JSONValue       { return &JSONValue{Kind: KindNumber, Number: n} }
func String(s string) *JSONValue        { return &JSONValue{Kind: KindString, Str: s} }
func Array(vs ...*JSONValue) *JSONValue { return &JSONValue{Kind: KindArray, Arr: vs} }

// Object builds a KindObject JSONValue, preserving the order keys are
// inserted in.
func Object() *JSONValue {
	return &JSONValue{Kind: KindObject, Obj: map[string]*JSONValue{}}
}

// Set inserts or overwrites a field on an object JSONValue, preserving
// first-insertion order in Keys.
func (v *JSONValue) Set(key string, val *JSONValue) *JSONValue {
	if v.Kind != KindObject {
		panic("validate: Set called on a non-object JSONValue")
	}
	if _, exists := v.Obj[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.Obj[key] = val
	return v
}

// Keys returns an object JSONValue's keys in declaration order.
func (v *JSONValue) Keys() []string {
	if v.Kind != KindObject {
		return nil
	}
	return v.keys
}

// Get returns an object field by key, or nil if absent or v isn't an
// object.
func (v *JSONValue) Get(key string) *JSONValue {
	if v.Kind != KindObject {
		return nil
	}
	return v.Obj[key]
}

// ParseJSON decodes raw JSON bytes into a JSONValue tree.
func ParseJSON(data []byte) (*JSONValue, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("validate: parsing JSON: %w", err)
	}
	return fromInterface(raw), nil
}

func fromInterface(raw interface{}) *JSONValue {
	switch v := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(v)
	case float64:
		return Number(v)
	case string:
		return String(v)
	case []interface{}:
		arr := make([]*JSONValue, len(v))
		for i, e := range v {
			arr[i] = fromInterface(e)
		}
		return &JSONValue{Kind: KindArray, Arr: arr}
	case map[string]interface{}:
		obj := Object()
		// encoding/json decodes objects into a plain map, so key
		// order here is arbitrary; callers that need the source
		// document's literal order should use a json.Decoder with
		// json.Token instead. For validation purposes (where field
		// order comes from the ModelSpec, not the wire document)
		// this is sufficient.
		for k, e := range v {
			obj.Set(k, fromInterface(e))
		}
		return obj
	default:
		return Null()
	}
}

// MarshalJSON renders a JSONValue back to its encoding/json-compatible
// byte representation, used to emit the trimmed object built by the
// validation engine's second pass.
func (v *JSONValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToInterface())
}

// ToInterface converts a JSONValue tree back into the plain
// interface{}/map/slice shape encoding/json expects.
func (v *JSONValue) ToInterface() interface{} {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	case KindString:
		return v.Str
	case KindArray:
		out := make([]interface{}, len(v.Arr))
		for i, e := range v.Arr {
			out[i] = e.ToInterface()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.Obj))
		for k, e := range v.Obj {
			out[k] = e.ToInterface()
		}
		return out
	default:
		return nil
	}
}
