package validate

import (
	"fmt"
	"regexp"
	"sync/atomic"
	"time"
)

// ErrorKind classifies why a value failed validation, per spec.md §4.5.
type ErrorKind uint8

const (
	Type ErrorKind = iota
	Range
	Length
	Pattern
	Required
	Custom
	Memory
)

func (k ErrorKind) String() string {
	switch k {
	case Type:
		return "type"
	case Range:
		return "range"
	case Length:
		return "length"
	case Pattern:
		return "pattern"
	case Required:
		return "required"
	case Custom:
		return "custom"
	case Memory:
		return "memory"
	default:
		return "unknown"
	}
}

// Error is one validation failure.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validate: %s: %s (%s)", e.Field, e.Message, e.Kind)
	}
	return fmt.Sprintf("validate: %s (%s)", e.Message, e.Kind)
}

// Errors is the aggregate error returned when one or more fields fail.
type Errors []*Error

func (e Errors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("validate: %d field(s) failed validation", len(e))
}

// Context accumulates validation errors for one Validate call. Errors are
// pushed stack-style — each new error is prepended, so Context.Errors ends
// up in reverse-insertion order, matching spec.md §4.5's "errors are
// accumulated in a context list in reverse-insertion order (stack); tests
// may rely on presence, not ordering."
type Context struct {
	Errors Errors
}

func (c *Context) push(e *Error) {
	c.Errors = append(Errors{e}, c.Errors...)
}

// ValidatorKind discriminates the Validator sum type. It is distinct from
// Kind (json.go), which discriminates JSONValue itself — a TypeKind
// Validator's Want field is a Kind, but the Validator node it lives on is
// tagged with a ValidatorKind.
type ValidatorKind uint8

const (
	// AnyKind accepts any JSONValue unconditionally.
	AnyKind ValidatorKind = iota
	TypeKind
	RangeKind
	LengthKind
	PatternKind
	CustomKind
	ObjectKind
	ArrayKind
	UnionKind
)

// CustomFunc is a user-supplied validator invoked with the raw value;
// returning a non-empty message fails validation with ErrorKind Custom.
type CustomFunc func(v *JSONValue) (message string, ok bool)

// Validator is a tagged union over every validator node kind Catzilla
// supports, compiled once via Compile and then read-only for the lifetime
// of a ModelSpec — formalizing spec.md §4.5's "construct a validator tree,
// then compile(model)" two-step model the same way JSONValue formalizes
// the JSON data model.
type Validator struct {
	Kind ValidatorKind

	// TypeKind
	Want Kind // the JSONValue Kind required

	// RangeKind (numbers)
	Min, Max       float64
	HasMin, HasMax bool

	// LengthKind (strings and arrays)
	MinLen, MaxLen       int
	HasMinLen, HasMaxLen bool

	// PatternKind (strings)
	Pattern string
	re      *regexp.Regexp

	// CustomKind
	Custom CustomFunc

	// ObjectKind
	Fields []Field

	// ArrayKind
	Elem *Validator

	// UnionKind
	Options []*Validator

	compiled bool
}

// Field is one declared field of an ObjectKind Validator.
type Field struct {
	Name      string
	Validator *Validator
	Required  bool
	// Default is used to fill an absent optional field in the second
	// validation pass's trimmed output. A nil Default becomes JSON
	// null, per spec.md §4.5: "missing optional fields get their
	// default, or null if none."
	Default *JSONValue
}

// ModelSpec is the root of a compiled validator tree.
type ModelSpec struct {
	Root     *Validator
	compiled bool
}

// NewModelSpec wraps root as an uncompiled ModelSpec.
func NewModelSpec(root *Validator) *ModelSpec {
	return &ModelSpec{Root: root}
}

// Any returns a Validator that accepts any value.
func Any() *Validator { return &Validator{Kind: AnyKind} }

// OfType returns a Validator requiring the JSONValue's Kind to equal want.
func OfType(want Kind) *Validator { return &Validator{Kind: TypeKind, Want: want} }

// InRange returns a numeric range Validator. Pass hasMin/hasMax false to
// leave that bound unchecked.
func InRange(min, max float64, hasMin, hasMax bool) *Validator {
	return &Validator{Kind: RangeKind, Min: min, Max: max, HasMin: hasMin, HasMax: hasMax}
}

// OfLength returns a string/array length Validator.
func OfLength(minLen, maxLen int, hasMin, hasMax bool) *Validator {
	return &Validator{Kind: LengthKind, MinLen: minLen, MaxLen: maxLen, HasMinLen: hasMin, HasMaxLen: hasMax}
}

// MatchingPattern returns a regex Validator. The pattern is compiled once
// at Compile time, not on every Validate call, per spec.md §4.5 "(a)
// pre-compiles all regex patterns once".
func MatchingPattern(pattern string) *Validator {
	return &Validator{Kind: PatternKind, Pattern: pattern}
}

// WithCustom returns a Validator delegating to fn.
func WithCustom(fn CustomFunc) *Validator {
	return &Validator{Kind: CustomKind, Custom: fn}
}

// OfObject returns an ObjectKind Validator over the given fields, in
// declaration order.
func OfObject(fields ...Field) *Validator {
	return &Validator{Kind: ObjectKind, Fields: fields}
}

// OfArray returns an ArrayKind Validator whose elements must each satisfy
// elem.
func OfArray(elem *Validator) *Validator {
	return &Validator{Kind: ArrayKind, Elem: elem}
}

// OneOf returns a UnionKind Validator requiring v to satisfy at least one
// of options, per spec.md §3's `Union([Validator])` sum-type member.
// Validation succeeds at the first option that produces no errors; if
// every option fails, the reported Errors are those of the option that got
// furthest (fewest errors), since a union with no matching arm gives no
// single "correct" field path to blame.
func OneOf(options ...*Validator) *Validator {
	return &Validator{Kind: UnionKind, Options: options}
}

// Compile pre-compiles every regex pattern in the tree exactly once and
// marks spec immutable — spec.md §4.5's two-step "construct a validator
// tree, then compile(model)" model. Compile is idempotent; calling it
// twice on the same spec is a no-op.
func Compile(spec *ModelSpec) error {
	if spec.compiled {
		return nil
	}
	if err := compileNode(spec.Root); err != nil {
		return err
	}
	spec.compiled = true
	return nil
}

func compileNode(v *Validator) error {
	if v == nil {
		return nil
	}
	if v.compiled {
		return nil
	}

	switch v.Kind {
	case PatternKind:
		re, err := regexp.Compile(v.Pattern)
		if err != nil {
			return fmt.Errorf("validate: compiling pattern %q: %w", v.Pattern, err)
		}
		v.re = re
	case ObjectKind:
		for i := range v.Fields {
			if err := compileNode(v.Fields[i].Validator); err != nil {
				return err
			}
		}
	case ArrayKind:
		if err := compileNode(v.Elem); err != nil {
			return err
		}
	case UnionKind:
		for _, opt := range v.Options {
			if err := compileNode(opt); err != nil {
				return err
			}
		}
	}

	v.compiled = true
	return nil
}

// stats are process-global atomics, per spec.md §4.5: "Stats (count, total
// ns) are process-global atomics."
var (
	statValidateCount int64
	statValidateNanos int64
)

// Stats returns the process-wide validation call count and cumulative time
// spent validating, in nanoseconds.
func Stats() (count, nanos int64) {
	return atomic.LoadInt64(&statValidateCount), atomic.LoadInt64(&statValidateNanos)
}

// Validate runs spec's compiled tree against v. If any field fails, the
// aggregated Errors is returned and the second (trimming) pass never runs,
// per spec.md §4.5: "first pass collects all field errors; only if the
// pass is clean does the second pass build a new JSON object."
//
// spec must have been compiled with Compile first; Validate panics
// otherwise, the same way a nil-pointer dereference would signal
// programmer error rather than a validation failure.
func Validate(spec *ModelSpec, v *JSONValue) (*JSONValue, error) {
	if !spec.compiled {
		panic("validate: ModelSpec used before Compile")
	}

	start := time.Now()
	defer func() {
		atomic.AddInt64(&statValidateCount, 1)
		atomic.AddInt64(&statValidateNanos, int64(time.Since(start)))
	}()

	ctx := &Context{}
	out := validateNode(spec.Root, v, "", ctx)
	if len(ctx.Errors) > 0 {
		return nil, ctx.Errors
	}
	return out, nil
}

// validateNode runs one validator node against v, recording failures into
// ctx and returning the (possibly trimmed, for objects) output value. The
// returned value is only meaningful when ctx accumulated no new errors for
// this subtree — callers check ctx.Errors themselves after the top-level
// call returns.
func validateNode(val *Validator, v *JSONValue, field string, ctx *Context) *JSONValue {
	if val == nil || val.Kind == AnyKind {
		return v
	}

	if v == nil {
		v = Null()
	}

	switch val.Kind {
	case TypeKind:
		if v.Kind != val.Want {
			ctx.push(&Error{Kind: Type, Field: field, Message: fmt.Sprintf("expected %s, got %s", val.Want, v.Kind)})
		}
		return v

	case RangeKind:
		if v.Kind != KindNumber {
			ctx.push(&Error{Kind: Type, Field: field, Message: "expected number for range validation"})
			return v
		}
		if val.HasMin && v.Number < val.Min {
			ctx.push(&Error{Kind: Range, Field: field, Message: fmt.Sprintf("%g is below minimum %g", v.Number, val.Min)})
		}
		if val.HasMax && v.Number > val.Max {
			ctx.push(&Error{Kind: Range, Field: field, Message: fmt.Sprintf("%g is above maximum %g", v.Number, val.Max)})
		}
		return v

	case LengthKind:
		n, ok := lengthOf(v)
		if !ok {
			ctx.push(&Error{Kind: Type, Field: field, Message: "expected string or array for length validation"})
			return v
		}
		if val.HasMinLen && n < val.MinLen {
			ctx.push(&Error{Kind: Length, Field: field, Message: fmt.Sprintf("length %d is below minimum %d", n, val.MinLen)})
		}
		if val.HasMaxLen && n > val.MaxLen {
			ctx.push(&Error{Kind: Length, Field: field, Message: fmt.Sprintf("length %d is above maximum %d", n, val.MaxLen)})
		}
		return v

	case PatternKind:
		if v.Kind != KindString {
			ctx.push(&Error{Kind: Type, Field: field, Message: "expected string for pattern validation"})
			return v
		}
		if val.re == nil {
			ctx.push(&Error{Kind: Memory, Field: field, Message: "pattern validator used before Compile"})
			return v
		}
		if !val.re.MatchString(v.Str) {
			ctx.push(&Error{Kind: Pattern, Field: field, Message: fmt.Sprintf("%q does not match pattern %q", v.Str, val.Pattern)})
		}
		return v

	case CustomKind:
		if val.Custom == nil {
			return v
		}
		if msg, ok := val.Custom(v); !ok {
			ctx.push(&Error{Kind: Custom, Field: field, Message: msg})
		}
		return v

	case ArrayKind:
		if v.Kind != KindArray {
			ctx.push(&Error{Kind: Type, Field: field, Message: "expected array"})
			return v
		}
		out := make([]*JSONValue, len(v.Arr))
		for i, elem := range v.Arr {
			out[i] = validateNode(val.Elem, elem, fmt.Sprintf("%s[%d]", field, i), ctx)
		}
		return &JSONValue{Kind: KindArray, Arr: out}

	case ObjectKind:
		return validateObject(val, v, field, ctx)

	case UnionKind:
		return validateUnion(val, v, field, ctx)

	default:
		return v
	}
}

// validateUnion tries each option against v in order, taking the first
// option that validates cleanly. If none validate cleanly, it reports the
// errors of whichever option produced the fewest — the union arm v came
// closest to matching.
func validateUnion(val *Validator, v *JSONValue, field string, ctx *Context) *JSONValue {
	if len(val.Options) == 0 {
		return v
	}

	var (
		bestOut  *JSONValue
		bestErrs Errors
	)

	for i, opt := range val.Options {
		optCtx := &Context{}
		out := validateNode(opt, v, field, optCtx)
		if len(optCtx.Errors) == 0 {
			return out
		}
		if i == 0 || len(optCtx.Errors) < len(bestErrs) {
			bestOut = out
			bestErrs = optCtx.Errors
		}
	}

	for _, e := range bestErrs {
		ctx.push(e)
	}
	return bestOut
}

func lengthOf(v *JSONValue) (int, bool) {
	switch v.Kind {
	case KindString:
		return len(v.Str), true
	case KindArray:
		return len(v.Arr), true
	default:
		return 0, false
	}
}

// validateObject implements spec.md §4.5's two-pass object validation:
// pass one collects every field error without building output; pass two
// (only reached if pass one was clean for this subtree) builds a new
// object containing exactly the declared fields.
func validateObject(val *Validator, v *JSONValue, field string, ctx *Context) *JSONValue {
	if v.Kind != KindObject {
		ctx.push(&Error{Kind: Type, Field: field, Message: "expected object"})
		return v
	}

	before := len(ctx.Errors)

	type resolved struct {
		name    string
		present bool
		value   *JSONValue
	}
	results := make([]resolved, len(val.Fields))

	for i, f := range val.Fields {
		fv := v.Get(f.Name)
		path := f.Name
		if field != "" {
			path = field + "." + f.Name
		}

		if fv == nil {
			if f.Required {
				ctx.push(&Error{Kind: Required, Field: path, Message: "required field is missing"})
			}
			results[i] = resolved{name: f.Name, present: false}
			continue
		}

		out := validateNode(f.Validator, fv, path, ctx)
		results[i] = resolved{name: f.Name, present: true, value: out}
	}

	if len(ctx.Errors) != before {
		// Pass one found a problem in this subtree — the caller
		// (top-level Validate) will observe ctx.Errors and never use
		// the returned value, but we still return something non-nil
		// to keep validateNode's recursive callers simple.
		return v
	}

	obj := Object()
	for i, f := range val.Fields {
		r := results[i]
		switch {
		case r.present:
			obj.Set(r.name, r.value)
		case f.Default != nil:
			obj.Set(r.name, f.Default)
		default:
			obj.Set(r.name, Null())
		}
	}
	return obj
}
