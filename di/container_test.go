package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type counter struct {
	n int
}

func TestSingletonBuiltOnceAcrossResolves(t *testing.T) {
	c := New()
	builds := 0
	assert.NoError(t, c.Register("counter", Singleton, func(r *Resolver) (interface{}, error) {
		builds++
		return &counter{n: builds}, nil
	}))

	v1, err := c.Resolve("counter", nil)
	assert.NoError(t, err)
	v2, err := c.Resolve("counter", nil)
	assert.NoError(t, err)

	assert.Same(t, v1, v2)
	assert.Equal(t, 1, builds)
}

func TestTransientBuiltEveryResolve(t *testing.T) {
	c := New()
	builds := 0
	assert.NoError(t, c.Register("widget", Transient, func(r *Resolver) (interface{}, error) {
		builds++
		return &counter{n: builds}, nil
	}))

	v1, _ := c.Resolve("widget", nil)
	v2, _ := c.Resolve("widget", nil)

	assert.NotSame(t, v1, v2)
	assert.Equal(t, 2, builds)
}

func TestRequestScopedCachedWithinScopeNotAcross(t *testing.T) {
	c := New()
	builds := 0
	assert.NoError(t, c.Register("reqsvc", Request, func(r *Resolver) (interface{}, error) {
		builds++
		return &counter{n: builds}, nil
	}))

	scope1 := NewRequestScope()
	a1, _ := c.Resolve("reqsvc", scope1)
	a2, _ := c.Resolve("reqsvc", scope1)
	assert.Same(t, a1, a2)

	scope2 := NewRequestScope()
	b1, _ := c.Resolve("reqsvc", scope2)
	assert.NotSame(t, a1, b1)
	assert.Equal(t, 2, builds)
}

func TestRequestScopedWithoutScopeErrors(t *testing.T) {
	c := New()
	assert.NoError(t, c.Register("reqsvc", Request, func(r *Resolver) (interface{}, error) {
		return &counter{}, nil
	}))

	_, err := c.Resolve("reqsvc", nil)
	assert.Error(t, err)
}

func TestResolveUnregisteredKeyReturnsNotRegisteredError(t *testing.T) {
	c := New()
	_, err := c.Resolve("ghost", nil)
	if assert.Error(t, err) {
		_, ok := err.(*NotRegisteredError)
		assert.True(t, ok)
	}
}

func TestRegistrationTimeCycleIsRejected(t *testing.T) {
	c := New()
	assert.NoError(t, c.Register("a", Singleton, func(r *Resolver) (interface{}, error) { return nil, nil }, "b"))

	err := c.Register("b", Singleton, func(r *Resolver) (interface{}, error) { return nil, nil }, "a")
	if assert.Error(t, err) {
		_, ok := err.(*CycleError)
		assert.True(t, ok)
	}
}

func TestRuntimeCycleNotDeclaredAtRegisterIsStillCaught(t *testing.T) {
	c := New()
	assert.NoError(t, c.Register("a", Singleton, func(r *Resolver) (interface{}, error) {
		return r.Resolve("b")
	}))
	assert.NoError(t, c.Register("b", Singleton, func(r *Resolver) (interface{}, error) {
		return r.Resolve("a")
	}))

	_, err := c.Resolve("a", nil)
	if assert.Error(t, err) {
		_, ok := err.(*CycleError)
		assert.True(t, ok)
	}
}

func TestChildInheritsParentSingletons(t *testing.T) {
	parent := New()
	assert.NoError(t, parent.Register("shared", Singleton, func(r *Resolver) (interface{}, error) {
		return &counter{n: 1}, nil
	}))

	child := parent.Child()
	fromParent, _ := parent.Resolve("shared", nil)
	fromChild, _ := child.Resolve("shared", nil)

	assert.Same(t, fromParent, fromChild)
}

func TestChildShadowsParentBindingOnlyForItself(t *testing.T) {
	parent := New()
	assert.NoError(t, parent.Register("svc", Singleton, func(r *Resolver) (interface{}, error) {
		return "parent-impl", nil
	}))

	child := parent.Child()
	assert.NoError(t, child.Register("svc", Singleton, func(r *Resolver) (interface{}, error) {
		return "child-impl", nil
	}))

	fromParent, _ := parent.Resolve("svc", nil)
	fromChild, _ := child.Resolve("svc", nil)

	assert.Equal(t, "parent-impl", fromParent)
	assert.Equal(t, "child-impl", fromChild)
}

// A singleton's cached instance lives on its registration, so once built
// it is shared by every container that inherits the binding — including a
// child that shadows one of the singleton's own dependencies after the
// fact. Only resolving a DIFFERENT key that the child itself shadows
// produces a different instance (TestChildShadowsParentBindingOnlyForItself).
func TestInheritedSingletonIsSharedEvenIfChildLaterShadowsADependency(t *testing.T) {
	parent := New()
	assert.NoError(t, parent.Register("base", Singleton, func(r *Resolver) (interface{}, error) {
		return "parent-base", nil
	}))
	assert.NoError(t, parent.Register("wrapper", Singleton, func(r *Resolver) (interface{}, error) {
		base, err := r.Resolve("base")
		if err != nil {
			return nil, err
		}
		return "wrap(" + base.(string) + ")", nil
	}))

	child := parent.Child()
	assert.NoError(t, child.Register("base", Singleton, func(r *Resolver) (interface{}, error) {
		return "child-base", nil
	}))

	fromParent, _ := parent.Resolve("wrapper", nil)
	fromChild, _ := child.Resolve("wrapper", nil)

	assert.Equal(t, "wrap(parent-base)", fromParent)
	assert.Equal(t, "wrap(parent-base)", fromChild)
}
