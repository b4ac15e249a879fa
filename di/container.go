// Package di implements Catzilla's dependency injection container:
// keyed service registration with Singleton/Request/Transient scopes,
// parent/child shadowing, and cycle detection, per spec.md §4.6.
//
// Grounded on air/coffer.go's sync.Once-guarded lazy singleton
// construction (generalized here from one cache to N independently keyed
// services) and on the parent/child container shape and idempotent-Close
// idiom in the pack's proteusmock internal/infrastructure/wiring/
// container.go.
package di

import (
	"fmt"
	"strings"
	"sync"
)

// Scope controls a registered service's lifetime.
type Scope uint8

const (
	// Singleton is built once per registration on first resolve, and the
	// instance is shared by every container that inherits that binding.
	Singleton Scope = iota
	// Request is built once per RequestScope, then cached there.
	Request
	// Transient is built fresh on every Resolve call.
	Transient
)

func (s Scope) String() string {
	switch s {
	case Singleton:
		return "singleton"
	case Request:
		return "request"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// Factory builds a service instance. It receives a Resolver scoped to the
// in-flight Resolve call, so any dependency it resolves is checked against
// the same cycle-detection path as the top-level call — not a fresh one,
// which would blind runtime cycle detection to cycles that don't match the
// deps declared at Register time.
type Factory func(r *Resolver) (interface{}, error)

// Resolver is the handle a Factory uses to resolve its own dependencies
// within one top-level Resolve call.
type Resolver struct {
	root     *Container
	scope    *RequestScope
	visiting map[string]bool
}

// Resolve resolves key using the same Container and in-flight
// cycle-detection path as the Resolver's originating call.
func (r *Resolver) Resolve(key string) (interface{}, error) {
	return r.root.resolve(key, r.scope, r.visiting)
}

// CycleError is returned when resolving key would revisit a key already on
// the current resolution path.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("di: circular dependency: %s", strings.Join(e.Path, " -> "))
}

// NotRegisteredError is returned by Resolve for an unknown key.
type NotRegisteredError struct {
	Key string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("di: no service registered for key %q", e.Key)
}

type registration struct {
	key     string
	scope   Scope
	factory Factory
	deps    []string

	once     sync.Once
	instance interface{}
	err      error
}

// Container is a DI registry. The root Container is created with New;
// Child spawns a child that inherits the parent's singleton bindings but
// may shadow any key with its own registration, visible only to resolves
// performed through that child (and its own descendants).
type Container struct {
	mu     sync.RWMutex
	parent *Container
	regs   map[string]*registration
}

// New returns a new, empty root Container.
func New() *Container {
	return &Container{regs: map[string]*registration{}}
}

// Child returns a new Container whose parent is c.
func (c *Container) Child() *Container {
	return &Container{parent: c, regs: map[string]*registration{}}
}

// Register binds key to factory with the given scope and declared
// dependency keys (used only for registration-time cycle checking — see
// checkCycle). Registering an existing key on the same Container overwrites
// it; this is how a child shadows a parent's binding.
func (c *Container) Register(key string, scope Scope, factory Factory, deps ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg := &registration{key: key, scope: scope, factory: factory, deps: deps}
	c.regs[key] = reg

	if path := c.checkCycle(key, map[string]bool{}); path != nil {
		delete(c.regs, key)
		return &CycleError{Path: path}
	}

	return nil
}

// checkCycle walks the declared-deps graph from key looking for a path
// back to a key already visited. Caller must hold c.mu.
func (c *Container) checkCycle(key string, visiting map[string]bool) []string {
	if visiting[key] {
		return []string{key}
	}
	reg := c.lookupLocked(key)
	if reg == nil {
		return nil
	}

	visiting[key] = true
	for _, dep := range reg.deps {
		if path := c.checkCycle(dep, visiting); path != nil {
			return append([]string{key}, path...)
		}
	}
	delete(visiting, key)
	return nil
}

// lookupLocked finds a registration by key, walking up to parent
// containers. Caller must hold (at least) a read lock appropriate to the
// containers being walked — used only from within Register/Resolve, which
// take their own locks per container as they ascend.
func (c *Container) lookupLocked(key string) *registration {
	if reg, ok := c.regs[key]; ok {
		return reg
	}
	if c.parent != nil {
		c.parent.mu.RLock()
		defer c.parent.mu.RUnlock()
		return c.parent.lookupLocked(key)
	}
	return nil
}

// RequestScope holds the Request-scoped instances created during one
// request's lifetime. Construct one per request and pass it to Resolve;
// discard it (letting its instances be collected) when the request ends,
// per spec.md §4.6: "created lazily per request; cached in the request
// scope's arena and destroyed when the scope ends."
type RequestScope struct {
	mu        sync.Mutex
	instances map[string]interface{}
}

// NewRequestScope returns a new, empty RequestScope.
func NewRequestScope() *RequestScope {
	return &RequestScope{instances: map[string]interface{}{}}
}

// Resolve builds (or returns the cached instance of) the service registered
// for key. scope may be nil only if no Request-scoped service is reachable
// from key; passing nil when a Request-scoped dependency is resolved
// returns an error.
func (c *Container) Resolve(key string, scope *RequestScope) (interface{}, error) {
	return c.resolve(key, scope, map[string]bool{})
}

// resolve is shared by Container.Resolve and Resolver.Resolve so that
// every factory invoked while satisfying one top-level Resolve call checks
// its dependency against the SAME visiting set — spec.md §4.6's "circular-
// dependency detection uses a visited set during resolution" only works as
// a runtime backstop (distinct from the registration-time deps check) if
// nested resolves share that set instead of starting a fresh one each
// time.
//
// Lookups always walk from c (not from whichever container a registration
// was found on), so a child's shadowing registration is honored for every
// nested resolve performed on behalf of a Resolve call that started at
// that child.
func (c *Container) resolve(key string, scope *RequestScope, visiting map[string]bool) (interface{}, error) {
	if visiting[key] {
		path := make([]string, 0, len(visiting)+1)
		for k := range visiting {
			path = append(path, k)
		}
		path = append(path, key)
		return nil, &CycleError{Path: path}
	}
	visiting[key] = true
	defer delete(visiting, key)

	reg := c.findRegistration(key)
	if reg == nil {
		return nil, &NotRegisteredError{Key: key}
	}

	r := &Resolver{root: c, scope: scope, visiting: visiting}

	switch reg.scope {
	case Singleton:
		reg.once.Do(func() {
			reg.instance, reg.err = reg.factory(r)
		})
		return reg.instance, reg.err

	case Request:
		if scope == nil {
			return nil, fmt.Errorf("di: service %q is request-scoped but no RequestScope was provided", key)
		}
		scope.mu.Lock()
		if inst, ok := scope.instances[key]; ok {
			scope.mu.Unlock()
			return inst, nil
		}
		scope.mu.Unlock()

		inst, err := reg.factory(r)
		if err != nil {
			return nil, err
		}

		scope.mu.Lock()
		// Another goroutine may have raced us; keep whichever was
		// stored first so a RequestScope never hands out two
		// different instances for the same key within one request.
		if existing, ok := scope.instances[key]; ok {
			scope.mu.Unlock()
			return existing, nil
		}
		scope.instances[key] = inst
		scope.mu.Unlock()
		return inst, nil

	case Transient:
		return reg.factory(r)

	default:
		return nil, fmt.Errorf("di: service %q has unknown scope %v", key, reg.scope)
	}
}

// findRegistration looks up key starting at c and walking up to parents.
func (c *Container) findRegistration(key string) *registration {
	c.mu.RLock()
	reg, ok := c.regs[key]
	c.mu.RUnlock()
	if ok {
		return reg
	}
	if c.parent != nil {
		return c.parent.findRegistration(key)
	}
	return nil
}
