package statemachine

import (
	"slices"
	"sync"

	sserr "github.com/StricklySoft/stricklysoft-statemachine/pkg/errors"
)

// Factory creates a fresh State instance.
type Factory[O any] func() State[O]

// Catalog maps state identities to factories. Hosts use a Catalog to turn
// configured state names into State instances without scanning types at
// runtime; states add themselves at process start, typically from a package
// init function or a bootstrap routine.
//
// A Catalog is safe for concurrent use.
//
// Example:
//
//	var States = statemachine.NewCatalog[*Player]()
//
//	func init() {
//	    statemachine.Provide(States, func() *Idle { return &Idle{} })
//	}
type Catalog[O any] struct {
	mu        sync.RWMutex
	factories map[Identity]Factory[O]
}

// NewCatalog creates an empty catalog.
func NewCatalog[O any]() *Catalog[O] {
	return &Catalog[O]{factories: make(map[Identity]Factory[O])}
}

// Add registers factory under id. It returns a [sserr.CodeConflictAlreadyExists]
// error if id is already present, and a [sserr.CodeConfigurationState] error
// for an empty id or nil factory.
func (c *Catalog[O]) Add(id Identity, factory Factory[O]) error {
	if id == "" {
		return sserr.New(sserr.CodeConfigurationState,
			"statemachine: catalog identity must not be empty")
	}
	if factory == nil {
		return sserr.Newf(sserr.CodeConfigurationState,
			"statemachine: catalog factory for %q must not be nil", id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.factories[id]; exists {
		return sserr.Newf(sserr.CodeConflictAlreadyExists,
			"statemachine: catalog already has a factory for %q", id)
	}
	c.factories[id] = factory
	return nil
}

// Provide registers a typed factory under the type-derived identity of S.
func Provide[S State[O], O any](c *Catalog[O], factory func() S) error {
	if factory == nil {
		return c.Add(IdentityFor[S](), nil)
	}
	return c.Add(IdentityFor[S](), func() State[O] { return factory() })
}

// New creates a new state instance for id. It returns a
// [sserr.CodeUnknownFactory] error if no factory is registered under id.
func (c *Catalog[O]) New(id Identity) (State[O], error) {
	c.mu.RLock()
	factory, ok := c.factories[id]
	c.mu.RUnlock()
	if !ok {
		return nil, sserr.Newf(sserr.CodeUnknownFactory,
			"statemachine: catalog has no factory for %q", id)
	}
	return factory(), nil
}

// Has reports whether a factory is registered under id.
func (c *Catalog[O]) Has(id Identity) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.factories[id]
	return ok
}

// Identities returns every registered identity in sorted order.
func (c *Catalog[O]) Identities() []Identity {
	c.mu.RLock()
	ids := make([]Identity, 0, len(c.factories))
	for id := range c.factories {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	slices.Sort(ids)
	return ids
}
