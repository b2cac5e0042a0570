// Package registry holds materialized modules. Each module is built at most
// once per process; concurrent first references share a single build.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/artpar/recordgate/core/record"
)

// Module is a named, immutable set of record types.
type Module struct {
	Name   string
	Source string

	order []string
	types map[string]*record.Type
}

// NewModule builds a module from types in declaration order.
// Type names must be unique.
func NewModule(name, source string, types ...*record.Type) (*Module, error) {
	m := &Module{
		Name:   name,
		Source: source,
		order:  make([]string, 0, len(types)),
		types:  make(map[string]*record.Type, len(types)),
	}
	for _, t := range types {
		if _, exists := m.types[t.Name()]; exists {
			return nil, fmt.Errorf("module %q: record %q declared twice", name, t.Name())
		}
		m.order = append(m.order, t.Name())
		m.types[t.Name()] = t
	}
	return m, nil
}

// Type returns the record type with the given name.
func (m *Module) Type(name string) (*record.Type, bool) {
	t, ok := m.types[name]
	return t, ok
}

// Types returns the record types in declaration order.
func (m *Module) Types() []*record.Type {
	out := make([]*record.Type, len(m.order))
	for i, name := range m.order {
		out[i] = m.types[name]
	}
	return out
}

// Names returns the record type names in declaration order.
func (m *Module) Names() []string {
	return append([]string(nil), m.order...)
}

// Registry maps module names to materialized modules.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
	group   singleflight.Group
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		modules: make(map[string]*Module),
	}
}

var global = New()

// Global returns the process-wide registry.
func Global() *Registry {
	return global
}

// Get returns a registered module by name.
func (r *Registry) Get(name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mod, ok := r.modules[name]
	return mod, ok
}

// Register adds a module that was built elsewhere.
// Returns an error if the name is already taken.
func (r *Registry) Register(mod *Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[mod.Name]; exists {
		return fmt.Errorf("module %q already registered", mod.Name)
	}
	r.modules[mod.Name] = mod
	return nil
}

// Materialize returns the module registered under name, calling build if
// it is absent. Concurrent callers for the same name share one call to
// build and receive the same *Module. A failed build registers nothing;
// the next call tries again.
func (r *Registry) Materialize(name string, build func() (*Module, error)) (*Module, error) {
	if mod, ok := r.Get(name); ok {
		return mod, nil
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		// A flight that finished just before this one started has
		// already registered the module.
		if mod, ok := r.Get(name); ok {
			return mod, nil
		}

		mod, err := build()
		if err != nil {
			return nil, err
		}
		if mod.Name != name {
			return nil, fmt.Errorf("module %q: build produced module %q", name, mod.Name)
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if existing, ok := r.modules[name]; ok {
			return existing, nil
		}
		r.modules[name] = mod
		return mod, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Module), nil
}

// List returns all registered modules sorted by name.
func (r *Registry) List() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	modules := make([]*Module, 0, len(r.modules))
	for _, mod := range r.modules {
		modules = append(modules, mod)
	}

	// Sort by name for consistent ordering
	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Name < modules[j].Name
	})

	return modules
}

// Names returns the sorted names of registered modules.
func (r *Registry) Names() []string {
	mods := r.List()
	names := make([]string, len(mods))
	for i, m := range mods {
		names[i] = m.Name
	}
	return names
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}
