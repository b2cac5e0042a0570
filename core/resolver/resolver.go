// Package resolver turns module names into materialized record modules.
//
// A Resolver asks its Locators, in order, for the schema document of a
// module. The first match is loaded and registered; later references get
// the registered module without touching a Locator again.
//
//	r := resolver.New(resolver.WithDirs("./schemas"))
//	mod, err := r.Resolve(ctx, "net.hosts")
//	host, _ := mod.Type("Host")
//	h, err := host.Make("192.168.0.1", 8080)
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/recordgate/core/events"
	"github.com/artpar/recordgate/core/registry"
	"github.com/artpar/recordgate/core/rule"
)

// ErrNotFound means no Locator had a document for the module. Callers
// treat it as "not a schema module" rather than as a failure.
var ErrNotFound = errors.New("module not found")

// ErrInvalidName is returned for module names that are not dotted
// identifiers.
var ErrInvalidName = errors.New("invalid module name")

// Resolver resolves module names through an ordered list of Locators.
type Resolver struct {
	mu       sync.RWMutex
	locators []Locator

	registry *registry.Registry
	catalog  *rule.Catalog
	bus      *events.Bus
	logger   zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRegistry sets the registry modules are cached in.
// Defaults to registry.Global().
func WithRegistry(reg *registry.Registry) Option {
	return func(r *Resolver) { r.registry = reg }
}

// WithCatalog sets the rule catalog used to build fields.
// Defaults to rule.Default().
func WithCatalog(c *rule.Catalog) Option {
	return func(r *Resolver) { r.catalog = c }
}

// WithEvents publishes lifecycle events on bus.
func WithEvents(bus *events.Bus) Option {
	return func(r *Resolver) { r.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithLocators appends locators.
func WithLocators(locs ...Locator) Option {
	return func(r *Resolver) { r.locators = append(r.locators, locs...) }
}

// WithDirs appends a DirLocator per directory.
func WithDirs(dirs ...string) Option {
	return func(r *Resolver) {
		for _, d := range dirs {
			r.locators = append(r.locators, DirLocator{Dir: d})
		}
	}
}

// New creates a resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = registry.Global()
	}
	if r.catalog == nil {
		r.catalog = rule.Default()
	}
	return r
}

// Registry returns the registry modules are cached in.
func (r *Resolver) Registry() *registry.Registry {
	return r.registry
}

// Catalog returns the rule catalog.
func (r *Resolver) Catalog() *rule.Catalog {
	return r.catalog
}

// Resolve returns the module for name, loading it on first reference.
// Concurrent first references share one load. A failed load is not
// cached; the next call tries again.
func (r *Resolver) Resolve(ctx context.Context, name string) (*registry.Module, error) {
	if !ValidModuleName(name) {
		return nil, fmt.Errorf("resolve %q: %w", name, ErrInvalidName)
	}
	if mod, ok := r.registry.Get(name); ok {
		return mod, nil
	}

	// Callers that join an in-flight build share it, so one caller
	// cancelling must not fail the others.
	shared := context.WithoutCancel(ctx)
	return r.registry.Materialize(name, func() (*registry.Module, error) {
		return r.load(shared, name)
	})
}

func (r *Resolver) load(ctx context.Context, name string) (*registry.Module, error) {
	start := time.Now()

	src, found, err := r.locate(ctx, name)
	if err != nil {
		r.publish(ctx, events.Event{Name: events.ModuleFailed, Module: name, Err: err, Duration: time.Since(start)})
		return nil, fmt.Errorf("resolve %q: %w", name, err)
	}
	if !found {
		r.logger.Debug().Str("module", name).Msg("module not found")
		r.publish(ctx, events.Event{Name: events.ModuleNotFound, Module: name, Duration: time.Since(start)})
		return nil, fmt.Errorf("resolve %q: %w", name, ErrNotFound)
	}

	mod, err := Load(src, r.catalog)
	if err != nil {
		r.logger.Warn().Err(err).Str("module", name).Str("source", src.Origin).Msg("module load failed")
		r.publish(ctx, events.Event{Name: events.ModuleFailed, Module: name, Source: src.Origin, Err: err, Duration: time.Since(start)})
		return nil, err
	}

	elapsed := time.Since(start)
	r.logger.Info().
		Str("module", name).
		Str("source", src.Origin).
		Strs("records", mod.Names()).
		Dur("duration", elapsed).
		Msg("module loaded")
	r.publish(ctx, events.Event{Name: events.ModuleLoaded, Module: name, Source: src.Origin, Records: mod.Names(), Duration: elapsed})
	return mod, nil
}

func (r *Resolver) locate(ctx context.Context, name string) (Source, bool, error) {
	for _, loc := range r.Locators() {
		src, ok, err := loc.Locate(ctx, name)
		if err != nil {
			return Source{}, false, err
		}
		if ok {
			if src.Module == "" {
				src.Module = name
			}
			return src, true, nil
		}
	}
	return Source{}, false, nil
}

func (r *Resolver) publish(ctx context.Context, e events.Event) {
	if r.bus != nil {
		r.bus.Publish(ctx, e)
	}
}

// Locators returns a snapshot of the search order.
func (r *Resolver) Locators() []Locator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Locator(nil), r.locators...)
}

// Append adds a locator at the end of the search order.
func (r *Resolver) Append(loc Locator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locators = append(r.locators, loc)
}

// Prepend adds a locator at the front of the search order.
func (r *Resolver) Prepend(loc Locator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locators = append([]Locator{loc}, r.locators...)
}

// SetDirs replaces every DirLocator with one per dir. The new directories
// take the place of the first DirLocator, or go first if there was none.
// Other locators keep their relative order. Registered modules are not
// reloaded.
func (r *Resolver) SetDirs(dirs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fresh := make([]Locator, len(dirs))
	for i, d := range dirs {
		fresh[i] = DirLocator{Dir: d}
	}

	out := make([]Locator, 0, len(r.locators)+len(dirs))
	inserted := false
	for _, loc := range r.locators {
		if _, isDir := loc.(DirLocator); isDir {
			if !inserted {
				out = append(out, fresh...)
				inserted = true
			}
			continue
		}
		out = append(out, loc)
	}
	if !inserted {
		out = append(fresh, out...)
	}
	r.locators = out
}
