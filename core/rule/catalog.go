// Package rule provides field validation rules and composes them into
// compiled chains.
//
// Primitive checks (type, positive, size, pattern) are attached to named
// kinds. A kind lists its bases; the order in which a composite kind runs
// its checks is the C3 linearization of those bases, so that
// PositiveInteger checks the type before the sign and SizedRegexString
// checks type, size, then pattern. The order is fixed when the kind is
// defined and compiled into a single routine when a field is declared.
package rule

import (
	"fmt"
	"sort"
	"sync"
)

// Root is the base of every kind. It has no check of its own.
const Root = "Value"

// Built-in kind names.
const (
	Typed            = "Typed"
	Integer          = "Integer"
	Float            = "Float"
	String           = "String"
	Positive         = "Positive"
	Sized            = "Sized"
	Regex            = "Regex"
	PositiveInteger  = "PositiveInteger"
	PositiveFloat    = "PositiveFloat"
	SizedString      = "SizedString"
	RegexString      = "RegexString"
	SizedRegexString = "SizedRegexString"
)

// Catalog holds the rule kinds known to a process or test.
// It is safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	kinds map[string]*Kind
}

// NewCatalog returns a catalog holding only the root kind.
func NewCatalog() *Catalog {
	root := &Kind{name: Root}
	root.mro = []*Kind{root}
	return &Catalog{kinds: map[string]*Kind{Root: root}}
}

// Default returns a new catalog with the built-in kinds.
func Default() *Catalog {
	c := NewCatalog()
	for _, d := range []struct {
		name  string
		bases []string
		opts  []KindOption
	}{
		{Typed, nil, []KindOption{TypeCheck(), WithAttr("type", TypeAny)}},
		{Integer, []string{Typed}, []KindOption{WithAttr("type", TypeInt)}},
		{Float, []string{Typed}, []KindOption{WithAttr("type", TypeFloat)}},
		{String, []string{Typed}, []KindOption{WithAttr("type", TypeString)}},
		{Positive, nil, []KindOption{Positivity()}},
		{Sized, nil, []KindOption{SizeBound()}},
		{Regex, nil, []KindOption{PatternMatch()}},
		{PositiveInteger, []string{Integer, Positive}, nil},
		{PositiveFloat, []string{Float, Positive}, nil},
		{SizedString, []string{String, Sized}, nil},
		{RegexString, []string{String, Regex}, nil},
		{SizedRegexString, []string{SizedString, Regex}, nil},
	} {
		c.MustDefine(d.name, d.bases, d.opts...)
	}
	return c
}

// Define registers a new kind. An empty bases list means the root kind.
// The linearization is computed and checked here, so composition problems
// surface at declaration time.
func (c *Catalog) Define(name string, bases []string, opts ...KindOption) (*Kind, error) {
	if name == "" {
		return nil, fmt.Errorf("kind name is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.kinds[name]; exists {
		return nil, fmt.Errorf("kind %q already defined", name)
	}
	if len(bases) == 0 {
		bases = []string{Root}
	}

	k := &Kind{name: name}
	seen := make(map[string]bool, len(bases))
	for _, b := range bases {
		if seen[b] {
			return nil, fmt.Errorf("kind %q: duplicate base %q", name, b)
		}
		seen[b] = true
		base, ok := c.kinds[b]
		if !ok {
			return nil, fmt.Errorf("kind %q: %w %q", name, ErrUnknownKind, b)
		}
		k.bases = append(k.bases, base)
	}
	for _, opt := range opts {
		opt(k)
	}

	mro, err := linearize(k, k.bases)
	if err != nil {
		return nil, err
	}
	k.mro = mro

	if err := checkConsistency(k); err != nil {
		return nil, err
	}

	c.kinds[name] = k
	return k, nil
}

// MustDefine is like Define but panics on error.
func (c *Catalog) MustDefine(name string, bases []string, opts ...KindOption) *Kind {
	k, err := c.Define(name, bases, opts...)
	if err != nil {
		panic(err)
	}
	return k
}

// Kind returns a kind by name.
func (c *Catalog) Kind(name string) (*Kind, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.kinds[name]
	return k, ok
}

// Has reports whether a kind is defined.
func (c *Catalog) Has(name string) bool {
	_, ok := c.Kind(name)
	return ok
}

// Names returns all kind names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.kinds))
	for name := range c.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compose resolves kind and params into a compiled chain.
func (c *Catalog) Compose(kind string, params Params) (*Chain, error) {
	k, ok := c.Kind(kind)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	return compose(k, params)
}

// MustCompose is like Compose but panics on error.
func (c *Catalog) MustCompose(kind string, params Params) *Chain {
	ch, err := c.Compose(kind, params)
	if err != nil {
		panic(err)
	}
	return ch
}
