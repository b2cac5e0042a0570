// Package binder maps positional and keyword arguments onto an ordered
// list of field names.
//
// A Signature is the narrow counterpart of a function signature: every
// parameter is positional-or-keyword and required. There are no defaults
// and no variadics.
package binder

import (
	"fmt"
	"sort"
)

// Signature is an immutable, ordered list of field names.
type Signature struct {
	fields []string
	index  map[string]int
}

// NewSignature creates a signature for the given fields in order.
func NewSignature(fields ...string) (*Signature, error) {
	s := &Signature{
		fields: make([]string, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f == "" {
			return nil, fmt.Errorf("field %d: empty name", i)
		}
		if _, dup := s.index[f]; dup {
			return nil, fmt.Errorf("duplicate field %q", f)
		}
		s.fields[i] = f
		s.index[f] = i
	}
	return s, nil
}

// Fields returns a copy of the field names in declaration order.
func (s *Signature) Fields() []string {
	out := make([]string, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields.
func (s *Signature) Len() int {
	return len(s.fields)
}

// Has reports whether name is a declared field.
func (s *Signature) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Bind assigns args to fields by position and kwargs by name.
// Every field must receive exactly one value.
func (s *Signature) Bind(args []any, kwargs map[string]any) (*Arguments, error) {
	if len(args) > len(s.fields) {
		return nil, &ArityError{Expected: len(s.fields), Got: len(args)}
	}

	values := make([]any, len(s.fields))
	bound := make([]bool, len(s.fields))
	for i, v := range args {
		values[i] = v
		bound[i] = true
	}

	// Sorted so that the reported error does not depend on map order.
	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		i, ok := s.index[name]
		if !ok {
			return nil, &UnknownFieldError{Name: name}
		}
		if bound[i] {
			return nil, &ArityError{Expected: len(s.fields), Got: len(args) + len(kwargs), Field: name}
		}
		values[i] = kwargs[name]
		bound[i] = true
	}

	var missing []string
	for i, ok := range bound {
		if !ok {
			missing = append(missing, s.fields[i])
		}
	}
	if len(missing) > 0 {
		return nil, &ArityError{Expected: len(s.fields), Got: len(args) + len(kwargs), Missing: missing}
	}

	return &Arguments{sig: s, values: values}, nil
}

// Arguments is the result of a successful Bind.
// Values are kept in field declaration order, not argument order.
type Arguments struct {
	sig    *Signature
	values []any
}

// Names returns the bound field names in declaration order.
func (a *Arguments) Names() []string {
	return a.sig.Fields()
}

// Value returns the value bound to name.
func (a *Arguments) Value(name string) (any, bool) {
	i, ok := a.sig.index[name]
	if !ok {
		return nil, false
	}
	return a.values[i], true
}

// Each calls fn for every field in declaration order and stops at the
// first error.
func (a *Arguments) Each(fn func(name string, value any) error) error {
	for i, name := range a.sig.fields {
		if err := fn(name, a.values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Map returns the bound values keyed by field name.
func (a *Arguments) Map() map[string]any {
	m := make(map[string]any, len(a.values))
	for i, name := range a.sig.fields {
		m[name] = a.values[i]
	}
	return m
}
