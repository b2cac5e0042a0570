// Package record builds validating record types from declared fields.
//
// A record type is declared by putting field slots into a Namespace and
// passing it to Build. Build names the slots after their entries, derives
// the constructor signature from the declaration order and returns an
// immutable *Type. Every value stored on an *Instance has passed its
// field's rule chain.
package record

import (
	"fmt"
	"sync"

	"github.com/artpar/recordgate/core/binder"
	"github.com/artpar/recordgate/core/rule"
)

// Namespace is the ordered set of entries a record type is declared
// with. Entries that are not *Slot values are carried but ignored by
// Build.
type Namespace struct {
	names  []string
	values map[string]any
}

// NewNamespace returns an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{values: make(map[string]any)}
}

// Set adds or replaces an entry. A replaced entry keeps its position.
func (ns *Namespace) Set(name string, value any) *Namespace {
	if _, ok := ns.values[name]; !ok {
		ns.names = append(ns.names, name)
	}
	ns.values[name] = value
	return ns
}

// Get returns an entry by name.
func (ns *Namespace) Get(name string) (any, bool) {
	v, ok := ns.values[name]
	return v, ok
}

// Names returns entry names in declaration order.
func (ns *Namespace) Names() []string {
	out := make([]string, len(ns.names))
	copy(out, ns.names)
	return out
}

// FieldSpec declares one field by rule kind and parameters.
type FieldSpec struct {
	Name   string
	Kind   string
	Params rule.Params
}

// FieldInfo describes a built field.
type FieldInfo struct {
	Name          string           `json:"name"`
	Kind          string           `json:"kind"`
	Checks        []rule.CheckName `json:"checks"`
	Linearization []string         `json:"linearization"`
	Params        rule.Params      `json:"params,omitempty"`
}

// Type is a built record type. It never changes after Build returns.
type Type struct {
	name   string
	fields []string
	slots  map[string]*Slot
	sig    *binder.Signature
}

// Build turns a namespace into a record type: it collects the slots in
// declaration order, binds each to its entry name and installs the
// constructor. If any step fails the type is not created.
func Build(name string, ns *Namespace) (*Type, error) {
	if name == "" {
		return nil, fmt.Errorf("record name is required")
	}

	var (
		fields []string
		slots  = make(map[string]*Slot)
		seen   = make(map[*Slot]string)
	)
	for _, entry := range ns.names {
		s, ok := ns.values[entry].(*Slot)
		if !ok {
			continue
		}
		if prev, dup := seen[s]; dup {
			return nil, fmt.Errorf("record %q: field %q: %w to field %q", name, entry, ErrSlotBound, prev)
		}
		seen[s] = entry
		if s.chain == nil {
			return nil, fmt.Errorf("record %q: field %q has no rule chain", name, entry)
		}
		if s.owner != nil {
			return nil, fmt.Errorf("record %q: field %q: %w to %s.%s", name, entry, ErrSlotBound, s.record, s.name)
		}
		fields = append(fields, entry)
		slots[entry] = s
	}

	sig, err := binder.NewSignature(fields...)
	if err != nil {
		return nil, fmt.Errorf("record %q: %w", name, err)
	}

	t := &Type{
		name:   name,
		fields: fields,
		slots:  slots,
		sig:    sig,
	}
	for _, f := range fields {
		slots[f].name = f
		slots[f].record = name
		slots[f].owner = t
	}
	return t, nil
}

// Define composes every spec from catalog and builds the record type.
func Define(catalog *rule.Catalog, name string, specs ...FieldSpec) (*Type, error) {
	ns := NewNamespace()
	for _, spec := range specs {
		if _, dup := ns.Get(spec.Name); dup {
			return nil, fmt.Errorf("record %q: duplicate field %q", name, spec.Name)
		}
		s, err := Field(catalog, spec.Kind, spec.Params)
		if err != nil {
			return nil, fmt.Errorf("record %q: field %q: %w", name, spec.Name, err)
		}
		ns.Set(spec.Name, s)
	}
	return Build(name, ns)
}

// MustDefine is like Define but panics on error.
func MustDefine(catalog *rule.Catalog, name string, specs ...FieldSpec) *Type {
	t, err := Define(catalog, name, specs...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the record type name.
func (t *Type) Name() string {
	return t.name
}

// Fields returns the field names in declaration order.
func (t *Type) Fields() []string {
	out := make([]string, len(t.fields))
	copy(out, t.fields)
	return out
}

// Slot returns the slot of a field.
func (t *Type) Slot(field string) (*Slot, bool) {
	s, ok := t.slots[field]
	return s, ok
}

// Describe returns the field order and rule descriptions.
func (t *Type) Describe() []FieldInfo {
	out := make([]FieldInfo, len(t.fields))
	for i, f := range t.fields {
		ch := t.slots[f].chain
		out[i] = FieldInfo{
			Name:          f,
			Kind:          ch.Kind(),
			Checks:        ch.Checks(),
			Linearization: ch.Linearization(),
			Params:        ch.Params(),
		}
	}
	return out
}

// New binds args and kwargs to the fields and sets each field in
// declaration order. The instance is returned only if every field was
// accepted.
func (t *Type) New(args []any, kwargs map[string]any) (*Instance, error) {
	bound, err := t.sig.Bind(args, kwargs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}

	inst := &Instance{typ: t, values: make(map[string]any, len(t.fields))}
	err = bound.Each(func(name string, value any) error {
		return t.slots[name].Set(inst, value)
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// Make constructs an instance from positional values.
func (t *Type) Make(args ...any) (*Instance, error) {
	return t.New(args, nil)
}

// MakeNamed constructs an instance from named values.
func (t *Type) MakeNamed(kwargs map[string]any) (*Instance, error) {
	return t.New(nil, kwargs)
}

// String returns e.g. "Host(address, port)".
func (t *Type) String() string {
	s := t.name + "("
	for i, f := range t.fields {
		if i > 0 {
			s += ", "
		}
		s += f
	}
	return s + ")"
}

// Instance is one value of a record type. It is safe for concurrent use.
type Instance struct {
	typ    *Type
	mu     sync.RWMutex
	values map[string]any
}

// Type returns the instance's record type.
func (i *Instance) Type() *Type {
	return i.typ
}

// Get reads a field.
func (i *Instance) Get(field string) (any, error) {
	s, err := i.slot(field)
	if err != nil {
		return nil, err
	}
	return s.Get(i)
}

// Set validates and replaces a field.
func (i *Instance) Set(field string, value any) error {
	s, err := i.slot(field)
	if err != nil {
		return err
	}
	return s.Set(i, value)
}

// Delete always fails; see Slot.Delete.
func (i *Instance) Delete(field string) error {
	s, err := i.slot(field)
	if err != nil {
		return err
	}
	return s.Delete(i)
}

// Values returns a copy of the field values.
func (i *Instance) Values() map[string]any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[string]any, len(i.values))
	for k, v := range i.values {
		out[k] = v
	}
	return out
}

func (i *Instance) slot(field string) (*Slot, error) {
	s, ok := i.typ.slots[field]
	if !ok {
		return nil, fmt.Errorf("%s: %w", i.typ.name, &binder.UnknownFieldError{Name: field})
	}
	return s, nil
}

// String returns e.g. "Host(address='10.0.0.1', port=80)".
func (i *Instance) String() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	s := i.typ.name + "("
	for n, f := range i.typ.fields {
		if n > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%#v", f, i.values[f])
	}
	return s + ")"
}
