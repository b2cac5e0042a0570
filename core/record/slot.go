package record

import (
	"errors"

	"github.com/artpar/recordgate/core/rule"
)

// Slot mediates get, set and delete of one field for every instance of
// its record type. A slot may be created without a name; Build assigns
// the name of the namespace entry that holds it and the type that owns
// it. An unbound slot cannot access any instance.
type Slot struct {
	name   string
	record string
	owner  *Type
	chain  *rule.Chain
}

// NewSlot wraps a compiled chain in an unbound slot.
func NewSlot(chain *rule.Chain) *Slot {
	return &Slot{chain: chain}
}

// Field composes kind and params from catalog into a new slot.
func Field(catalog *rule.Catalog, kind string, params rule.Params) (*Slot, error) {
	chain, err := catalog.Compose(kind, params)
	if err != nil {
		return nil, err
	}
	return NewSlot(chain), nil
}

// MustField is like Field but panics on error. It is meant for record
// types declared in Go source.
func MustField(catalog *rule.Catalog, kind string, params rule.Params) *Slot {
	s, err := Field(catalog, kind, params)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the field name, or "" before the slot is bound.
func (s *Slot) Name() string {
	return s.name
}

// Chain returns the compiled rule chain.
func (s *Slot) Chain() *rule.Chain {
	return s.chain
}

// Get returns the field value of inst.
func (s *Slot) Get(inst *Instance) (any, error) {
	if err := s.check(inst); err != nil {
		return nil, err
	}
	inst.mu.RLock()
	defer inst.mu.RUnlock()

	v, ok := inst.values[s.name]
	if !ok {
		return nil, &UninitializedFieldError{Record: s.record, Field: s.name}
	}
	return v, nil
}

// Set validates value and stores it on inst. On failure the previous
// value is kept.
func (s *Slot) Set(inst *Instance, value any) error {
	if err := s.check(inst); err != nil {
		return err
	}
	if err := s.validate(value); err != nil {
		return err
	}

	inst.mu.Lock()
	inst.values[s.name] = value
	inst.mu.Unlock()
	return nil
}

// Delete always fails: fields can be replaced but never removed.
func (s *Slot) Delete(inst *Instance) error {
	if err := s.check(inst); err != nil {
		return err
	}
	return &ImmutableFieldError{Record: s.record, Field: s.name}
}

// check rejects unbound slots and instances of other record types.
func (s *Slot) check(inst *Instance) error {
	if s.owner == nil {
		return ErrSlotUnbound
	}
	if inst == nil || inst.typ != s.owner {
		got := "<nil>"
		if inst != nil && inst.typ != nil {
			got = inst.typ.name
		}
		return &ForeignInstanceError{Record: s.record, Field: s.name, Instance: got}
	}
	return nil
}

func (s *Slot) validate(value any) error {
	err := s.chain.Validate(value)
	if err == nil {
		return nil
	}
	var v *rule.Violation
	if errors.As(err, &v) {
		return v.WithField(s.name)
	}
	return err
}
