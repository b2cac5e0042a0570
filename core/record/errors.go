package record

import (
	"errors"
	"fmt"
)

// Sentinel errors for field access.
var (
	ErrUninitialized = errors.New("field not initialized")
	ErrImmutable     = errors.New("field cannot be deleted")
	ErrSlotBound     = errors.New("field slot already bound")
	ErrSlotUnbound   = errors.New("field slot is not bound to a record type")
	ErrForeign       = errors.New("instance belongs to another record type")
)

// ForeignInstanceError is returned when a slot is used on an instance of
// a record type other than the one that owns it.
type ForeignInstanceError struct {
	Record   string
	Field    string
	Instance string
}

func (e *ForeignInstanceError) Error() string {
	return fmt.Sprintf("%s.%s: slot cannot access an instance of %s", e.Record, e.Field, e.Instance)
}

// Is reports whether target is ErrForeign.
func (e *ForeignInstanceError) Is(target error) bool {
	return target == ErrForeign
}

// UninitializedFieldError is returned when reading a field that was
// never set.
type UninitializedFieldError struct {
	Record string
	Field  string
}

func (e *UninitializedFieldError) Error() string {
	return fmt.Sprintf("%s.%s: field has not been set", e.Record, e.Field)
}

// Is reports whether target is ErrUninitialized.
func (e *UninitializedFieldError) Is(target error) bool {
	return target == ErrUninitialized
}

// ImmutableFieldError is returned by every delete.
type ImmutableFieldError struct {
	Record string
	Field  string
}

func (e *ImmutableFieldError) Error() string {
	return fmt.Sprintf("%s.%s: cannot delete field", e.Record, e.Field)
}

// Is reports whether target is ErrImmutable.
func (e *ImmutableFieldError) Is(target error) bool {
	return target == ErrImmutable
}
