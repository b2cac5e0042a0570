package binder

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for binding failures.
var (
	// ErrArity is matched by every *ArityError.
	ErrArity = errors.New("arity mismatch")

	// ErrUnknownField is matched by every *UnknownFieldError.
	ErrUnknownField = errors.New("unknown field")
)

// ArityError reports a wrong number of arguments, a field bound twice,
// or fields left without a value.
type ArityError struct {
	Expected int
	Got      int
	Field    string   // set when a field received more than one value
	Missing  []string // set when fields were left unbound
}

func (e *ArityError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("got multiple values for field %q", e.Field)
	case len(e.Missing) > 0:
		quoted := make([]string, len(e.Missing))
		for i, m := range e.Missing {
			quoted[i] = fmt.Sprintf("%q", m)
		}
		return fmt.Sprintf("missing %d required argument(s): %s", len(e.Missing), strings.Join(quoted, ", "))
	default:
		return fmt.Sprintf("takes %d positional argument(s) but %d were given", e.Expected, e.Got)
	}
}

// Is reports whether target is ErrArity.
func (e *ArityError) Is(target error) bool {
	return target == ErrArity
}

// UnknownFieldError reports a name that is not a declared field.
type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unexpected field %q", e.Name)
}

// Is reports whether target is ErrUnknownField.
func (e *UnknownFieldError) Is(target error) bool {
	return target == ErrUnknownField
}
