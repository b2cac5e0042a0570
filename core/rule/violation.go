package rule

import (
	"errors"
	"fmt"
)

// Sentinel errors. A *Violation matches ErrViolation and exactly one of
// ErrType, ErrRange, ErrSize or ErrPattern.
var (
	ErrViolation = errors.New("rule violation")

	ErrType    = errors.New("type violation")
	ErrRange   = errors.New("range violation")
	ErrSize    = errors.New("size violation")
	ErrPattern = errors.New("pattern violation")
)

// Declaration-time errors.
var (
	ErrUnknownKind          = errors.New("unknown rule kind")
	ErrAmbiguousComposition = errors.New("ambiguous rule composition")
	ErrContradictoryRules   = errors.New("contradictory rules")
	ErrInvalidParams        = errors.New("invalid rule parameters")
)

// Violation is a failed check. Field is empty until a field slot
// reports it.
type Violation struct {
	Field   string    `json:"field,omitempty"`
	Kind    string    `json:"kind"`
	Check   CheckName `json:"check"`
	Value   any       `json:"value"`
	Message string    `json:"message"`

	reason error
}

func newViolation(check CheckName, reason error, value any, format string, args ...any) *Violation {
	return &Violation{
		Check:   check,
		Value:   value,
		Message: fmt.Sprintf(format, args...),
		reason:  reason,
	}
}

func (v *Violation) Error() string {
	if v.Field == "" {
		return fmt.Sprintf("%s: %s, got %#v", v.Kind, v.Message, v.Value)
	}
	return fmt.Sprintf("field %q (%s): %s, got %#v", v.Field, v.Kind, v.Message, v.Value)
}

// Is matches ErrViolation and the violation's own category.
func (v *Violation) Is(target error) bool {
	return target == ErrViolation || target == v.reason
}

// Reason returns the category sentinel (ErrType, ErrRange, ...).
func (v *Violation) Reason() error {
	return v.reason
}

// WithField returns a copy of v attributed to field.
func (v *Violation) WithField(field string) *Violation {
	cp := *v
	cp.Field = field
	return &cp
}
