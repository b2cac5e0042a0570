package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchema is matched by every *SchemaError.
var ErrSchema = errors.New("schema error")

// SchemaError reports a malformed document or unrecognized content.
type SchemaError struct {
	Source string
	Record string
	Field  string
	Msg    string
	Err    error
}

func (e *SchemaError) Error() string {
	var parts []string
	if e.Source != "" {
		parts = append(parts, "schema "+e.Source)
	} else {
		parts = append(parts, "schema")
	}
	if e.Record != "" {
		parts = append(parts, fmt.Sprintf("record %q", e.Record))
	}
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field %q", e.Field))
	}
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	parts = append(parts, msg)
	return strings.Join(parts, ": ")
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrSchema.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}
