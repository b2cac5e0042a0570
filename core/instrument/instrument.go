// Package instrument wraps record types and instances with zerolog call
// and field-access logging. Wrapping never changes what the wrapped code
// accepts, rejects or returns.
package instrument

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/recordgate/core/record"
)

// Call runs fn and logs its name, arguments, result and duration.
// Failures are logged at warn level; successes at debug.
func Call[T any](logger zerolog.Logger, name string, args []any, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()

	var ev *zerolog.Event
	if err != nil {
		ev = logger.Warn().Err(err)
	} else {
		ev = logger.Debug().Str("result", fmt.Sprint(result))
	}
	ev.Str("call", name).
		Str("args", formatArgs(args)).
		Dur("duration", time.Since(start)).
		Msg("call")

	return result, err
}

// ConstructorFunc has the shape of record.Type.New.
type ConstructorFunc func(args []any, kwargs map[string]any) (*record.Instance, error)

// Constructor returns typ.New wrapped with Call logging.
func Constructor(logger zerolog.Logger, typ *record.Type) ConstructorFunc {
	l := logger.With().Str("record", typ.Name()).Logger()
	return func(args []any, kwargs map[string]any) (*record.Instance, error) {
		all := append([]any(nil), args...)
		for _, f := range typ.Fields() {
			if v, ok := kwargs[f]; ok {
				all = append(all, namedArg{name: f, value: v})
			}
		}
		return Call(l, typ.Name(), all, func() (*record.Instance, error) {
			return typ.New(args, kwargs)
		})
	}
}

// Observed is an instance whose field reads are logged.
type Observed struct {
	*record.Instance
	logger zerolog.Logger
}

// Observe wraps inst so that every Get logs "get field -> value".
func Observe(logger zerolog.Logger, inst *record.Instance) *Observed {
	return &Observed{
		Instance: inst,
		logger:   logger.With().Str("record", inst.Type().Name()).Logger(),
	}
}

// Get reads a field and logs the access.
func (o *Observed) Get(field string) (any, error) {
	v, err := o.Instance.Get(field)
	if err != nil {
		o.logger.Debug().Err(err).Str("field", field).Msg("get " + field + " failed")
		return v, err
	}
	o.logger.Debug().Str("field", field).Msgf("get %s -> %v", field, v)
	return v, nil
}

// Values reads every field through Get, in declaration order.
func (o *Observed) Values() map[string]any {
	out := make(map[string]any)
	for _, f := range o.Instance.Type().Fields() {
		if v, err := o.Get(f); err == nil {
			out[f] = v
		}
	}
	return out
}

type namedArg struct {
	name  string
	value any
}

func formatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatArg(a)
	}
	return strings.Join(parts, ", ")
}

func formatArg(a any) string {
	switch v := a.(type) {
	case namedArg:
		return v.name + "=" + formatArg(v.value)
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprint(v)
	}
}
