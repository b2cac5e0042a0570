package rule

import (
	"fmt"
	"sort"
	"strings"
)

// Params are the per-field rule parameters, e.g. max_length or pattern.
type Params map[string]any

// Env exposes a kind's resolved attributes and parsed parameters to a
// Compiler.
type Env struct {
	kind   *Kind
	params map[string]any
}

// Attr looks an attribute up along the kind's linearization.
func (e Env) Attr(key string) (any, bool) {
	return e.kind.Attr(key)
}

// Param returns a parsed parameter.
func (e Env) Param(key string) (any, bool) {
	v, ok := e.params[key]
	return v, ok
}

// Chain is the compiled validation routine of one field.
// It is immutable and safe for concurrent use.
type Chain struct {
	kind     *Kind
	checks   []CheckName
	params   Params
	validate func(any) *Violation
}

func compose(k *Kind, raw Params) (*Chain, error) {
	parsed, err := parseParams(k, raw)
	if err != nil {
		return nil, err
	}
	env := Env{kind: k, params: parsed}

	var (
		checks []CheckName
		fns    []CheckFunc
	)
	for _, m := range k.mro {
		if m.build == nil {
			continue
		}
		fn, err := m.build(env)
		if err != nil {
			return nil, fmt.Errorf("kind %q: check %q: %w", k.name, m.check, err)
		}
		checks = append(checks, m.check)
		fns = append(fns, fn)
	}

	// Fold right so the routine is one closure call per check, in order,
	// stopping at the first violation.
	name := k.name
	validate := func(any) *Violation { return nil }
	for i := len(fns) - 1; i >= 0; i-- {
		check, next := fns[i], validate
		validate = func(v any) *Violation {
			if viol := check(v); viol != nil {
				viol.Kind = name
				return viol
			}
			return next(v)
		}
	}

	cp := make(Params, len(raw))
	for key, v := range raw {
		cp[key] = v
	}

	return &Chain{
		kind:     k,
		checks:   checks,
		params:   cp,
		validate: validate,
	}, nil
}

func parseParams(k *Kind, raw Params) (map[string]any, error) {
	specs := k.Params()
	known := make(map[string]ParamSpec, len(specs))
	for _, p := range specs {
		known[p.Name] = p
	}

	var unknown []string
	for key := range raw {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: kind %q does not accept %s", ErrInvalidParams, k.name, strings.Join(unknown, ", "))
	}

	parsed := make(map[string]any, len(specs))
	for _, p := range specs {
		v, ok := raw[p.Name]
		if !ok {
			if p.Required {
				return nil, fmt.Errorf("%w: kind %q requires %q", ErrInvalidParams, k.name, p.Name)
			}
			continue
		}
		if p.Parse != nil {
			pv, err := p.Parse(v)
			if err != nil {
				return nil, fmt.Errorf("%w: kind %q: %v", ErrInvalidParams, k.name, err)
			}
			v = pv
		}
		parsed[p.Name] = v
	}
	return parsed, nil
}

// Validate runs the chain. It returns nil or the first *Violation.
func (c *Chain) Validate(value any) error {
	if v := c.validate(value); v != nil {
		return v
	}
	return nil
}

// Kind returns the rule kind name.
func (c *Chain) Kind() string {
	return c.kind.name
}

// Checks returns the checks in the order they run.
func (c *Chain) Checks() []CheckName {
	out := make([]CheckName, len(c.checks))
	copy(out, c.checks)
	return out
}

// Linearization returns the kind's composition order.
func (c *Chain) Linearization() []string {
	return c.kind.Linearization()
}

// Params returns a copy of the parameters as declared.
func (c *Chain) Params() Params {
	cp := make(Params, len(c.params))
	for k, v := range c.params {
		cp[k] = v
	}
	return cp
}

// String describes the chain, e.g. "SizedRegexString[type size pattern]".
func (c *Chain) String() string {
	parts := make([]string, len(c.checks))
	for i, ch := range c.checks {
		parts[i] = string(ch)
	}
	return fmt.Sprintf("%s[%s]", c.kind.name, strings.Join(parts, " "))
}
