package rule

import (
	"fmt"
	"reflect"
	"strings"
)

// ParamSpec declares a parameter accepted by a kind.
type ParamSpec struct {
	Name     string
	Required bool
	Parse    func(any) (any, error)
}

// Kind is a named rule kind: an ordered list of bases plus at most one
// check of its own. Kinds are immutable once defined.
type Kind struct {
	name   string
	bases  []*Kind
	attrs  map[string]any
	check  CheckName
	build  Compiler
	params []ParamSpec

	// mro is the C3 linearization, starting with the kind itself.
	mro []*Kind
}

// KindOption configures a kind being defined.
type KindOption func(*Kind)

// WithAttr sets a class-level attribute, inherited through the
// linearization (nearest definition wins).
func WithAttr(key string, value any) KindOption {
	return func(k *Kind) {
		if k.attrs == nil {
			k.attrs = make(map[string]any)
		}
		k.attrs[key] = value
	}
}

// WithCheck gives the kind its own check.
func WithCheck(name CheckName, c Compiler) KindOption {
	return func(k *Kind) {
		k.check = name
		k.build = c
	}
}

// WithParam declares a parameter owned by the kind.
func WithParam(p ParamSpec) KindOption {
	return func(k *Kind) {
		k.params = append(k.params, p)
	}
}

// TypeCheck attaches the type check. The accepted type set is read from
// the "type" attribute.
func TypeCheck() KindOption {
	return WithCheck(CheckType, compileType)
}

// Positivity attaches the value >= 0 check.
func Positivity() KindOption {
	return WithCheck(CheckPositive, compilePositive)
}

// SizeBound attaches the length check and its required max_length parameter.
func SizeBound() KindOption {
	return func(k *Kind) {
		WithCheck(CheckSize, compileSize)(k)
		WithParam(ParamSpec{Name: "max_length", Required: true, Parse: parseMaxLength})(k)
	}
}

// PatternMatch attaches the pattern check and its required pattern parameter.
func PatternMatch() KindOption {
	return func(k *Kind) {
		WithCheck(CheckPattern, compilePattern)(k)
		WithParam(ParamSpec{Name: "pattern", Required: true, Parse: parsePattern})(k)
	}
}

// Name returns the kind name.
func (k *Kind) Name() string {
	return k.name
}

// Linearization returns the kind names in composition order, most
// derived first.
func (k *Kind) Linearization() []string {
	names := make([]string, len(k.mro))
	for i, m := range k.mro {
		names[i] = m.name
	}
	return names
}

// Checks returns the checks the kind runs, in order.
func (k *Kind) Checks() []CheckName {
	var out []CheckName
	for _, m := range k.mro {
		if m.build != nil {
			out = append(out, m.check)
		}
	}
	return out
}

// Attr looks an attribute up along the linearization.
func (k *Kind) Attr(key string) (any, bool) {
	for _, m := range k.mro {
		if v, ok := m.attrs[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Params returns every parameter the kind accepts, in linearization order.
func (k *Kind) Params() []ParamSpec {
	var out []ParamSpec
	for _, m := range k.mro {
		out = append(out, m.params...)
	}
	return out
}

// derives reports whether k has other in its linearization.
func (k *Kind) derives(other *Kind) bool {
	for _, m := range k.mro {
		if m == other {
			return true
		}
	}
	return false
}

// linearize computes the C3 linearization of k over bases.
func linearize(k *Kind, bases []*Kind) ([]*Kind, error) {
	seqs := make([][]*Kind, 0, len(bases)+1)
	for _, b := range bases {
		seqs = append(seqs, append([]*Kind(nil), b.mro...))
	}
	seqs = append(seqs, append([]*Kind(nil), bases...))

	result := []*Kind{k}
	for {
		live := seqs[:0]
		for _, s := range seqs {
			if len(s) > 0 {
				live = append(live, s)
			}
		}
		seqs = live
		if len(seqs) == 0 {
			return result, nil
		}

		var next *Kind
		for _, s := range seqs {
			if !inTail(s[0], seqs) {
				next = s[0]
				break
			}
		}
		if next == nil {
			heads := make([]string, len(seqs))
			for i, s := range seqs {
				heads[i] = s[0].name
			}
			return nil, fmt.Errorf("%w: cannot order %s for kind %q", ErrAmbiguousComposition, strings.Join(heads, ", "), k.name)
		}

		result = append(result, next)
		for i, s := range seqs {
			if s[0] == next {
				seqs[i] = s[1:]
			}
		}
	}
}

func inTail(k *Kind, seqs [][]*Kind) bool {
	for _, s := range seqs {
		for _, t := range s[1:] {
			if t == k {
				return true
			}
		}
	}
	return false
}

// checkConsistency rejects linearizations in which unrelated kinds
// contribute the same check, attribute or parameter with different
// meanings.
func checkConsistency(k *Kind) error {
	checks := make(map[CheckName]*Kind)
	params := make(map[string]*Kind)
	attrs := make(map[string][]*Kind)

	for _, m := range k.mro {
		if m.build != nil {
			if prev, dup := checks[m.check]; dup {
				return fmt.Errorf("%w: kind %q gets check %q from both %q and %q",
					ErrContradictoryRules, k.name, m.check, prev.name, m.name)
			}
			checks[m.check] = m
		}
		for _, p := range m.params {
			if prev, dup := params[p.Name]; dup {
				return fmt.Errorf("%w: kind %q gets parameter %q from both %q and %q",
					ErrContradictoryRules, k.name, p.Name, prev.name, m.name)
			}
			params[p.Name] = m
		}
		for key := range m.attrs {
			attrs[key] = append(attrs[key], m)
		}
	}

	for key, owners := range attrs {
		for i, a := range owners {
			for _, b := range owners[i+1:] {
				if a.derives(b) || b.derives(a) {
					continue
				}
				if !reflect.DeepEqual(a.attrs[key], b.attrs[key]) {
					return fmt.Errorf("%w: kind %q inherits %s=%v from %q and %s=%v from %q",
						ErrContradictoryRules, k.name, key, a.attrs[key], a.name, key, b.attrs[key], b.name)
				}
			}
		}
	}
	return nil
}
