package rule

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"unicode/utf8"
)

// CheckName identifies a primitive check.
type CheckName string

const (
	CheckType     CheckName = "type"
	CheckPositive CheckName = "positive"
	CheckSize     CheckName = "size"
	CheckPattern  CheckName = "pattern"
)

// TypeTag names the set of Go types a type check accepts.
type TypeTag string

const (
	TypeAny    TypeTag = "any"
	TypeInt    TypeTag = "int"
	TypeFloat  TypeTag = "float"
	TypeString TypeTag = "string"
)

// ParseTypeTag converts a string or TypeTag into a known tag.
func ParseTypeTag(v any) (TypeTag, error) {
	var s string
	switch t := v.(type) {
	case TypeTag:
		s = string(t)
	case string:
		s = t
	default:
		return "", fmt.Errorf("type tag must be a string, got %T", v)
	}
	switch tag := TypeTag(s); tag {
	case TypeAny, TypeInt, TypeFloat, TypeString:
		return tag, nil
	default:
		return "", fmt.Errorf("unknown type tag %q", s)
	}
}

// Accepts reports whether value belongs to the tag's type set. Named
// types are accepted by their underlying kind. Booleans are not integers.
func (t TypeTag) Accepts(value any) bool {
	if t == TypeAny {
		return true
	}
	if value == nil {
		return false
	}
	k := reflect.TypeOf(value).Kind()
	switch t {
	case TypeInt:
		return isIntKind(k)
	case TypeFloat:
		return k == reflect.Float32 || k == reflect.Float64
	case TypeString:
		return k == reflect.String
	}
	return false
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// CheckFunc is one compiled check.
type CheckFunc func(value any) *Violation

// Compiler builds a CheckFunc once, at composition time, from the
// resolved attributes and parameters of a kind.
type Compiler func(env Env) (CheckFunc, error)

func compileType(env Env) (CheckFunc, error) {
	raw, ok := env.Attr("type")
	if !ok {
		raw = TypeAny
	}
	tag, err := ParseTypeTag(raw)
	if err != nil {
		return nil, err
	}
	if tag == TypeAny {
		return func(any) *Violation { return nil }, nil
	}
	return func(value any) *Violation {
		if tag.Accepts(value) {
			return nil
		}
		return newViolation(CheckType, ErrType, value, "wrong type, expected %s", tag)
	}, nil
}

func compilePositive(Env) (CheckFunc, error) {
	return func(value any) *Violation {
		negative, ok := isNegative(value)
		if !ok {
			return newViolation(CheckPositive, ErrType, value, "expected a number")
		}
		if negative {
			return newViolation(CheckPositive, ErrRange, value, "expected >= 0")
		}
		return nil
	}, nil
}

func isNegative(value any) (negative, ok bool) {
	if value == nil {
		return false, false
	}
	v := reflect.ValueOf(value)
	switch {
	case v.CanInt():
		return v.Int() < 0, true
	case v.CanUint():
		return false, true
	case v.CanFloat():
		f := v.Float()
		if math.IsNaN(f) {
			return false, false
		}
		return f < 0, true
	}
	return false, false
}

func compileSize(env Env) (CheckFunc, error) {
	raw, _ := env.Param("max_length")
	maxLen := raw.(int)
	return func(value any) *Violation {
		n, ok := length(value)
		if !ok {
			return newViolation(CheckSize, ErrType, value, "value has no length")
		}
		if n > maxLen {
			return newViolation(CheckSize, ErrSize, value, "too big, expected length <= %d", maxLen)
		}
		return nil
	}, nil
}

// length counts characters for strings and elements for containers.
func length(value any) (int, bool) {
	if s, ok := value.(string); ok {
		return utf8.RuneCountInString(s), true
	}
	if value == nil {
		return 0, false
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.String:
		return utf8.RuneCountInString(v.String()), true
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len(), true
	}
	return 0, false
}

func compilePattern(env Env) (CheckFunc, error) {
	raw, _ := env.Param("pattern")
	p := raw.(pattern)
	return func(value any) *Violation {
		s, ok := value.(string)
		if !ok {
			return newViolation(CheckPattern, ErrType, value, "expected a string")
		}
		if !p.re.MatchString(s) {
			return newViolation(CheckPattern, ErrPattern, value, "value did not match %q", p.source)
		}
		return nil
	}, nil
}

// parseMaxLength accepts any Go integer, integral floats and decimal
// strings. Values that do not fit in an int are rejected, never wrapped.
func parseMaxLength(v any) (any, error) {
	if str, ok := v.(string); ok {
		i, err := strconv.Atoi(str)
		if err != nil {
			return nil, fmt.Errorf("max_length must be an integer, got %q", str)
		}
		v = i
	}
	if v == nil {
		return nil, fmt.Errorf("max_length must be an integer, got nil")
	}

	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		n := rv.Int()
		if n < 0 {
			return nil, fmt.Errorf("max_length must not be negative, got %d", n)
		}
		if n > math.MaxInt {
			return nil, fmt.Errorf("max_length %d is out of range", n)
		}
		return int(n), nil
	case rv.CanUint():
		n := rv.Uint()
		if n > math.MaxInt {
			return nil, fmt.Errorf("max_length %d is out of range", n)
		}
		return int(n), nil
	case rv.CanFloat():
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return nil, fmt.Errorf("max_length must be an integer, got %v", f)
		}
		if f < 0 {
			return nil, fmt.Errorf("max_length must not be negative, got %v", f)
		}
		if f >= math.MaxInt {
			return nil, fmt.Errorf("max_length %v is out of range", f)
		}
		return int(f), nil
	}
	return nil, fmt.Errorf("max_length must be an integer, got %T", v)
}

type pattern struct {
	source string
	re     *regexp.Regexp
}

func (p pattern) String() string {
	return p.source
}

// parsePattern compiles a pattern anchored at the start of the value.
func parsePattern(v any) (any, error) {
	var source string
	switch t := v.(type) {
	case *regexp.Regexp:
		source = t.String()
	case string:
		source = t
	default:
		return nil, fmt.Errorf("pattern must be a string, got %T", v)
	}
	re, err := regexp.Compile(`\A(?:` + source + `)`)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", source, err)
	}
	return pattern{source: source, re: re}, nil
}
