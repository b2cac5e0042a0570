package rule

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
)

type port int

func TestParseMaxLength(t *testing.T) {
	tests := []struct {
		in      any
		want    int
		wantErr bool
	}{
		{in: 15, want: 15},
		{in: int8(3), want: 3},
		{in: int16(300), want: 300},
		{in: int64(15), want: 15},
		{in: uint8(7), want: 7},
		{in: uint64(9), want: 9},
		{in: uint(0), want: 0},
		{in: float32(12), want: 12},
		{in: 15.0, want: 15},
		{in: "15", want: 15},
		{in: port(4), want: 4},
		{in: -1, wantErr: true},
		{in: int8(-1), wantErr: true},
		{in: 1.5, wantErr: true},
		{in: math.NaN(), wantErr: true},
		{in: math.Inf(1), wantErr: true},
		{in: uint64(math.MaxUint64), wantErr: true},
		{in: 1e300, wantErr: true},
		{in: true, wantErr: true},
		{in: nil, wantErr: true},
		{in: "ten", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseMaxLength(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMaxLength(%#v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseMaxLength(%#v) = %#v, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTypeTag_Accepts(t *testing.T) {
	tests := []struct {
		tag   TypeTag
		value any
		want  bool
	}{
		{TypeInt, 42, true},
		{TypeInt, int64(-3), true},
		{TypeInt, uint8(7), true},
		{TypeInt, port(8080), true},
		{TypeInt, 1.5, false},
		{TypeInt, true, false},
		{TypeInt, "1", false},
		{TypeInt, nil, false},
		{TypeFloat, 1.5, true},
		{TypeFloat, float32(1), true},
		{TypeFloat, 1, false},
		{TypeString, "x", true},
		{TypeString, []byte("x"), false},
		{TypeAny, nil, true},
		{TypeAny, struct{}{}, true},
	}

	for _, tt := range tests {
		if got := tt.tag.Accepts(tt.value); got != tt.want {
			t.Errorf("%s.Accepts(%#v) = %v, want %v", tt.tag, tt.value, got, tt.want)
		}
	}
}

func TestDefault_Linearization(t *testing.T) {
	c := Default()

	tests := []struct {
		kind       string
		wantMRO    []string
		wantChecks []CheckName
	}{
		{
			kind:       PositiveInteger,
			wantMRO:    []string{PositiveInteger, Integer, Typed, Positive, Root},
			wantChecks: []CheckName{CheckType, CheckPositive},
		},
		{
			kind:       PositiveFloat,
			wantMRO:    []string{PositiveFloat, Float, Typed, Positive, Root},
			wantChecks: []CheckName{CheckType, CheckPositive},
		},
		{
			kind:       SizedString,
			wantMRO:    []string{SizedString, String, Typed, Sized, Root},
			wantChecks: []CheckName{CheckType, CheckSize},
		},
		{
			kind:       SizedRegexString,
			wantMRO:    []string{SizedRegexString, SizedString, String, Typed, Sized, Regex, Root},
			wantChecks: []CheckName{CheckType, CheckSize, CheckPattern},
		},
		{
			kind:       Regex,
			wantMRO:    []string{Regex, Root},
			wantChecks: []CheckName{CheckPattern},
		},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			k, ok := c.Kind(tt.kind)
			if !ok {
				t.Fatalf("Kind(%q) not found", tt.kind)
			}
			if got := k.Linearization(); !reflect.DeepEqual(got, tt.wantMRO) {
				t.Errorf("Linearization() = %v, want %v", got, tt.wantMRO)
			}
			if got := k.Checks(); !reflect.DeepEqual(got, tt.wantChecks) {
				t.Errorf("Checks() = %v, want %v", got, tt.wantChecks)
			}
		})
	}
}

func TestLinearization_StableAcrossBuilds(t *testing.T) {
	first := Default().MustCompose(SizedRegexString, Params{"max_length": 3, "pattern": "a"})
	for i := 0; i < 10; i++ {
		again := Default().MustCompose(SizedRegexString, Params{"max_length": 3, "pattern": "a"})
		if !reflect.DeepEqual(again.Checks(), first.Checks()) {
			t.Fatalf("build %d: Checks() = %v, want %v", i, again.Checks(), first.Checks())
		}
	}
}

func TestCatalog_Define_Errors(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		bases   []string
		opts    []KindOption
		wantErr error
	}{
		{name: "unknown base", kind: "X", bases: []string{"Nope"}, wantErr: ErrUnknownKind},
		{name: "inconsistent order", kind: "X", bases: []string{Typed, Integer}, wantErr: ErrAmbiguousComposition},
		{name: "conflicting type", kind: "X", bases: []string{Integer, Float}, wantErr: ErrContradictoryRules},
		{name: "duplicate check", kind: "X", bases: []string{Sized}, opts: []KindOption{SizeBound()}, wantErr: ErrContradictoryRules},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			_, err := c.Define(tt.kind, tt.bases, tt.opts...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Define() error = %v, want %v", err, tt.wantErr)
			}
			if c.Has(tt.kind) {
				t.Error("failed Define() must not register the kind")
			}
		})
	}
}

func TestCatalog_Define_Custom(t *testing.T) {
	c := Default()

	k, err := c.Define("SizedPositiveList", []string{Sized, Positive})
	if err != nil {
		t.Fatalf("Define() error = %v", err)
	}
	if got, want := k.Checks(), []CheckName{CheckSize, CheckPositive}; !reflect.DeepEqual(got, want) {
		t.Errorf("Checks() = %v, want %v", got, want)
	}

	if _, err := c.Define("SizedPositiveList", nil); err == nil {
		t.Error("Define() should reject a duplicate kind name")
	}
}

func TestCompose_Params(t *testing.T) {
	c := Default()

	tests := []struct {
		name    string
		kind    string
		params  Params
		wantErr error
	}{
		{name: "no params", kind: PositiveInteger},
		{name: "string max_length", kind: SizedString, params: Params{"max_length": "15"}},
		{name: "float max_length", kind: SizedString, params: Params{"max_length": 15.0}},
		{name: "missing max_length", kind: SizedString, wantErr: ErrInvalidParams},
		{name: "bad max_length", kind: SizedString, params: Params{"max_length": "ten"}, wantErr: ErrInvalidParams},
		{name: "unknown param", kind: PositiveInteger, params: Params{"max_length": 3}, wantErr: ErrInvalidParams},
		{name: "bad pattern", kind: RegexString, params: Params{"pattern": "("}, wantErr: ErrInvalidParams},
		{name: "unknown kind", kind: "Nope", wantErr: ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compose(tt.kind, tt.params)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Compose() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Compose() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChain_Validate(t *testing.T) {
	c := Default()
	ip := Params{"max_length": 15, "pattern": `\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`}

	tests := []struct {
		name      string
		kind      string
		params    Params
		value     any
		wantErr   error
		wantCheck CheckName
	}{
		{name: "positive int ok", kind: PositiveInteger, value: 8080},
		{name: "zero ok", kind: PositiveInteger, value: 0},
		{name: "negative int", kind: PositiveInteger, value: -1, wantErr: ErrRange, wantCheck: CheckPositive},
		{name: "negative float fails type first", kind: PositiveInteger, value: -1.5, wantErr: ErrType, wantCheck: CheckType},
		{name: "string for int", kind: PositiveInteger, value: "80", wantErr: ErrType, wantCheck: CheckType},
		{name: "positive float", kind: PositiveFloat, value: 0.5},
		{name: "int for float", kind: PositiveFloat, value: 1, wantErr: ErrType, wantCheck: CheckType},
		{name: "ip ok", kind: SizedRegexString, params: ip, value: "10.0.0.1"},
		{name: "ip too long", kind: SizedRegexString, params: ip, value: "100.100.100.1000", wantErr: ErrSize, wantCheck: CheckSize},
		{name: "ip no match", kind: SizedRegexString, params: ip, value: "not-an-ip", wantErr: ErrPattern, wantCheck: CheckPattern},
		{name: "ip wrong type", kind: SizedRegexString, params: ip, value: 10, wantErr: ErrType, wantCheck: CheckType},
		{name: "match from start only", kind: RegexString, params: Params{"pattern": "b"}, value: "ab", wantErr: ErrPattern, wantCheck: CheckPattern},
		{name: "prefix match is enough", kind: RegexString, params: Params{"pattern": "a"}, value: "abc"},
		{name: "size counts runes", kind: SizedString, params: Params{"max_length": 2}, value: "éé"},
		{name: "sized slice", kind: Sized, params: Params{"max_length": 1}, value: []int{1, 2}, wantErr: ErrSize, wantCheck: CheckSize},
		{name: "sized without length", kind: Sized, params: Params{"max_length": 1}, value: 3, wantErr: ErrType, wantCheck: CheckSize},
		{name: "positive without number", kind: Positive, value: "x", wantErr: ErrType, wantCheck: CheckPositive},
		{name: "plain typed accepts anything", kind: Typed, value: struct{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := c.Compose(tt.kind, tt.params)
			if err != nil {
				t.Fatalf("Compose() error = %v", err)
			}

			err = ch.Validate(tt.value)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate(%#v) error = %v", tt.value, err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate(%#v) error = %v, want %v", tt.value, err, tt.wantErr)
			}
			if !errors.Is(err, ErrViolation) {
				t.Errorf("Validate(%#v) error should match ErrViolation", tt.value)
			}

			var v *Violation
			if !errors.As(err, &v) {
				t.Fatalf("Validate() error type = %T, want *Violation", err)
			}
			if v.Check != tt.wantCheck {
				t.Errorf("Check = %q, want %q", v.Check, tt.wantCheck)
			}
			if v.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", v.Kind, tt.kind)
			}
		})
	}
}

func TestViolation_Error(t *testing.T) {
	ch := Default().MustCompose(PositiveInteger, nil)

	err := ch.Validate(-1)
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("Validate() error = %v", err)
	}

	msg := v.WithField("port").Error()
	for _, want := range []string{`"port"`, PositiveInteger, ">= 0", "-1"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
	if v.Field != "" {
		t.Error("WithField() must not modify the original violation")
	}
}

func TestChain_String(t *testing.T) {
	ch := Default().MustCompose(SizedRegexString, Params{"max_length": 3, "pattern": "a"})
	if got, want := ch.String(), "SizedRegexString[type size pattern]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := ch.Params()["max_length"]; got != 3 {
		t.Errorf("Params()[max_length] = %v, want 3", got)
	}
}
