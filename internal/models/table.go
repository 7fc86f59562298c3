package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// DefaultKey is the rule key whose value applies to every host.
const DefaultKey = ""

// Variant names used in diagnostics
const (
	VariantFull = "full"
	VariantLite = "lite"
)

// ErrBadRuleValue is returned when a rule value is neither a string nor a
// non-negative integer.
var ErrBadRuleValue = errors.New("rule value must be a string or a non-negative integer")

type valueKind uint8

const (
	valueNone valueKind = iota
	valueText
	valueIndex
)

// RuleValue is either a verbatim CSS string or an index into the
// deduplicated strings of a RuleTable. A null value decodes to the zero
// RuleValue, which resolves to nothing.
type RuleValue struct {
	kind  valueKind
	text  string
	index int
}

// TextValue returns a verbatim rule value.
func TextValue(s string) RuleValue {
	return RuleValue{kind: valueText, text: s}
}

// IndexValue returns a rule value pointing into the deduplicated strings.
func IndexValue(i int) RuleValue {
	return RuleValue{kind: valueIndex, index: i}
}

// IsNull reports whether the value was absent or null.
func (v RuleValue) IsNull() bool { return v.kind == valueNone }

// Index returns the deduplication index and whether the value is one.
func (v RuleValue) Index() (int, bool) { return v.index, v.kind == valueIndex }

// Text returns the verbatim string and whether the value is one.
func (v RuleValue) Text() (string, bool) { return v.text, v.kind == valueText }

// MarshalJSON encodes the value as a JSON string, number or null.
func (v RuleValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case valueText:
		return json.Marshal(v.text)
	case valueIndex:
		return json.Marshal(v.index)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a string, an integral number or null.
func (v *RuleValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ruleValueFrom(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML encodes the value as a YAML string, integer or null.
func (v RuleValue) MarshalYAML() (any, error) {
	switch v.kind {
	case valueText:
		return v.text, nil
	case valueIndex:
		return v.index, nil
	default:
		return nil, nil
	}
}

// UnmarshalYAML accepts a string, an integer or null.
func (v *RuleValue) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ruleValueFrom(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func ruleValueFrom(raw any) (RuleValue, error) {
	switch x := raw.(type) {
	case nil:
		return RuleValue{}, nil
	case string:
		return TextValue(x), nil
	case bool, map[string]any, []any:
		return RuleValue{}, fmt.Errorf("%w: got %T", ErrBadRuleValue, raw)
	}

	if n, ok := raw.(json.Number); ok {
		raw = n.String()
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return RuleValue{}, fmt.Errorf("%w: %v", ErrBadRuleValue, err)
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return RuleValue{}, fmt.Errorf("%w: got %v", ErrBadRuleValue, raw)
	}
	return IndexValue(int(f)), nil
}

// RuleTable is the compiled, domain-keyed rule blob consumed by the
// resolver. It is never mutated after loading.
type RuleTable struct {
	Version    string `json:"version,omitempty" yaml:"version,omitempty"`
	Lite       bool   `json:"lite,omitempty" yaml:"lite,omitempty"`
	Statistics string `json:"statistics,omitempty" yaml:"statistics,omitempty"`

	DeduplicatedStrings []string             `json:"deduplicatedStrings" yaml:"deduplicatedStrings"`
	InjectionRules      map[string]RuleValue `json:"injectionRules" yaml:"injectionRules"`
	InjectionExceptions map[string]RuleValue `json:"injectionExceptions" yaml:"injectionExceptions"`
	Rules               map[string]RuleValue `json:"rules" yaml:"rules"`
	Exceptions          map[string]RuleValue `json:"exceptions" yaml:"exceptions"`
}

// Variant returns "lite" for tables restricted to top domains, "full"
// otherwise.
func (t *RuleTable) Variant() string {
	if t.Lite {
		return VariantLite
	}
	return VariantFull
}

// Mapping returns the rule mapping feeding entries of the given kind.
func (t *RuleTable) Mapping(kind EntryKind) map[string]RuleValue {
	switch kind {
	case KindSelector:
		return t.Rules
	case KindException:
		return t.Exceptions
	case KindInjection:
		return t.InjectionRules
	case KindInjectionException:
		return t.InjectionExceptions
	}
	return nil
}
