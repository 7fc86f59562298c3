package models

import "fmt"

// EntryKind identifies which rule mapping an entry came from
type EntryKind int

const (
	KindSelector EntryKind = iota
	KindException
	KindInjection
	KindInjectionException
)

// EntryKinds lists the kinds in resolution order.
var EntryKinds = []EntryKind{KindSelector, KindException, KindInjection, KindInjectionException}

// String returns the kind name
func (k EntryKind) String() string {
	switch k {
	case KindSelector:
		return "selector"
	case KindException:
		return "exception"
	case KindInjection:
		return "injection"
	case KindInjectionException:
		return "injectionException"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k EntryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *EntryKind) UnmarshalText(text []byte) error {
	for _, kind := range EntryKinds {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown entry kind %q", text)
}

// ResolvedEntry is one rule value that applies to a host
type ResolvedEntry struct {
	Kind  EntryKind `json:"kind"`
	Value string    `json:"value"`
	Key   string    `json:"key"`

	// Score is the specificity the entry was ordered by: labels in the
	// matching host suffix, 0 for exclusion-only keys and defaults.
	Score     int  `json:"score"`
	IsDefault bool `json:"isDefault"`
}
