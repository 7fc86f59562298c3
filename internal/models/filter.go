package models

// FilterType represents the type of filter parsed
type FilterType int

const (
	FilterTypeComment FilterType = iota
	FilterTypeCosmetic
	FilterTypeCosmeticException
	FilterTypeUnsupported // network, scriptlets, HTML filters, procedural
)

// Filter represents a parsed cosmetic filter line.
// Exactly one of Selector and InjectedCSS is set.
type Filter struct {
	Type        FilterType
	Raw         string   // Original filter line
	Selector    string   // CSS selector to hide
	InjectedCSS string   // Full CSS rule for :style() filters
	Domains     []string // Domain terms, "~" prefixed when negated
}

// IsException reports whether the filter un-hides or un-injects.
func (f Filter) IsException() bool {
	return f.Type == FilterTypeCosmeticException
}
