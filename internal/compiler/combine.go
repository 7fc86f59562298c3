package compiler

import (
	"slices"
	"strings"

	"github.com/bnema/cosmetic-filters/internal/models"
)

// Group collects the filters sharing one domain list
type Group struct {
	Domains             []string
	Selectors           []string
	Exceptions          []string
	Injections          []string
	InjectionExceptions []string
}

// Combine groups filters by their comma-joined domain list. Generic
// filters land in the default key. Values are kept once per group.
func Combine(filters []models.Filter) map[string]*Group {
	groups := make(map[string]*Group)

	for _, f := range filters {
		key := strings.ToLower(strings.Join(f.Domains, ","))
		g, ok := groups[key]
		if !ok {
			g = &Group{Domains: f.Domains}
			groups[key] = g
		}

		switch {
		case f.Selector != "" && f.IsException():
			g.Exceptions = appendUnique(g.Exceptions, f.Selector)
		case f.Selector != "":
			g.Selectors = appendUnique(g.Selectors, f.Selector)
		case f.InjectedCSS != "" && f.IsException():
			g.InjectionExceptions = appendUnique(g.InjectionExceptions, f.InjectedCSS)
		case f.InjectedCSS != "":
			g.Injections = appendUnique(g.Injections, f.InjectedCSS)
		}
	}

	return groups
}

func appendUnique(s []string, v string) []string {
	if slices.Contains(s, v) {
		return s
	}
	return append(s, v)
}
