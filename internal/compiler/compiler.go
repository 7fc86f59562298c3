// Package compiler turns parsed cosmetic filters into the domain-keyed rule
// table the resolver consumes.
package compiler

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/bnema/cosmetic-filters/internal/models"
)

// Compiler builds rule tables from combined filter groups
type Compiler struct {
	version string
	top     *TopDomains
	stats   Stats
}

// Stats tracks compilation statistics
type Stats struct {
	Groups              int
	Kept                int
	Rules               int
	Exceptions          int
	InjectionRules      int
	InjectionExceptions int
	Deduplicated        int
}

// Option configures a Compiler
type Option func(*Compiler)

// WithVersion stamps the table version
func WithVersion(v string) Option {
	return func(c *Compiler) { c.version = v }
}

// WithTopDomains builds the lite table: only keys naming one of the top
// domains, plus the default key.
func WithTopDomains(td *TopDomains) Option {
	return func(c *Compiler) { c.top = td }
}

// New creates a new compiler
func New(opts ...Option) *Compiler {
	c := &Compiler{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats returns statistics of the last compilation
func (c *Compiler) Stats() Stats {
	return c.stats
}

type joined struct {
	rules, exceptions, injections, injectionExceptions string
}

// Compile joins every group's values into one string per mapping and moves
// strings used by more than one entry into the deduplicated strings.
func (c *Compiler) Compile(groups map[string]*Group) *models.RuleTable {
	c.stats = Stats{Groups: len(groups)}
	groups = c.selectGroups(groups)
	c.stats.Kept = len(groups)

	compiled := make(map[string]joined, len(groups))
	counts := make(map[string]int)
	for key, g := range groups {
		j := joined{
			rules:               joinSorted(g.Selectors, ","),
			exceptions:          joinSorted(g.Exceptions, ","),
			injections:          joinSorted(g.Injections, ""),
			injectionExceptions: joinSortedQuoted(g.InjectionExceptions, "|"),
		}
		for _, s := range []string{j.rules, j.exceptions, j.injections, j.injectionExceptions} {
			if s != "" {
				counts[s]++
			}
		}
		compiled[key] = j
	}

	var dedup []string
	for s, n := range counts {
		if n > 1 {
			dedup = append(dedup, s)
		}
	}
	sort.Strings(dedup)
	index := make(map[string]int, len(dedup))
	for i, s := range dedup {
		index[s] = i
	}
	c.stats.Deduplicated = len(dedup)

	value := func(s string) models.RuleValue {
		if i, ok := index[s]; ok {
			return models.IndexValue(i)
		}
		return models.TextValue(s)
	}

	table := &models.RuleTable{
		Version:             c.version,
		Lite:                c.top != nil,
		DeduplicatedStrings: dedup,
		Rules:               make(map[string]models.RuleValue),
		Exceptions:          make(map[string]models.RuleValue),
		InjectionRules:      make(map[string]models.RuleValue),
		InjectionExceptions: make(map[string]models.RuleValue),
	}
	if table.DeduplicatedStrings == nil {
		table.DeduplicatedStrings = []string{}
	}

	for key, j := range compiled {
		if j.rules != "" {
			table.Rules[key] = value(j.rules)
		}
		if j.exceptions != "" {
			table.Exceptions[key] = value(j.exceptions)
		}
		if j.injections != "" {
			table.InjectionRules[key] = value(j.injections)
		}
		if j.injectionExceptions != "" {
			table.InjectionExceptions[key] = value(j.injectionExceptions)
		}
	}

	c.stats.Rules = len(table.Rules)
	c.stats.Exceptions = len(table.Exceptions)
	c.stats.InjectionRules = len(table.InjectionRules)
	c.stats.InjectionExceptions = len(table.InjectionExceptions)
	table.Statistics = Statistics(table)
	return table
}

// selectGroups applies the top domain restriction
func (c *Compiler) selectGroups(groups map[string]*Group) map[string]*Group {
	if c.top == nil {
		return groups
	}

	kept := make(map[string]*Group)
	for _, key := range slices.Sorted(maps.Keys(groups)) {
		g := groups[key]
		if key == models.DefaultKey {
			kept[key] = g
			continue
		}
		for _, d := range g.Domains {
			if !strings.HasPrefix(d, "~") && c.top.Contains(d) {
				kept[key] = g
				break
			}
		}
	}
	return kept
}

// Statistics summarizes how many domains each mapping covers
func Statistics(t *models.RuleTable) string {
	return fmt.Sprintf("blockers for %d domains, exceptions for %d domains, injected CSS rules for %d domains, exception for CSS injection for %d domains",
		len(t.Rules), len(t.Exceptions), len(t.InjectionRules), len(t.InjectionExceptions))
}

func joinSorted(values []string, sep string) string {
	sorted := slices.Clone(values)
	sort.Strings(sorted)
	return strings.Join(sorted, sep)
}

// joinSortedQuoted joins values as a regexp alternation matching each one
// literally.
func joinSortedQuoted(values []string, sep string) string {
	sorted := slices.Clone(values)
	sort.Strings(sorted)
	for i, v := range sorted {
		sorted[i] = regexp.QuoteMeta(v)
	}
	return strings.Join(sorted, sep)
}
