// Package resolver maps a page host to the cosmetic rule entries that apply
// to it.
//
// Within one rule mapping, matched keys are ordered by specificity: the
// number of labels in the host suffix that matched, highest first, with
// exclusion-only keys scoring 0. Ties are ordered by key. Entries of the
// default key always come last.
package resolver

import (
	"sort"

	"github.com/bnema/cosmetic-filters/internal/logging"
	"github.com/bnema/cosmetic-filters/internal/models"
	"github.com/sirupsen/logrus"
)

// Resolver resolves hosts against one immutable rule table
type Resolver struct {
	table *models.RuleTable
	keys  map[models.EntryKind][]ruleKey
	log   *logrus.Entry
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the diagnostic logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Resolver) {
		r.log = logging.Engine(log, r.table.Version, r.table.Variant())
	}
}

// New validates the table and pre-splits its keys.
func New(table *models.RuleTable, opts ...Option) (*Resolver, error) {
	if err := Validate(table); err != nil {
		return nil, err
	}

	r := &Resolver{
		table: table,
		keys:  make(map[models.EntryKind][]ruleKey, len(models.EntryKinds)),
	}
	r.log = logging.Engine(nil, table.Version, table.Variant())
	for _, opt := range opts {
		opt(r)
	}

	for _, kind := range models.EntryKinds {
		mapping := table.Mapping(kind)
		keys := make([]string, 0, len(mapping))
		for key := range mapping {
			if key == models.DefaultKey {
				continue
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)

		parsed := make([]ruleKey, len(keys))
		for i, key := range keys {
			parsed[i] = parseKey(key)
		}
		r.keys[kind] = parsed
	}

	return r, nil
}

// Table returns the table the resolver was built from
func (r *Resolver) Table() *models.RuleTable {
	return r.table
}

type keyMatch struct {
	key   string
	score int
}

// Resolve returns the entries applying to host: host-specific entries of
// every mapping first, then one default entry per mapping with a non-empty
// default value.
// It never fails; an unknown host yields only the defaults.
func (r *Resolver) Resolve(host string) []models.ResolvedEntry {
	normalized := NormalizeHost(host)
	tails := suffixes(normalized)

	var out []models.ResolvedEntry
	for _, kind := range models.EntryKinds {
		mapping := r.table.Mapping(kind)

		var matches []keyMatch
		for i := range r.keys[kind] {
			rk := &r.keys[kind][i]
			for _, score := range rk.match(tails) {
				matches = append(matches, keyMatch{key: rk.key, score: score})
			}
		}

		// Keys are already sorted, so a stable sort keeps ties in key order.
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].score > matches[j].score
		})

		for _, m := range matches {
			text, ok := r.text(mapping[m.key])
			if !ok {
				continue
			}
			r.log.WithFields(logrus.Fields{
				"kind": kind.String(),
				"key":  m.key,
			}).Debug("found rule for domain")
			out = append(out, models.ResolvedEntry{
				Kind:  kind,
				Value: text,
				Key:   m.key,
				Score: m.score,
			})
		}
	}

	for _, kind := range models.EntryKinds {
		v, ok := r.table.Mapping(kind)[models.DefaultKey]
		if !ok {
			continue
		}
		text, ok := r.text(v)
		if !ok || text == "" {
			continue
		}
		out = append(out, models.ResolvedEntry{
			Kind:      kind,
			Value:     text,
			Key:       models.DefaultKey,
			IsDefault: true,
		})
	}

	r.log.WithField("host", normalized).Debugf("found %d rules to inject", len(out))
	return out
}

// text resolves a value to its CSS text. Null values resolve to nothing.
func (r *Resolver) text(v models.RuleValue) (string, bool) {
	if idx, ok := v.Index(); ok {
		return r.table.DeduplicatedStrings[idx], true
	}
	return v.Text()
}
