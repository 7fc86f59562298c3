package resolver

import (
	"strings"

	"golang.org/x/net/idna"
)

// NormalizeHost turns a page host into the form rule keys are written in:
// no port, no trailing dot, ASCII (punycode) labels, lower case.
func NormalizeHost(host string) string {
	h := strings.TrimSpace(host)

	if strings.HasPrefix(h, "[") {
		if end := strings.IndexByte(h, ']'); end > 0 {
			h = h[1:end]
		}
	} else if strings.Count(h, ":") == 1 {
		h = h[:strings.IndexByte(h, ':')]
	}

	h = strings.TrimSuffix(h, ".")
	if ascii, err := idna.Lookup.ToASCII(h); err == nil {
		h = ascii
	}
	return strings.ToLower(h)
}

// hostSuffix is one tail of the host label list.
type hostSuffix struct {
	name   string
	labels int
}

// suffixes returns every tail of the label list starting at positions
// 0..len-2, longest first. The last label alone is never a match target.
func suffixes(host string) []hostSuffix {
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return nil
	}

	out := make([]hostSuffix, 0, len(labels)-1)
	for k := 0; k < len(labels)-1; k++ {
		out = append(out, hostSuffix{
			name:   strings.Join(labels[k:], "."),
			labels: len(labels) - k,
		})
	}
	return out
}

// ruleKey is a rule key split into its domain terms.
type ruleKey struct {
	key        string
	positive   map[string]struct{}
	negated    map[string]struct{}
	allNegated bool
}

func parseKey(key string) ruleKey {
	rk := ruleKey{
		key:        key,
		positive:   make(map[string]struct{}),
		negated:    make(map[string]struct{}),
		allNegated: true,
	}

	for _, term := range strings.Split(key, ",") {
		term = strings.ToLower(strings.TrimSpace(term))
		if name, ok := strings.CutPrefix(term, "~"); ok {
			rk.negated[name] = struct{}{}
			continue
		}
		rk.allNegated = false
		rk.positive[term] = struct{}{}
	}
	return rk
}

// excludes reports whether any host suffix is negated by the key.
func (k *ruleKey) excludes(host []hostSuffix) bool {
	for _, s := range host {
		if _, ok := k.negated[s.name]; ok {
			return true
		}
	}
	return false
}

// match returns one specificity score per inclusion of the key for the
// host. Exclusion-only keys score 0. A key listing several suffixes of the
// same host is included once per matching suffix.
func (k *ruleKey) match(host []hostSuffix) []int {
	if k.excludes(host) {
		return nil
	}
	if k.allNegated {
		return []int{0}
	}

	var scores []int
	for _, s := range host {
		if _, ok := k.positive[s.name]; ok {
			scores = append(scores, s.labels)
		}
	}
	return scores
}
