package enforcer

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ruleMatcher matches elements selected by any hide selector and by no
// exception selector.
type ruleMatcher struct {
	hide   []cascadia.Selector
	except []cascadia.Selector
}

// compileSelectors compiles each entry, falling back to its top-level
// comma-separated parts when the whole group does not parse. Parts that
// still fail are returned as rejected.
func compileSelectors(entries []string) (compiled []cascadia.Selector, rejected []string) {
	for _, entry := range entries {
		if sel, err := cascadia.Compile(entry); err == nil {
			compiled = append(compiled, sel)
			continue
		}
		for _, part := range splitGroup(entry) {
			sel, err := cascadia.Compile(part)
			if err != nil {
				rejected = append(rejected, part)
				continue
			}
			compiled = append(compiled, sel)
		}
	}
	return compiled, rejected
}

// splitGroup splits a selector list on commas outside brackets, parens and
// quotes.
func splitGroup(group string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)

	for i, r := range group {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			if part := strings.TrimSpace(group[start:i]); part != "" {
				parts = append(parts, part)
			}
			start = i + 1
		}
	}
	if part := strings.TrimSpace(group[start:]); part != "" {
		parts = append(parts, part)
	}
	return parts
}

func (m *ruleMatcher) Match(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if !anyMatch(m.hide, n) {
		return false
	}
	return !anyMatch(m.except, n)
}

// MatchAll returns n and its descendants that match, in document order.
func (m *ruleMatcher) MatchAll(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if m.Match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func (m *ruleMatcher) Filter(nodes []*html.Node) []*html.Node {
	var out []*html.Node
	for _, n := range nodes {
		if m.Match(n) {
			out = append(out, n)
		}
	}
	return out
}

func anyMatch(sels []cascadia.Selector, n *html.Node) bool {
	for _, sel := range sels {
		if sel.Match(n) {
			return true
		}
	}
	return false
}
