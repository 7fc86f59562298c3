package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/bnema/cosmetic-filters/internal/models"
)

// Parser parses the cosmetic part of ABP/uBlock filter lists
type Parser struct {
	stats Stats
}

// Stats tracks parsing statistics
type Stats struct {
	Total       int
	Cosmetic    int
	Exception   int
	Injection   int
	Comments    int
	Unsupported int
	SkipReasons map[string]int // Detailed breakdown of skipped filters
}

// SkipReason constants
const (
	SkipNetwork       = "network filter"
	SkipScriptlet     = "scriptlet (##+js)"
	SkipHTMLFilter    = "html-filter (##^)"
	SkipProcedural    = "procedural (:has-text, :xpath, etc)"
	SkipExtended      = "extended syntax (#?#, #$#)"
	SkipEntityDomain  = "entity or regex domain"
	SkipEmptySelector = "empty selector"
	SkipBadStyle      = "malformed :style()"
)

const styleOp = ":style("

// New creates a new parser
func New() *Parser {
	return &Parser{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
}

// skip records a skipped filter with reason
func (p *Parser) skip(reason string) models.Filter {
	p.stats.SkipReasons[reason]++
	return models.Filter{Type: models.FilterTypeUnsupported}
}

// Stats returns parsing statistics
func (p *Parser) Stats() Stats {
	return p.stats
}

// Parse reads filter content and returns the cosmetic filters it holds
func (p *Parser) Parse(r io.Reader) ([]models.Filter, error) {
	var filters []models.Filter
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		filter := p.parseLine(line)
		p.stats.Total++

		switch filter.Type {
		case models.FilterTypeComment:
			p.stats.Comments++
			continue
		case models.FilterTypeUnsupported:
			p.stats.Unsupported++
			continue
		case models.FilterTypeCosmeticException:
			p.stats.Exception++
		case models.FilterTypeCosmetic:
			p.stats.Cosmetic++
		}
		if filter.InjectedCSS != "" {
			p.stats.Injection++
		}

		filters = append(filters, filter)
	}

	return filters, scanner.Err()
}

// parseLine parses a single filter line
func (p *Parser) parseLine(line string) models.Filter {
	if strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[") {
		return models.Filter{Type: models.FilterTypeComment, Raw: line}
	}

	if strings.Contains(line, "##+js(") || strings.Contains(line, "#@#+js(") {
		return p.skip(SkipScriptlet)
	}
	if strings.Contains(line, "##^") || strings.Contains(line, "#@#^") || strings.Contains(line, "$$") {
		return p.skip(SkipHTMLFilter)
	}
	if strings.Contains(line, "#?#") || strings.Contains(line, "#@?#") || strings.Contains(line, "#$#") || strings.Contains(line, "#@$#") {
		return p.skip(SkipExtended)
	}

	if idx := strings.Index(line, "#@#"); idx != -1 {
		return p.parseCosmetic(line, idx, true)
	}
	if idx := strings.Index(line, "##"); idx != -1 {
		return p.parseCosmetic(line, idx, false)
	}

	return p.skip(SkipNetwork)
}

// containsProcedural checks for procedural cosmetic filter syntax
func containsProcedural(selector string) bool {
	procedural := []string{
		":has(", ":has-text(", ":xpath(", ":matches-css(",
		":matches-css-before(", ":matches-css-after(",
		":matches-attr(", ":matches-path(", ":min-text-length(",
		":upward(", ":remove(", ":remove-attr(", ":remove-class(",
		":watch-attr(", ":others(", ":-abp-contains(", ":-abp-has(",
		":-abp-properties(",
	}
	for _, p := range procedural {
		if strings.Contains(selector, p) {
			return true
		}
	}
	return false
}

// parseCosmetic parses a cosmetic (CSS) filter
func (p *Parser) parseCosmetic(line string, sepIdx int, isException bool) models.Filter {
	separator := "##"
	filterType := models.FilterTypeCosmetic
	if isException {
		separator = "#@#"
		filterType = models.FilterTypeCosmeticException
	}

	var domains []string
	if sepIdx > 0 {
		domains = parseDomainList(line[:sepIdx])
		for _, d := range domains {
			if strings.HasSuffix(d, ".*") || strings.HasPrefix(strings.TrimPrefix(d, "~"), "/") {
				return p.skip(SkipEntityDomain)
			}
		}
	}

	selector := strings.TrimSpace(line[sepIdx+len(separator):])
	if selector == "" {
		return p.skip(SkipEmptySelector)
	}
	if containsProcedural(selector) {
		return p.skip(SkipProcedural)
	}

	f := models.Filter{
		Type:    filterType,
		Raw:     line,
		Domains: domains,
	}

	if idx := strings.Index(selector, styleOp); idx != -1 {
		target := strings.TrimSpace(selector[:idx])
		decl := selector[idx+len(styleOp):]
		if target == "" || !strings.HasSuffix(decl, ")") {
			return p.skip(SkipBadStyle)
		}
		decl = strings.TrimSpace(strings.TrimSuffix(decl, ")"))
		if decl == "" || strings.ContainsAny(decl, "{}") {
			return p.skip(SkipBadStyle)
		}
		f.InjectedCSS = target + "{" + decl + "}"
		return f
	}

	f.Selector = selector
	return f
}

// parseDomainList parses comma-separated domain list
func parseDomainList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	domains := make([]string, 0, len(parts))
	for _, d := range parts {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}
