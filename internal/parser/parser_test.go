package parser

import (
	"strings"
	"testing"

	"github.com/bnema/cosmetic-filters/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		want     models.Filter
		wantSkip string
	}{
		{
			name: "generic hide",
			line: "##.ad-banner",
			want: models.Filter{Type: models.FilterTypeCosmetic, Raw: "##.ad-banner", Selector: ".ad-banner"},
		},
		{
			name: "domain hide",
			line: "Example.com,~news.example.com##div[id^=\"ad\"]",
			want: models.Filter{
				Type:     models.FilterTypeCosmetic,
				Raw:      "Example.com,~news.example.com##div[id^=\"ad\"]",
				Selector: `div[id^="ad"]`,
				Domains:  []string{"example.com", "~news.example.com"},
			},
		},
		{
			name: "exception",
			line: "example.com#@#.sponsor",
			want: models.Filter{
				Type:     models.FilterTypeCosmeticException,
				Raw:      "example.com#@#.sponsor",
				Selector: ".sponsor",
				Domains:  []string{"example.com"},
			},
		},
		{
			name: "style injection",
			line: "example.com##body:style(overflow: auto !important)",
			want: models.Filter{
				Type:        models.FilterTypeCosmetic,
				Raw:         "example.com##body:style(overflow: auto !important)",
				InjectedCSS: "body{overflow: auto !important}",
				Domains:     []string{"example.com"},
			},
		},
		{
			name: "style injection exception",
			line: "example.com#@#body:style(overflow: auto !important)",
			want: models.Filter{
				Type:        models.FilterTypeCosmeticException,
				Raw:         "example.com#@#body:style(overflow: auto !important)",
				InjectedCSS: "body{overflow: auto !important}",
				Domains:     []string{"example.com"},
			},
		},
		{
			name: "css not is plain css",
			line: "##div:not(.keep)",
			want: models.Filter{Type: models.FilterTypeCosmetic, Raw: "##div:not(.keep)", Selector: "div:not(.keep)"},
		},
		{name: "comment", line: "! Title: list", want: models.Filter{Type: models.FilterTypeComment, Raw: "! Title: list"}},
		{name: "header", line: "[Adblock Plus 2.0]", want: models.Filter{Type: models.FilterTypeComment, Raw: "[Adblock Plus 2.0]"}},
		{name: "network", line: "||ads.example.com^$third-party", wantSkip: SkipNetwork},
		{name: "network exception", line: "@@||example.com^", wantSkip: SkipNetwork},
		{name: "scriptlet", line: "example.com##+js(set-constant, x, 1)", wantSkip: SkipScriptlet},
		{name: "html filter", line: "example.com##^script:has-text(ad)", wantSkip: SkipHTMLFilter},
		{name: "procedural", line: "example.com##div:has-text(Sponsored)", wantSkip: SkipProcedural},
		{name: "extended", line: "example.com#?#div:-abp-has(.ad)", wantSkip: SkipExtended},
		{name: "entity", line: "google.*##.ad", wantSkip: SkipEntityDomain},
		{name: "empty", line: "example.com##", wantSkip: SkipEmptySelector},
		{name: "bad style", line: "##:style(color:red)", wantSkip: SkipBadStyle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			got := p.parseLine(tt.line)
			if tt.wantSkip != "" {
				assert.Equal(t, models.FilterTypeUnsupported, got.Type)
				assert.Equal(t, 1, p.Stats().SkipReasons[tt.wantSkip])
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStats(t *testing.T) {
	list := strings.Join([]string{
		"! comment",
		"",
		"##.ad",
		"example.com##.banner",
		"example.com#@#.banner",
		"example.com##body:style(margin:0)",
		"||tracker.example^",
		"example.com##+js(noop)",
	}, "\n")

	p := New()
	filters, err := p.Parse(strings.NewReader(list))
	require.NoError(t, err)

	assert.Len(t, filters, 4)
	stats := p.Stats()
	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 1, stats.Comments)
	assert.Equal(t, 3, stats.Cosmetic)
	assert.Equal(t, 1, stats.Exception)
	assert.Equal(t, 1, stats.Injection)
	assert.Equal(t, 2, stats.Unsupported)
	assert.Equal(t, map[string]int{SkipNetwork: 1, SkipScriptlet: 1}, stats.SkipReasons)
}
