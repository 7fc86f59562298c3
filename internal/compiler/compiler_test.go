package compiler

import (
	"strings"
	"testing"

	"github.com/bnema/cosmetic-filters/internal/enforcer"
	"github.com/bnema/cosmetic-filters/internal/models"
	"github.com/bnema/cosmetic-filters/internal/parser"
	"github.com/bnema/cosmetic-filters/internal/resolver"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const list = `! test list
##.ad
##.sponsored
example.com##.banner
example.com##.banner
example.com###top-ad
example.org###top-ad
example.org##.banner
example.com#@#.sponsored
example.com##body:style(overflow:auto!important)
example.com#@#body:style(overflow:auto!important)
~shop.example.net,example.net##.promo
`

func parse(t *testing.T, s string) []models.Filter {
	t.Helper()
	filters, err := parser.New().Parse(strings.NewReader(s))
	require.NoError(t, err)
	return filters
}

func TestCombine(t *testing.T) {
	groups := Combine(parse(t, list))

	require.Len(t, groups, 4)
	assert.Equal(t, []string{".ad", ".sponsored"}, groups[""].Selectors)

	com := groups["example.com"]
	require.NotNil(t, com)
	assert.Equal(t, []string{".banner", "#top-ad"}, com.Selectors)
	assert.Equal(t, []string{".sponsored"}, com.Exceptions)
	assert.Equal(t, []string{"body{overflow:auto!important}"}, com.Injections)
	assert.Equal(t, []string{"body{overflow:auto!important}"}, com.InjectionExceptions)

	net := groups["~shop.example.net,example.net"]
	require.NotNil(t, net)
	assert.Equal(t, []string{"~shop.example.net", "example.net"}, net.Domains)
}

func TestCombineRepeatedException(t *testing.T) {
	groups := Combine(parse(t, "example.com#@#.keep\nexample.com#@#.keep\n"))

	assert.Equal(t, []string{".keep"}, groups["example.com"].Exceptions)
	assert.Empty(t, groups["example.com"].Selectors)
}

func TestCompile(t *testing.T) {
	c := New(WithVersion("2026.10.15"))
	table := c.Compile(Combine(parse(t, list)))

	assert.Equal(t, "2026.10.15", table.Version)
	assert.False(t, table.Lite)

	// "#top-ad,.banner" is shared by example.com and example.org.
	assert.Equal(t, []string{"#top-ad,.banner"}, table.DeduplicatedStrings)
	assert.Equal(t, models.IndexValue(0), table.Rules["example.com"])
	assert.Equal(t, models.IndexValue(0), table.Rules["example.org"])
	assert.Equal(t, models.TextValue(".ad,.sponsored"), table.Rules[""])
	assert.Equal(t, models.TextValue(".promo"), table.Rules["~shop.example.net,example.net"])
	assert.Equal(t, models.TextValue(`body\{overflow:auto!important\}`), table.InjectionExceptions["example.com"])

	assert.Equal(t, "blockers for 4 domains, exceptions for 1 domains, injected CSS rules for 1 domains, exception for CSS injection for 1 domains", table.Statistics)
	assert.Equal(t, Stats{Groups: 4, Kept: 4, Rules: 4, Exceptions: 1, InjectionRules: 1, InjectionExceptions: 1, Deduplicated: 1}, c.Stats())
}

func TestCompiledTableResolves(t *testing.T) {
	table := New().Compile(Combine(parse(t, list)))
	res, err := resolver.New(table)
	require.NoError(t, err)

	asm := enforcer.Assemble(res.Resolve("www.example.com"))

	assert.Equal(t, ":is(#top-ad,.banner):not(.sponsored)", asm.PageSpecificSelector)
	css, err := asm.StrippedInjectionCSS()
	require.NoError(t, err)
	assert.Empty(t, css)

	asm = enforcer.Assemble(res.Resolve("shop.example.net"))
	assert.False(t, asm.HasPageSpecific())
}

func TestCompileLite(t *testing.T) {
	td, err := ReadTopDomains(strings.NewReader("1,example.org\n2,example.net\n3,example.com\n"), 2)
	require.NoError(t, err)

	table := New(WithTopDomains(td)).Compile(Combine(parse(t, list)))

	assert.True(t, table.Lite)
	assert.Contains(t, table.Rules, "")
	assert.Contains(t, table.Rules, "example.org")
	assert.Contains(t, table.Rules, "~shop.example.net,example.net")
	assert.NotContains(t, table.Rules, "example.com")
	assert.Empty(t, table.DeduplicatedStrings)
}

func TestReadTopDomains(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		count   int
		want    int
		wantErr bool
	}{
		{name: "limit", csv: "1,a.com\n2,b.com\n3,c.com\n", count: 2, want: 2},
		{name: "all", csv: "1,a.com\n2,B.com\n", count: 0, want: 2},
		{name: "short file", csv: "1,a.com\n", count: 10, want: 1},
		{name: "missing domain", csv: "1\n", count: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			td, err := ReadTopDomains(strings.NewReader(tt.csv), tt.count)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, td.Len())
			assert.True(t, td.Contains("A.COM"))
		})
	}
}

func TestLoadTopDomains(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/top-1m.csv", []byte("1,example.com\n"), 0644))

	td, err := LoadTopDomains(fs, "/top-1m.csv", 100)
	require.NoError(t, err)
	assert.True(t, td.Contains("example.com"))

	_, err = LoadTopDomains(fs, "/missing.csv", 100)
	assert.Error(t, err)
}
