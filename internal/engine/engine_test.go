package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bnema/cosmetic-filters/internal/enforcer"
	"github.com/bnema/cosmetic-filters/internal/logging"
	"github.com/bnema/cosmetic-filters/internal/metrics"
	"github.com/bnema/cosmetic-filters/internal/models"
	"github.com/bnema/cosmetic-filters/internal/resolver"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html><html lang="en"><head><title>t</title></head>
<body><div id="ad-top">ad</div><p class="sponsored">s</p><p>text</p></body></html>`

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	res, err := resolver.New(&models.RuleTable{
		Version: "2026.10.15",
		Rules: map[string]models.RuleValue{
			"":            models.TextValue(".sponsored"),
			"example.com": models.TextValue("#ad-top"),
		},
		InjectionRules: map[string]models.RuleValue{
			"example.com": models.TextValue("body{margin:0}"),
		},
	})
	require.NoError(t, err)
	return New(res, opts...)
}

func TestResolve(t *testing.T) {
	e := newEngine(t)

	res := e.Resolve(" WWW.Example.COM:8443 ")

	assert.Equal(t, "www.example.com", res.Host)
	require.Len(t, res.Entries, 3)
	assert.Equal(t, ":is(#ad-top,.sponsored){"+enforcer.HiddenStyle+"}", res.Assembly.CombinedHideSelector)
	assert.Equal(t, ":is(#ad-top)", res.Assembly.PageSpecificSelector)
	assert.Equal(t, "body{margin:0}", res.Assembly.InjectionCSS)
}

func TestFilter(t *testing.T) {
	m := metrics.New()
	e := newEngine(t, WithRecorder(m))

	var out bytes.Buffer
	report, err := e.Filter(context.Background(), "example.com", strings.NewReader(page), &out)
	require.NoError(t, err)

	assert.Equal(t, "example.com", report.Host)
	assert.Equal(t, enforcer.StateStyleInjected.String(), report.State)
	assert.Equal(t, 2, report.Stats.Stylesheets)
	assert.Equal(t, 8, report.Stats.Scans)
	assert.Equal(t, 8, report.Stats.Hidden)

	html := out.String()
	assert.Contains(t, html, `<html lang="en">`)
	assert.Contains(t, html, `<style type="text/css">:is(#ad-top,.sponsored){`)
	assert.Contains(t, html, `<div id="ad-top" style="`+enforcer.HiddenStyle+`">`)
	assert.Contains(t, html, `<p class="sponsored">s</p>`)
}

func TestFilterUnknownHostOnlyDefaults(t *testing.T) {
	e := newEngine(t)

	var out bytes.Buffer
	report, err := e.Filter(context.Background(), "other.test", strings.NewReader(page), &out)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.Stylesheets)
	assert.Zero(t, report.Stats.Scans)
	assert.Equal(t, 8, report.Stats.Skipped)
	assert.NotContains(t, out.String(), `style="`)
}

func TestFilterCanceled(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Filter(ctx, "example.com", strings.NewReader(page), &bytes.Buffer{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/rules.json", []byte(`{"rules":{"example.com":".x"}}`), 0644))
	require.NoError(t, afero.WriteFile(fs, "/broken.json", []byte(`{"rules":{"example.com":3}}`), 0644))

	e, err := LoadFile(fs, "/rules.json", logging.Discard(), WithLoadDelay(time.Second))
	require.NoError(t, err)
	assert.Equal(t, time.Second, e.loadDelay)
	assert.Len(t, e.Resolve("example.com").Entries, 1)

	_, err = LoadFile(fs, "/broken.json", logging.Discard())
	assert.ErrorIs(t, err, resolver.ErrIndexOutOfRange)
}
