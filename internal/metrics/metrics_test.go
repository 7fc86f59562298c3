package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanOutcomes(t *testing.T) {
	m := New()

	m.ObserveScan(3, false)
	m.ObserveScan(2, false)
	m.ObserveScan(0, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scans.WithLabelValues("scanned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scans.WithLabelValues("skipped")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.hidden))
}

func TestInjectionAndStalls(t *testing.T) {
	m := New()

	m.ObserveInjection(2)
	m.ObserveInjection(1)
	m.ObserveHeadStall()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.stylesheets))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.headStalls))
}

func TestResolvesAndReloads(t *testing.T) {
	m := New()

	m.ObserveResolve(4, true)
	m.ObserveResolve(1, false)
	m.ObserveReload(nil)
	m.ObserveReload(errors.New("boom"))
	m.ObserveReload(errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolves.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolves.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reloads.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reloads.WithLabelValues("error")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObservePage(20 * time.Millisecond)
	m.ObserveScan(1, false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cosmetic_filters_page_filter_seconds_count 1")
	assert.Contains(t, string(body), `cosmetic_filters_scans_total{outcome="scanned"} 1`)
}
