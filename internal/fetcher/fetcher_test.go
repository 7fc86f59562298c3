package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/cosmetic-filters/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFetcher(retries int) *Fetcher {
	f := New(models.HTTPConfig{Timeout: time.Second, Retries: retries, Concurrency: 2})
	f.backoff = time.Millisecond
	return f
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte("##.ad\n"))
	}))
	defer srv.Close()

	data, err := newFetcher(1).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "##.ad\n", string(data))
}

func TestFetchRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	data, err := newFetcher(3).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newFetcher(2).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 retries")
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestFetchAllKeepsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	lists := []models.FilterList{
		{Name: "one", URL: srv.URL + "/one", Enabled: true},
		{Name: "broken", URL: srv.URL + "/broken", Enabled: true},
		{Name: "three", URL: srv.URL + "/three", Enabled: true},
	}

	results := newFetcher(1).FetchAll(context.Background(), lists)
	require.Len(t, results, 3)

	assert.Equal(t, "one", results[0].List.Name)
	assert.Equal(t, "/one", string(results[0].Data))
	assert.Error(t, results[1].Err)
	assert.Equal(t, "/three", string(results[2].Data))
}
