package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bnema/cosmetic-filters/internal/models"
	"github.com/sourcegraph/conc/iter"
)

// UserAgent is sent with every list download
const UserAgent = "cosmetic-filters/1.0"

// Fetcher downloads filter lists
type Fetcher struct {
	client      *http.Client
	retries     int
	concurrency int
	backoff     time.Duration
}

// New creates a new fetcher from config
func New(cfg models.HTTPConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retries := cfg.Retries
	if retries == 0 {
		retries = 3
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		retries:     retries,
		concurrency: concurrency,
		backoff:     time.Second,
	}
}

// Fetch downloads content from a URL with retries
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for i := 0; i < f.retries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * f.backoff):
			}
		}

		data, err := f.doFetch(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("failed after %d retries: %w", f.retries, lastErr)
}

func (f *Fetcher) doFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// Result is the outcome of fetching one list
type Result struct {
	List models.FilterList
	Data []byte
	Err  error
}

// FetchAll downloads lists concurrently. Results keep the order of lists.
func (f *Fetcher) FetchAll(ctx context.Context, lists []models.FilterList) []Result {
	mapper := iter.Mapper[models.FilterList, Result]{MaxGoroutines: f.concurrency}
	return mapper.Map(lists, func(list *models.FilterList) Result {
		data, err := f.Fetch(ctx, list.URL)
		return Result{List: *list, Data: data, Err: err}
	})
}
