package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultFetchTimeout = 60 * time.Second
	defaultMaxBytes     = 64 << 20
)

// Cache stores fetched payloads by URL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

// Fetcher downloads remote sources, optionally through a Cache.
type Fetcher struct {
	Client   *http.Client
	Cache    Cache
	MaxBytes int64
	// Refresh skips cache reads; fetched bodies are still stored.
	Refresh bool
	// Warn receives non-fatal cache failures.
	Warn func(format string, args ...any)
}

// NewFetcher returns a Fetcher with the given request timeout. A nil cache
// disables caching.
func NewFetcher(timeout time.Duration, cache Cache) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		Client:   &http.Client{Timeout: timeout},
		Cache:    cache,
		MaxBytes: defaultMaxBytes,
	}
}

// Fetch returns the body of rawURL. Cache failures fall back to the network.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if f.Cache != nil && !f.Refresh {
		data, ok, err := f.Cache.Get(ctx, rawURL)
		if err != nil {
			f.warn("cache lookup failed for %s: %v\n", rawURL, err)
		} else if ok {
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected http status: %s", resp.Status)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = defaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response exceeds %d bytes", limit)
	}

	if f.Cache != nil {
		if err := f.Cache.Set(ctx, rawURL, data); err != nil {
			f.warn("cache store failed for %s: %v\n", rawURL, err)
		}
	}
	return data, nil
}

func (f *Fetcher) warn(format string, args ...any) {
	if f.Warn != nil {
		f.Warn(format, args...)
	}
}
