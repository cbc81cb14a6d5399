package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Fetcher retrieves an encoded sample by location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (io.ReadCloser, error)
}

// NewFetcher returns an HTTPFetcher for http(s) sample bases and a
// FileFetcher otherwise.
func NewFetcher(base string) Fetcher {
	if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
		return NewHTTPFetcher()
	}
	return FileFetcher{}
}

// FileFetcher opens samples from the local filesystem. Reads fail once
// ctx is done, so a fetch timeout also bounds decoding a local file.
type FileFetcher struct{}

func (FileFetcher) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.FromSlash(location))
	if err != nil {
		return nil, err
	}
	return ctxReader{ctx: ctx, ReadCloser: f}, nil
}

type ctxReader struct {
	ctx context.Context
	io.ReadCloser
}

func (r ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.ReadCloser.Read(p)
}

// HTTPFetcher downloads samples over HTTP.
type HTTPFetcher struct {
	http *http.Client
}

// NewHTTPFetcher creates an HTTP sample fetcher. Requests are bounded only
// by the context passed to Fetch.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		http: &http.Client{Transport: http.DefaultTransport},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// withTimeout derives a fetch context; d <= 0 means no timeout.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
