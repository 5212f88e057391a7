package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jgivc/tagsync/internal/common"
	"github.com/jgivc/tagsync/internal/entity"
)

const (
	headerAPIKey      = "ApiKey"
	headerIfNoneMatch = "If-None-Match"
	headerETag        = "ETag"
)

// Sink stores a response body and returns the number of bytes written.
type Sink = func(r io.Reader) (int64, error)

type fetcher struct {
	cl     *http.Client
	apiKey string
	log    *slog.Logger
}

func NewFetcher(apiKey string, timeout time.Duration, log *slog.Logger) *fetcher {
	return NewFetcherWithClient(&http.Client{Timeout: timeout}, apiKey, log)
}

func NewFetcherWithClient(cl *http.Client, apiKey string, log *slog.Logger) *fetcher {
	return &fetcher{
		cl:     cl,
		apiKey: apiKey,
		log:    log.With(slog.String("item", "Fetcher")),
	}
}

// Fetch downloads url. A non-empty token is sent as If-None-Match; a 304
// answer returns NotModified without calling sink.
func (f *fetcher) Fetch(ctx context.Context, url, token string, sink Sink) (*entity.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot create request: %w", err)
	}

	if f.apiKey != "" {
		req.Header.Set(headerAPIKey, f.apiKey)
	}
	if token != "" {
		req.Header.Set(headerIfNoneMatch, token)
	}

	resp, err := f.cl.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot get %s: %w", url, err)
	}
	defer resp.Body.Close()

	result := &entity.FetchResult{
		ETag:        resp.Header.Get(headerETag),
		ContentType: resp.Header.Get("Content-Type"),
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		result.NotModified = true

		return result, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		io.Copy(io.Discard, resp.Body)

		return nil, fmt.Errorf("%w: %s returned %d", common.ErrUnexpectedStatus, url, resp.StatusCode)
	}

	n, err := sink(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot store body of %s: %w", url, err)
	}
	result.Size = n

	f.log.Debug("Fetched", slog.String("url", url), slog.Int64("size", n), slog.String("etag", result.ETag))

	return result, nil
}
