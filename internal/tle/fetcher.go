package tle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultSourceURL is the CelesTrak active-satellite catalog in GP JSON form.
const DefaultSourceURL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=active&FORMAT=json"

// maxBodyBytes caps a single catalog download.
const maxBodyBytes = 50 << 20

// Fetcher retrieves raw catalog data from a primary source and optional
// extra sources. Extra sources are best effort.
type Fetcher struct {
	sourceURL  string
	extraURLs  []string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the given source URL.
func NewFetcher(sourceURL string, logger *slog.Logger, extraURLs ...string) *Fetcher {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	return &Fetcher{
		sourceURL: sourceURL,
		extraURLs: extraURLs,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch downloads the primary source and appends every extra source that
// answers successfully. Extra sources must use the same format as the
// primary; TLE text concatenates naturally and JSON arrays are merged.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	body, err := f.get(ctx, f.sourceURL)
	if err != nil {
		return nil, err
	}

	for _, u := range f.extraURLs {
		extra, err := f.get(ctx, u)
		if err != nil {
			f.logger.Warn("extra catalog source failed", "url", u, "error", err)
			continue
		}
		body = appendCatalog(body, extra)
	}
	return body, nil
}

// FetchCatalog downloads and decodes the configured sources into a Catalog.
func (f *Fetcher) FetchCatalog(ctx context.Context) (*Catalog, error) {
	data, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	records, err := Decode(data, f.logger)
	if err != nil {
		return nil, err
	}
	return NewCatalog(f.sourceURL, time.Now().UTC(), records), nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response from %s exceeds %d byte limit", url, maxBodyBytes)
	}
	return body, nil
}

func appendCatalog(base, extra []byte) []byte {
	b := bytes.TrimSpace(base)
	e := bytes.TrimSpace(extra)
	if len(b) > 1 && len(e) > 1 && b[0] == '[' && e[0] == '[' {
		inner := bytes.TrimSpace(e[1 : len(e)-1])
		if len(inner) == 0 {
			return b
		}
		head := bytes.TrimSpace(b[:len(b)-1])
		out := append([]byte{}, head...)
		if len(head) > 1 {
			out = append(out, ',')
		}
		out = append(out, inner...)
		return append(out, ']')
	}
	out := append([]byte{}, b...)
	out = append(out, '\n')
	return append(out, e...)
}
