// Package fetch downloads remote source files over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/dnscache"

	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
)

// StatusError reports a response with a non-success status code.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// Fetcher downloads one URL per call. It never retries.
type Fetcher struct {
	client    *http.Client
	resolver  *dnscache.Resolver
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithTimeout bounds a whole download. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.client.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// NewFetcher creates a Fetcher whose transport resolves hosts through a DNS cache.
func NewFetcher(opts ...Option) *Fetcher {
	resolver := &dnscache.Resolver{}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	f := &Fetcher{
		resolver:  resolver,
		userAgent: "pkgbuilder",
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					var lastErr error
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
						lastErr = err
					}
					if lastErr == nil {
						lastErr = fmt.Errorf("no addresses for %s", host)
					}
					return nil, lastErr
				},
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FileName returns the local file name for rawURL: the final segment of its path.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("URL %s has no file name", rawURL)
	}
	return name, nil
}

// Download issues a single GET for rawURL and writes the body to dir, named by the final
// URL path segment. It returns the written path and its size.
func (f *Fetcher) Download(ctx context.Context, rawURL, dir string) (string, int64, error) {
	name, err := FileName(rawURL)
	if err != nil {
		return "", 0, foundationerrors.NetworkError("invalid source URL").
			WithContext("url", rawURL).
			WithCause(err).
			Build()
	}

	// Drop cached entries that were not used since the previous download.
	f.resolver.Refresh(true)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", 0, foundationerrors.NetworkError("failed to build request").
			WithContext("url", rawURL).
			WithCause(err).
			Build()
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, foundationerrors.NetworkError("request failed").
			WithContext("url", rawURL).
			WithCause(err).
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, URL: rawURL}
		return "", 0, foundationerrors.WrapError(statusErr, foundationerrors.CategoryNetwork, "download failed").
			Fatal().
			WithContext("url", rawURL).
			WithContext("status", resp.StatusCode).
			Build()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, foundationerrors.NetworkError("failed to read response body").
			WithContext("url", rawURL).
			WithCause(err).
			Build()
	}

	dest := filepath.Join(dir, name)
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return "", 0, foundationerrors.IOError("failed to write download").
			WithContext("path", dest).
			WithCause(err).
			Build()
	}
	return dest, int64(len(body)), nil
}
