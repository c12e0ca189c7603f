package certificate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// ErrTemplateUnavailable is returned when the background template could not
// be fetched, even after the retry. Generation cannot proceed without it.
var ErrTemplateUnavailable = errors.New("certificate template unavailable")

// maxAssetBytes caps a single template or font download.
const maxAssetBytes = 32 << 20

// AssetSource fetches static assets (templates, fonts) by slash-separated
// name. bustCache asks intermediaries not to serve a stored copy.
type AssetSource interface {
	Fetch(ctx context.Context, name string, bustCache bool) ([]byte, error)
}

// HTTPAssets fetches assets from a static file server.
type HTTPAssets struct {
	// BaseURL is the asset root, e.g. "https://pledge.example.org".
	BaseURL string
	// Version is appended as ?v= so a redeployed asset gets a fresh URL.
	Version string
	Client  *http.Client
}

// NewHTTPAssets returns an HTTPAssets with a bounded client timeout.
func NewHTTPAssets(baseURL, version string, timeout time.Duration) *HTTPAssets {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPAssets{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Version: version,
		Client:  &http.Client{Timeout: timeout},
	}
}

// URL returns the request URL for name.
func (a *HTTPAssets) URL(name string) string {
	u := a.BaseURL + "/" + strings.TrimLeft(name, "/")
	if a.Version != "" {
		u += "?v=" + url.QueryEscape(a.Version)
	}
	return u
}

// Fetch implements AssetSource.
func (a *HTTPAssets) Fetch(ctx context.Context, name string, bustCache bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL(name), nil)
	if err != nil {
		return nil, err
	}
	if bustCache {
		req.Header.Set("Cache-Control", "no-store")
		req.Header.Set("Pragma", "no-cache")
	}
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("GET %s: status %d", name, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxAssetBytes {
		return nil, fmt.Errorf("GET %s: asset exceeds %d bytes", name, maxAssetBytes)
	}
	return b, nil
}

// DirAssets reads assets from a local directory. Used by the render command
// and tests; caching directives do not apply.
type DirAssets struct {
	Dir string
}

// Fetch implements AssetSource.
func (d DirAssets) Fetch(ctx context.Context, name string, _ bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fs.ReadFile(os.DirFS(d.Dir), strings.TrimLeft(name, "/"))
}

// fetchTemplate loads a background: first with cache busting, then once
// more without it.
func (g *Generator) fetchTemplate(ctx context.Context, name string) ([]byte, error) {
	b, err := g.Assets.Fetch(ctx, name, true)
	if err == nil {
		return b, nil
	}
	g.Logger.Warn().Err(err).Str("asset", name).Msg("template fetch failed; retrying without cache busting")

	b, err2 := g.Assets.Fetch(ctx, name, false)
	if err2 == nil {
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrTemplateUnavailable, name, err2)
}
