// Package media collects media references from captured posts and, when
// asked, downloads them. A failed download is recorded on its item and never
// fails the capture.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"x-post-capture/internal/document"
	"x-post-capture/internal/logger"
)

const (
	// DefaultConcurrency bounds parallel downloads.
	DefaultConcurrency = 4
	// DefaultTimeout applies to each media request.
	DefaultTimeout = 30 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// Collect returns the unique media URLs of posts in order of first appearance.
func Collect(posts ...document.Post) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range posts {
		for _, u := range p.Media {
			u = document.NormalizeMediaURL(u)
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// NewHTTPClient builds the download client. proxyURL, when set, routes every
// request through the same proxy the browser uses (http, https or socks5).
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		pu, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		tr.Proxy = http.ProxyURL(pu)
	}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

// Downloader fetches media into a local directory.
type Downloader struct {
	client      *http.Client
	dir         string
	concurrency int
	log         *zap.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithConcurrency sets the number of parallel downloads. Values below 1 use
// DefaultConcurrency.
func WithConcurrency(n int) Option {
	if n < 1 {
		n = DefaultConcurrency
	}
	return func(d *Downloader) { d.concurrency = n }
}

// WithLogger sets the logger for per-item failures.
func WithLogger(l *zap.Logger) Option { return func(d *Downloader) { d.log = l } }

// NewDownloader constructs a Downloader writing into dir.
func NewDownloader(dir string, client *http.Client, opts ...Option) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	d := &Downloader{client: client, dir: dir, concurrency: DefaultConcurrency}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Download fetches every URL and returns one MediaFile per URL, in input
// order. Items that fail keep their URL and carry the error instead of a
// local path.
func (d *Downloader) Download(ctx context.Context, statusID string, urls []string) []document.MediaFile {
	files := make([]document.MediaFile, len(urls))
	if len(urls) == 0 {
		return files
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		for i, u := range urls {
			files[i] = document.MediaFile{URL: u, Error: err.Error()}
		}
		return files
	}

	prefix := statusID
	if prefix == "" {
		prefix = "capture"
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			files[i] = document.MediaFile{URL: u}
			dest := filepath.Join(d.dir, fmt.Sprintf("%s_%02d.%s", prefix, i+1, Extension(u)))
			if err := d.fetch(gctx, u, dest); err != nil {
				files[i].Error = err.Error()
				logger.LogMediaFailure(d.log, u, err)
				return nil
			}
			files[i].LocalPath = dest
			return nil
		})
	}
	_ = g.Wait()
	return files
}

func (d *Downloader) fetch(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".media-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

// Extension picks a file extension from the format query parameter, then the
// URL path, defaulting to jpg.
func Extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "jpg"
	}
	if f := u.Query().Get("format"); f != "" {
		return f
	}
	if ext := strings.TrimPrefix(path.Ext(u.Path), "."); ext != "" {
		return ext
	}
	return "jpg"
}
