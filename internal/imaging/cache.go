package imaging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	purgeRetries = 5
	purgeDelay   = 250 * time.Millisecond
)

// Cache is a scratch directory of downloaded images keyed by a hash of the
// source URL, so the same URL is never fetched twice within a run. It also
// memoizes fingerprints of remote images so duplicate detection does not
// re-download candidate previews.
type Cache struct {
	dir    string
	client *resty.Client

	mu           sync.Mutex
	fingerprints map[string]Fingerprint
}

// NewCache creates a cache rooted at dir. The directory is created lazily on
// first download.
func NewCache(dir string, client *resty.Client) *Cache {
	return &Cache{
		dir:          dir,
		client:       client,
		fingerprints: make(map[string]Fingerprint),
	}
}

// Dir returns the cache's scratch directory.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode())
	}
	return resp.Body(), nil
}

// localPath derives the cache file name for a URL: content hash of the URL
// string plus the URL's extension, query string excluded.
func (c *Cache) localPath(url string) string {
	name := ContentHash([]byte(url))[:32]
	ext := "jpg"
	trimmed := strings.SplitN(url, "?", 2)[0]
	if i := strings.LastIndex(trimmed, "."); i != -1 && i > strings.LastIndex(trimmed, "/") {
		ext = trimmed[i+1:]
	}
	return filepath.Join(c.dir, name+"."+ext)
}

// Download fetches url into the cache and returns the local file path. An
// already cached URL is returned without a network round trip.
func (c *Cache) Download(ctx context.Context, url string) (string, error) {
	path := c.localPath(url)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}
	data, err := c.fetch(ctx, url)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// DownloadAll fetches every URL concurrently and returns the local paths of
// the ones that succeeded, in input order. Individual failures are logged and
// skipped, never fatal.
func (c *Cache) DownloadAll(ctx context.Context, urls []string) []string {
	paths := make([]string, len(urls))
	g := new(errgroup.Group)
	for i := range urls {
		g.Go(func() error {
			p, err := c.Download(ctx, urls[i])
			if err != nil {
				log.Warn().Err(err).Str("url", urls[i]).Msg("image download failed")
				return nil
			}
			paths[i] = p
			return nil
		})
	}
	_ = g.Wait()

	var ok []string
	for _, p := range paths {
		if p != "" {
			ok = append(ok, p)
		}
	}
	return ok
}

// FingerprintFile fingerprints a local image file.
func (c *Cache) FingerprintFile(path string) (Fingerprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return FingerprintBytes(data), nil
}

// FingerprintURL downloads an image and fingerprints it, memoizing the result
// for the rest of the run. CDN URLs often carry volatile query parameters, so
// the query-stripped URL is tried first with the original as fallback.
func (c *Cache) FingerprintURL(ctx context.Context, url string) (Fingerprint, error) {
	if url == "" {
		return Fingerprint{}, fmt.Errorf("empty image url")
	}

	c.mu.Lock()
	if fp, ok := c.fingerprints[url]; ok {
		c.mu.Unlock()
		return fp, nil
	}
	c.mu.Unlock()

	candidates := []string{url}
	if i := strings.Index(url, "?"); i != -1 {
		candidates = []string{url[:i], url}
	}

	var lastErr error
	for _, u := range candidates {
		data, err := c.fetch(ctx, u)
		if err != nil {
			lastErr = err
			continue
		}
		fp := FingerprintBytes(data)
		c.mu.Lock()
		c.fingerprints[url] = fp
		c.mu.Unlock()
		return fp, nil
	}
	return Fingerprint{}, lastErr
}

// Purge removes the scratch directory and clears the fingerprint memo. A file
// can be briefly locked by the OS right after a browser touched it, so
// removal is retried a few times before giving up.
func (c *Cache) Purge() error {
	c.mu.Lock()
	c.fingerprints = make(map[string]Fingerprint)
	c.mu.Unlock()

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < purgeRetries; attempt++ {
		if lastErr = os.RemoveAll(c.dir); lastErr == nil {
			log.Debug().Str("dir", c.dir).Msg("purged image cache")
			return nil
		}
		time.Sleep(purgeDelay)
	}
	return fmt.Errorf("failed to purge image cache after %d attempts: %w", purgeRetries, lastErr)
}
