package imaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return NewCache(filepath.Join(t.TempDir(), "images"), resty.New())
}

func TestDownloadCachesByURL(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("image-bytes"))
	}))
	defer ts.Close()

	c := newTestCache(t)
	ctx := context.Background()

	p1, err := c.Download(ctx, ts.URL+"/photo.jpg")
	require.NoError(t, err)
	p2, err := c.Download(ctx, ts.URL+"/photo.jpg")
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, int32(1), hits.Load())

	data, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
}

func TestDownloadAllSkipsFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	c := newTestCache(t)
	paths := c.DownloadAll(context.Background(), []string{
		ts.URL + "/a.jpg",
		ts.URL + "/missing.jpg",
		ts.URL + "/b.jpg",
	})
	assert.Len(t, paths, 2)
}

func TestFingerprintURLMemoizes(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("raw bytes"))
	}))
	defer ts.Close()

	c := newTestCache(t)
	ctx := context.Background()
	url := ts.URL + "/img.jpg"

	fp1, err := c.FingerprintURL(ctx, url)
	require.NoError(t, err)
	fp2, err := c.FingerprintURL(ctx, url)
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFingerprintURLTriesStrippedQueryFirst(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only the bare path serves the image; any query is rejected.
		if r.URL.RawQuery != "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("clean"))
	}))
	defer ts.Close()

	c := newTestCache(t)
	fp, err := c.FingerprintURL(context.Background(), ts.URL+"/img.jpg?rule=thumb&sig=abc")
	require.NoError(t, err)
	assert.Equal(t, ContentHash([]byte("clean")), fp.ContentHash)
}

func TestFingerprintURLEmpty(t *testing.T) {
	c := newTestCache(t)
	_, err := c.FingerprintURL(context.Background(), "")
	assert.Error(t, err)
}

func TestPurgeRemovesDirectory(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer ts.Close()

	c := newTestCache(t)
	_, err := c.Download(context.Background(), ts.URL+"/a.jpg")
	require.NoError(t, err)

	require.NoError(t, c.Purge())
	_, err = os.Stat(c.Dir())
	assert.True(t, os.IsNotExist(err))

	// Purging an already purged cache is fine
	assert.NoError(t, c.Purge())
}
