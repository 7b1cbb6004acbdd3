package match

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlopezr/crosslist/internal/abort"
	"github.com/mlopezr/crosslist/internal/browser"
	"github.com/mlopezr/crosslist/internal/browser/browsertest"
	"github.com/mlopezr/crosslist/internal/imaging"
	"github.com/mlopezr/crosslist/internal/listing"
	"github.com/mlopezr/crosslist/internal/marketplace"
)

type fakeAuth struct {
	newSession func() (browser.Session, error)
}

func (f fakeAuth) Establish(context.Context, *marketplace.Adapter, bool) (browser.Session, error) {
	return f.newSession()
}

func feedAdapter() *marketplace.Adapter {
	return &marketplace.Adapter{
		ID: "wallapop",
		Config: marketplace.Config{
			ProfileURL: "https://es.wallapop.com/app/catalog/published",
			Check:      marketplace.CheckSelectors{Items: ".item"},
		},
		CandidateTitle: func(el browser.Element) string {
			t, _ := el.Text()
			return t
		},
		CandidateHref: func(el browser.Element) string {
			v, _ := el.Attribute("href")
			return v
		},
		CandidateImage: func(el browser.Element) string {
			v, _ := el.Attribute("img")
			return v
		},
	}
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.ScrollInterval = time.Millisecond
	cfg.StableRounds = 2
	cfg.DOMWait = 10 * time.Millisecond
	return cfg
}

func feedSession(items ...*browsertest.FakeElement) *browsertest.FakeSession {
	return &browsertest.FakeSession{
		Heights:       []int{100},
		ElementsBySel: map[string][]*browsertest.FakeElement{".item": items},
	}
}

func newEngine(t *testing.T, auth Authenticator) (*Engine, *abort.Token) {
	t.Helper()
	token := abort.NewToken()
	cache := imaging.NewCache(filepath.Join(t.TempDir(), "img"), resty.New())
	return NewEngine(auth, cache, token, fastConfig()), token
}

func sourceListing() *listing.Listing {
	l := listing.New("https://www.vinted.es/items/1", "vinted")
	l.Title = "Red winter jacket, size M"
	return l
}

func TestCheckMatchByTitleSkipsImagePhase(t *testing.T) {
	var imageHits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		imageHits.Add(1)
		w.Write([]byte("img"))
	}))
	defer ts.Close()

	session := feedSession(
		&browsertest.FakeElement{TextVal: "Vintage wooden chair", Attrs: map[string]string{"href": "https://x/1", "img": ts.URL + "/1.jpg"}},
		&browsertest.FakeElement{TextVal: "red winter jacket size m", Attrs: map[string]string{"href": "https://x/2", "img": ts.URL + "/2.jpg"}},
	)
	e, _ := newEngine(t, fakeAuth{func() (browser.Session, error) { return session, nil }})

	res, err := e.Check(context.Background(), sourceListing(), feedAdapter())
	require.NoError(t, err)

	assert.True(t, res.Checked)
	assert.True(t, res.Found)
	assert.Equal(t, "https://x/2", res.URL)
	assert.Equal(t, int32(0), imageHits.Load(), "title match must not download images")
	assert.True(t, session.Closed)
}

func TestCheckNormalizesCandidateTitlesNotSource(t *testing.T) {
	session := feedSession(
		&browsertest.FakeElement{TextVal: "red winter jacket size m - promoted", Attrs: map[string]string{"href": "https://x/3"}},
	)
	e, _ := newEngine(t, fakeAuth{func() (browser.Session, error) { return session, nil }})

	a := feedAdapter()
	a.NormalizeTitle = func(title string) string {
		return strings.TrimSuffix(title, " - promoted")
	}

	res, err := e.Check(context.Background(), sourceListing(), a)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "https://x/3", res.URL)
}

func TestCheckSkipsCandidatesWithoutHref(t *testing.T) {
	session := feedSession(
		// Same title, but unreachable
		&browsertest.FakeElement{TextVal: "Red winter jacket, size M"},
	)
	e, _ := newEngine(t, fakeAuth{func() (browser.Session, error) { return session, nil }})

	res, err := e.Check(context.Background(), sourceListing(), feedAdapter())
	require.NoError(t, err)
	assert.True(t, res.Checked)
	assert.False(t, res.Found)
}

func TestCheckMatchByContentHash(t *testing.T) {
	photo := []byte("exact same photo bytes")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(photo)
	}))
	defer ts.Close()

	session := feedSession(
		&browsertest.FakeElement{TextVal: "Completely different title", Attrs: map[string]string{"href": "https://x/9", "img": ts.URL + "/p.jpg"}},
	)
	e, _ := newEngine(t, fakeAuth{func() (browser.Session, error) { return session, nil }})

	l := sourceListing()
	l.Fingerprint = imaging.FingerprintBytes(photo)

	res, err := e.Check(context.Background(), l, feedAdapter())
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "https://x/9", res.URL)
}

func makeImage(stripes bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(x * 4)
			if stripes && (x/8+y/8)%2 == 0 {
				v = 0
			} else if stripes {
				v = 255
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func TestCheckMatchByPerceptualHash(t *testing.T) {
	// Source holds a JPEG; the candidate feed serves a PNG re-encoding of the
	// same picture, so content hashes differ but perceptual hashes are close.
	var jpegBuf, pngBuf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpegBuf, makeImage(false), &jpeg.Options{Quality: 90}))
	require.NoError(t, png.Encode(&pngBuf, makeImage(false)))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBuf.Bytes())
	}))
	defer ts.Close()

	session := feedSession(
		&browsertest.FakeElement{TextVal: "Something else entirely", Attrs: map[string]string{"href": "https://x/7", "img": ts.URL + "/p.png"}},
	)
	e, _ := newEngine(t, fakeAuth{func() (browser.Session, error) { return session, nil }})

	l := sourceListing()
	l.Fingerprint = imaging.FingerprintBytes(jpegBuf.Bytes())
	require.True(t, l.Fingerprint.HasPerceptual)

	res, err := e.Check(context.Background(), l, feedAdapter())
	require.NoError(t, err)
	assert.True(t, res.Found)
}

func TestCheckDissimilarImagesDoNotMatch(t *testing.T) {
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, makeImage(true)))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBuf.Bytes())
	}))
	defer ts.Close()

	session := feedSession(
		&browsertest.FakeElement{TextVal: "Something else entirely", Attrs: map[string]string{"href": "https://x/7", "img": ts.URL + "/p.png"}},
	)
	e, _ := newEngine(t, fakeAuth{func() (browser.Session, error) { return session, nil }})

	var srcBuf bytes.Buffer
	require.NoError(t, png.Encode(&srcBuf, makeImage(false)))
	l := sourceListing()
	l.Fingerprint = imaging.FingerprintBytes(srcBuf.Bytes())

	res, err := e.Check(context.Background(), l, feedAdapter())
	require.NoError(t, err)
	assert.True(t, res.Checked)
	assert.False(t, res.Found)
}

func TestCheckEmptyFeedReportsNotFound(t *testing.T) {
	e, _ := newEngine(t, fakeAuth{func() (browser.Session, error) { return feedSession(), nil }})

	res, err := e.Check(context.Background(), sourceListing(), feedAdapter())
	require.NoError(t, err)
	assert.True(t, res.Checked)
	assert.False(t, res.Found)
	assert.Empty(t, res.URL)
}

func TestCheckSessionFailureMeansNotChecked(t *testing.T) {
	e, _ := newEngine(t, fakeAuth{func() (browser.Session, error) {
		return nil, errors.New("login failed")
	}})

	res, err := e.Check(context.Background(), sourceListing(), feedAdapter())
	require.NoError(t, err)
	assert.False(t, res.Checked)
	assert.False(t, res.Found)
}

func TestCheckAborted(t *testing.T) {
	e, token := newEngine(t, fakeAuth{func() (browser.Session, error) { return feedSession(), nil }})
	token.Trigger()

	_, err := e.Check(context.Background(), sourceListing(), feedAdapter())
	assert.ErrorIs(t, err, abort.ErrAborted)
}

func TestCheckIdempotent(t *testing.T) {
	newSession := func() (browser.Session, error) {
		return feedSession(
			&browsertest.FakeElement{TextVal: "red winter jacket size m", Attrs: map[string]string{"href": "https://x/2"}},
		), nil
	}
	e, _ := newEngine(t, fakeAuth{newSession})

	first, err := e.Check(context.Background(), sourceListing(), feedAdapter())
	require.NoError(t, err)
	second, err := e.Check(context.Background(), sourceListing(), feedAdapter())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
