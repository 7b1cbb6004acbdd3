package match

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlopezr/crosslist/internal/abort"
	"github.com/mlopezr/crosslist/internal/browser"
	"github.com/mlopezr/crosslist/internal/imaging"
	"github.com/mlopezr/crosslist/internal/listing"
	"github.com/mlopezr/crosslist/internal/marketplace"
)

// Candidate is an ephemeral projection of one item scraped from the user's
// own listings feed. It lives for a single detection pass.
type Candidate struct {
	Title    string
	Href     string
	ImageURL string
}

// Result is the verdict of one detection pass. Checked distinguishes a
// session failure ("not checked") from a genuine miss ("not found").
type Result struct {
	Checked bool
	Found   bool
	URL     string
}

// Authenticator provides an authenticated browser session on a marketplace.
type Authenticator interface {
	Establish(ctx context.Context, a *marketplace.Adapter, headless bool) (browser.Session, error)
}

type Config struct {
	// TitleThreshold is the minimum similarity ratio for a Phase A match.
	TitleThreshold float64
	// HammingMax is the largest perceptual-hash distance still considered
	// visually identical.
	HammingMax int
	// ScrollInterval and StableRounds drive the infinite-scroll fixpoint:
	// pagination ends once page height has not grown for StableRounds
	// consecutive polls.
	ScrollInterval time.Duration
	StableRounds   int
	DOMWait        time.Duration
	// Headless controls whether check sessions run without a window. Turning
	// it off is only useful for debugging selector drift.
	Headless bool
}

func DefaultConfig() Config {
	return Config{
		TitleThreshold: 0.85,
		HammingMax:     6,
		ScrollInterval: 500 * time.Millisecond,
		StableRounds:   10,
		DOMWait:        10 * time.Second,
		Headless:       true,
	}
}

// Engine scans a marketplace's own listings for a duplicate of a source
// listing. Title comparison is cheap string work while an image comparison
// costs a network fetch plus a hash, so titles are always scanned first.
//
// Only first images are ever compared; a listing whose first photo was
// reordered on the other marketplace will evade detection.
type Engine struct {
	auth  Authenticator
	cache *imaging.Cache
	token *abort.Token
	cfg   Config
}

func NewEngine(auth Authenticator, cache *imaging.Cache, token *abort.Token, cfg Config) *Engine {
	return &Engine{auth: auth, cache: cache, token: token, cfg: cfg}
}

// Check looks for l on the given marketplace. A session failure yields
// Result{Checked: false} and no error; cancellation yields abort.ErrAborted.
func (e *Engine) Check(ctx context.Context, l *listing.Listing, a *marketplace.Adapter) (Result, error) {
	if err := e.token.Err(); err != nil {
		return Result{}, err
	}

	log.Info().Str("marketplace", a.ID).Msg("checking if listing already exists")

	s, err := e.auth.Establish(ctx, a, e.cfg.Headless)
	if err != nil {
		log.Warn().Err(err).Str("marketplace", a.ID).Msg("could not establish session, marketplace not checked")
		return Result{Checked: false}, nil
	}
	defer s.Close()

	candidates, err := e.enumerate(ctx, s, a)
	if err != nil {
		return Result{}, err
	}
	if len(candidates) == 0 {
		log.Info().Str("marketplace", a.ID).Msg("no own listings found")
		return Result{Checked: true}, nil
	}
	log.Info().Int("count", len(candidates)).Str("marketplace", a.ID).Msg("scanning own listings")

	// Phase A: title similarity. First sufficient match wins, in feed order.
	for _, c := range candidates {
		if err := e.token.Err(); err != nil {
			return Result{}, err
		}
		if c.Href == "" {
			continue
		}
		if IsMatch(l.Title, a.Normalize(c.Title), e.cfg.TitleThreshold) {
			log.Info().Str("title", c.Title).Str("url", c.Href).Msg("duplicate found by title")
			return Result{Checked: true, Found: true, URL: c.Href}, nil
		}
	}

	// Phase B: image fingerprints, only reached when no title matched.
	log.Info().Str("marketplace", a.ID).Msg("no title match, comparing image hashes")
	for _, c := range candidates {
		if err := e.token.Err(); err != nil {
			return Result{}, err
		}
		if c.Href == "" || c.ImageURL == "" {
			continue
		}
		fp, err := e.cache.FingerprintURL(ctx, c.ImageURL)
		if err != nil {
			log.Warn().Err(err).Str("url", c.ImageURL).Msg("failed to fingerprint candidate image")
			continue
		}
		if e.fingerprintsMatch(l.Fingerprint, fp, c.Href) {
			return Result{Checked: true, Found: true, URL: c.Href}, nil
		}
	}

	log.Info().Str("marketplace", a.ID).Msg("listing not found")
	return Result{Checked: true}, nil
}

func (e *Engine) fingerprintsMatch(src, cand imaging.Fingerprint, href string) bool {
	if src.ContentHash != "" && src.ContentHash == cand.ContentHash {
		log.Info().Str("url", href).Msg("duplicate found by exact content hash")
		return true
	}
	if src.HasPerceptual && cand.HasPerceptual {
		if d := imaging.Hamming(src.Perceptual, cand.Perceptual); d <= e.cfg.HammingMax {
			log.Info().Int("hamming", d).Str("url", href).Msg("duplicate found by perceptual hash")
			return true
		}
	}
	return false
}

// enumerate navigates to the own-listings feed, scrolls it to its fixpoint
// and projects every rendered item into a Candidate.
func (e *Engine) enumerate(ctx context.Context, s browser.Session, a *marketplace.Adapter) ([]Candidate, error) {
	profileURL := a.Config.ProfileURL
	if a.ProfileURL != nil {
		u, err := a.ProfileURL(s)
		if err != nil {
			log.Warn().Err(err).Str("marketplace", a.ID).Msg("could not resolve profile url")
			return nil, nil
		}
		profileURL = u
	}

	if err := s.Navigate(ctx, profileURL); err != nil {
		log.Warn().Err(err).Msg("failed to open own listings feed")
		return nil, nil
	}
	if _, err := s.WaitElement("img", e.cfg.DOMWait); err != nil {
		log.Debug().Err(err).Msg("feed image region did not materialize")
	}

	if err := e.scrollAll(s); err != nil {
		return nil, err
	}

	els, err := s.Elements(a.Config.Check.Items)
	if err != nil {
		log.Warn().Err(err).Msg("failed to query feed items")
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(els))
	for _, el := range els {
		candidates = append(candidates, Candidate{
			Title:    a.CandidateTitle(el),
			Href:     a.CandidateHref(el),
			ImageURL: a.CandidateImage(el),
		})
	}
	return candidates, nil
}

// scrollAll scrolls to the bottom until page height stops growing for
// StableRounds consecutive polls. This is a fixpoint detection for
// infinite-scroll pagination, not a page-count limit.
func (e *Engine) scrollAll(s browser.Session) error {
	lastHeight, err := s.PageHeight()
	if err != nil {
		return nil
	}
	stable := 0
	for stable < e.cfg.StableRounds {
		if err := s.ScrollToBottom(); err != nil {
			return nil
		}
		if !e.token.Sleep(e.cfg.ScrollInterval) {
			return abort.ErrAborted
		}
		h, err := s.PageHeight()
		if err != nil {
			return nil
		}
		if h > lastHeight {
			lastHeight = h
			stable = 0
		} else {
			stable++
		}
	}
	return nil
}
