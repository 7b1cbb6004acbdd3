// Package collect builds a canonical Listing from a marketplace listing URL:
// a plain-HTTP pass for the text fields, then a browser pass for the images.
package collect

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/mlopezr/crosslist/internal/abort"
	"github.com/mlopezr/crosslist/internal/browser"
	"github.com/mlopezr/crosslist/internal/imaging"
	"github.com/mlopezr/crosslist/internal/listing"
	"github.com/mlopezr/crosslist/internal/marketplace"
)

// lightboxDelay gives the carousel a moment to swap in full-size images
// after the pre-extraction click.
const lightboxDelay = 500 * time.Millisecond

type Opts struct {
	HTTP     *resty.Client
	Launcher browser.Launcher
	Cache    *imaging.Cache
	Token    *abort.Token
	// DOMWait bounds how long the image region may take to materialize.
	DOMWait time.Duration
}

type Pipeline struct {
	http     *resty.Client
	launcher browser.Launcher
	cache    *imaging.Cache
	token    *abort.Token
	domWait  time.Duration
}

func New(opts Opts) *Pipeline {
	if opts.DOMWait == 0 {
		opts.DOMWait = 10 * time.Second
	}
	return &Pipeline{
		http:     opts.HTTP,
		launcher: opts.Launcher,
		cache:    opts.Cache,
		token:    opts.Token,
		domWait:  opts.DOMWait,
	}
}

// Collect fetches the listing at url and returns it as a Listing. Extraction
// failures degrade to empty fields; the caller distinguishes an incomplete
// listing (retry or abort) from a cancelled run (error is abort.ErrAborted).
func (p *Pipeline) Collect(ctx context.Context, url string, a *marketplace.Adapter) (*listing.Listing, error) {
	if err := p.token.Err(); err != nil {
		return nil, err
	}

	l := listing.New(url, a.ID)
	p.collectDetails(ctx, l, a)

	if l.Title == "" || l.Price == "" || l.Description == "" {
		log.Warn().
			Str("marketplace", a.ID).
			Strs("missing", l.MissingFields()).
			Msg("listing details incomplete, skipping image collection")
		return l, nil
	}

	if err := p.token.Err(); err != nil {
		return nil, err
	}

	if err := p.collectImages(ctx, l, a); err != nil {
		return nil, err
	}
	if len(l.Images) == 0 {
		log.Warn().Str("marketplace", a.ID).Msg("failed to collect listing images")
	}
	return l, nil
}

// collectDetails scrapes title, price and description from the listing page.
// Each field degrades to "" on its own; nothing here aborts the pipeline.
func (p *Pipeline) collectDetails(ctx context.Context, l *listing.Listing, a *marketplace.Adapter) {
	resp, err := p.http.R().SetContext(ctx).Get(l.URL)
	if err != nil {
		log.Warn().Err(err).Str("url", l.URL).Msg("failed to fetch listing page")
		return
	}
	if resp.IsError() {
		log.Warn().Int("status", resp.StatusCode()).Str("url", l.URL).Msg("listing page returned error status")
		return
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		log.Warn().Err(err).Str("url", l.URL).Msg("failed to parse listing page")
		return
	}

	sel := a.Config.Collect
	l.Title = extractField(doc, sel.Title, "")
	l.Price = extractField(doc, sel.Price, "")
	l.Description = extractField(doc, sel.Description, sel.DescriptionAttr)

	log.Info().
		Str("marketplace", a.ID).
		Str("title", l.Title).
		Str("price", l.Price).
		Int("descriptionLen", len(l.Description)).
		Msg("collected listing details")
}

// extractField returns the first match's attribute value (when attr is set)
// or its whitespace-collapsed text.
func extractField(doc *goquery.Document, sel, attr string) string {
	if sel == "" {
		return ""
	}
	node := doc.Find(sel).First()
	if node.Length() == 0 {
		return ""
	}
	if attr != "" {
		if v, ok := node.Attr(attr); ok && v != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.Join(strings.Fields(node.Text()), " ")
}

// collectImages opens a browser session on the listing page, extracts the
// distinct image URLs and downloads them into the cache. The fingerprint is
// computed from the first image only; the matcher never compares any other.
func (p *Pipeline) collectImages(ctx context.Context, l *listing.Listing, a *marketplace.Adapter) error {
	log.Info().Str("marketplace", a.ID).Msg("opening listing page for images")
	s, err := p.launcher.Headless(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to open browser session")
		return nil
	}
	defer s.Close()

	if err := p.token.Err(); err != nil {
		return err
	}
	if err := s.Navigate(ctx, l.URL); err != nil {
		log.Warn().Err(err).Msg("failed to open listing page")
		return nil
	}
	if _, err := s.WaitElement("img", p.domWait); err != nil {
		log.Warn().Err(err).Msg("image region did not materialize")
		return nil
	}
	if err := p.token.Err(); err != nil {
		return err
	}

	if sel := a.Config.Collect.FirstImage; sel != "" {
		// Full-size images only render after the lightbox opens.
		if el, err := s.Element(sel); err == nil {
			if err := el.Click(); err == nil {
				if !p.token.Sleep(lightboxDelay) {
					return abort.ErrAborted
				}
			}
		}
	}

	urls := p.imageURLs(s, a)
	if err := p.token.Err(); err != nil {
		return err
	}
	if len(urls) == 0 {
		return nil
	}

	l.Images = p.cache.DownloadAll(ctx, urls)
	if len(l.Images) == 0 {
		return nil
	}
	log.Info().Int("count", len(l.Images)).Msg("downloaded listing images")

	fp, err := p.cache.FingerprintFile(l.Images[0])
	if err != nil {
		log.Warn().Err(err).Msg("failed to fingerprint first image")
		return nil
	}
	l.Fingerprint = fp
	return nil
}

func (p *Pipeline) imageURLs(s browser.Session, a *marketplace.Adapter) []string {
	els, err := s.Elements(a.Config.Collect.Images)
	if err != nil {
		log.Warn().Err(err).Msg("failed to query listing images")
		return nil
	}

	seen := make(map[string]bool)
	var urls []string
	for _, el := range els {
		src, err := el.Attribute("src")
		if err != nil || !a.AcceptsImage(src) || seen[src] {
			continue
		}
		seen[src] = true
		urls = append(urls, src)
	}
	return urls
}
