// Package app wires the collection, duplicate detection and upload stages
// into a single interactive run per listing URL.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mlopezr/crosslist/internal/abort"
	"github.com/mlopezr/crosslist/internal/browser"
	"github.com/mlopezr/crosslist/internal/imaging"
	"github.com/mlopezr/crosslist/internal/listing"
	"github.com/mlopezr/crosslist/internal/marketplace"
	"github.com/mlopezr/crosslist/internal/match"
)

// Outcome summarizes how one run ended.
type Outcome int

const (
	// OutcomeDone means the upload form was filled on a destination.
	OutcomeDone Outcome = iota
	// OutcomeIncomplete means the source listing was missing required fields.
	OutcomeIncomplete
	// OutcomeSkipped means every destination already has the listing or
	// could not be checked.
	OutcomeSkipped
	// OutcomeAborted means the operator cancelled mid-run.
	OutcomeAborted
	// OutcomeFailed means the run hit an unrecoverable error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeIncomplete:
		return "incomplete"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeAborted:
		return "aborted"
	default:
		return "failed"
	}
}

// Collector scrapes a source listing.
type Collector interface {
	Collect(ctx context.Context, url string, a *marketplace.Adapter) (*listing.Listing, error)
}

// Checker decides whether a listing already exists on a marketplace.
type Checker interface {
	Check(ctx context.Context, l *listing.Listing, a *marketplace.Adapter) (match.Result, error)
}

// Uploader fills a marketplace's publish form.
type Uploader interface {
	Run(s browser.Session, a *marketplace.Adapter, l *listing.Listing) error
}

type App struct {
	registry  *marketplace.Registry
	collector Collector
	checker   Checker
	auth      match.Authenticator
	uploader  Uploader
	cache     *imaging.Cache
	console   *Console
	token     *abort.Token
}

type Opts struct {
	Registry  *marketplace.Registry
	Collector Collector
	Checker   Checker
	Auth      match.Authenticator
	Uploader  Uploader
	Cache     *imaging.Cache
	Console   *Console
	Token     *abort.Token
}

func New(opts Opts) *App {
	return &App{
		registry:  opts.Registry,
		collector: opts.Collector,
		checker:   opts.Checker,
		auth:      opts.Auth,
		uploader:  opts.Uploader,
		cache:     opts.Cache,
		console:   opts.Console,
		token:     opts.Token,
	}
}

// RunOnce synchronizes a single listing URL. The abort token is reset both on
// entry and on exit: a cancellation must neither leak into a run nor outlive
// it, or the next operator prompt would abort immediately. Cached images are
// purged on every exit path.
func (a *App) RunOnce(ctx context.Context, rawURL string) (outcome Outcome) {
	a.token.Reset()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("run panicked")
			outcome = OutcomeFailed
		}
		if err := a.cache.Purge(); err != nil {
			log.Warn().Err(err).Msg("failed to purge image cache")
		}
		a.token.Reset()
	}()

	id, ok := a.registry.Detect(rawURL)
	if !ok {
		log.Error().Str("url", rawURL).Msg("unsupported listing url")
		fmt.Fprintf(a.console.out, "unsupported marketplace url: %s\n", rawURL)
		return OutcomeFailed
	}
	source, err := a.registry.Resolve(id)
	if err != nil {
		log.Error().Err(err).Str("marketplace", id).Msg("unknown marketplace")
		return OutcomeFailed
	}

	l, err := a.collector.Collect(ctx, rawURL, source)
	if err != nil {
		if errors.Is(err, abort.ErrAborted) {
			return OutcomeAborted
		}
		log.Error().Err(err).Msg("collection failed")
		return OutcomeFailed
	}

	if !l.Complete() {
		missing := l.MissingFields()
		log.Warn().Strs("missing", missing).Msg("listing is incomplete, nothing uploaded")
		fmt.Fprintf(a.console.out, "listing is missing %s, fix the source listing and retry\n", strings.Join(missing, ", "))
		return OutcomeIncomplete
	}

	targets, early, stop := a.findDestinations(ctx, l, source)
	if stop {
		return early
	}

	target, err := a.chooseDestination(targets)
	if err != nil {
		if errors.Is(err, abort.ErrAborted) {
			return OutcomeAborted
		}
		log.Error().Err(err).Msg("destination choice failed")
		return OutcomeFailed
	}

	if err := a.upload(ctx, l, target); err != nil {
		if errors.Is(err, abort.ErrAborted) {
			return OutcomeAborted
		}
		log.Error().Err(err).Str("marketplace", target.ID).Msg("upload failed")
		return OutcomeFailed
	}

	fmt.Fprintf(a.console.out, "form filled on %s, review and publish it in the browser\n", target.ID)
	return OutcomeDone
}

// findDestinations checks every other marketplace and returns the ones where
// the listing is confirmed absent.
func (a *App) findDestinations(ctx context.Context, l *listing.Listing, source *marketplace.Adapter) ([]*marketplace.Adapter, Outcome, bool) {
	var targets []*marketplace.Adapter

	for _, id := range a.registry.IDs() {
		if id == source.ID {
			continue
		}
		target, err := a.registry.Resolve(id)
		if err != nil {
			continue
		}

		res, err := a.checker.Check(ctx, l, target)
		if err != nil {
			if errors.Is(err, abort.ErrAborted) {
				return nil, OutcomeAborted, true
			}
			log.Warn().Err(err).Str("marketplace", id).Msg("duplicate check failed")
			continue
		}

		if !res.Checked {
			fmt.Fprintf(a.console.out, "%s could not be checked, skipping it\n", id)
			continue
		}
		l.MarkChecked(id, res.URL)
		if res.Found {
			fmt.Fprintf(a.console.out, "already listed on %s: %s\n", id, res.URL)
			continue
		}
		targets = append(targets, target)
	}

	if len(targets) == 0 {
		fmt.Fprintln(a.console.out, "no marketplace needs this listing")
		return nil, OutcomeSkipped, true
	}
	return targets, 0, false
}

func (a *App) chooseDestination(targets []*marketplace.Adapter) (*marketplace.Adapter, error) {
	if len(targets) == 1 {
		fmt.Fprintf(a.console.out, "uploading to %s\n", targets[0].ID)
		return targets[0], nil
	}
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.ID
	}
	idx, err := a.console.ChooseOption("where should the listing go?", names)
	if err != nil {
		return nil, err
	}
	return targets[idx], nil
}

// upload opens a visible session on the destination and walks its form.
func (a *App) upload(ctx context.Context, l *listing.Listing, target *marketplace.Adapter) error {
	s, err := a.auth.Establish(ctx, target, false)
	if err != nil {
		return fmt.Errorf("failed to open %s session: %w", target.ID, err)
	}
	defer s.Close()

	if err := s.Navigate(ctx, target.Config.UploadURL); err != nil {
		return fmt.Errorf("failed to open upload page: %w", err)
	}
	return a.uploader.Run(s, target, l)
}
