package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlopezr/crosslist/internal/abort"
	"github.com/mlopezr/crosslist/internal/browser"
	"github.com/mlopezr/crosslist/internal/marketplace"
)

// ErrLoginFailed means the operator could not be authenticated even after an
// interactive attempt.
var ErrLoginFailed = errors.New("login failed")

// LoginPrompter asks the operator to log in through a visible browser window
// and blocks until they confirm.
type LoginPrompter interface {
	AwaitLogin(marketplace string) error
}

// Manager hands out authenticated browser sessions. It tries stored cookies
// first and falls back to an interactive login in a visible window, saving
// the fresh cookies afterwards.
type Manager struct {
	store    Store
	launcher browser.Launcher
	prompter LoginPrompter
	token    *abort.Token
	domWait  time.Duration
}

func NewManager(store Store, launcher browser.Launcher, prompter LoginPrompter, token *abort.Token, domWait time.Duration) *Manager {
	return &Manager{
		store:    store,
		launcher: launcher,
		prompter: prompter,
		token:    token,
		domWait:  domWait,
	}
}

// Establish returns a session logged in on the given marketplace. The caller
// owns the returned session and must close it.
func (m *Manager) Establish(ctx context.Context, a *marketplace.Adapter, headless bool) (browser.Session, error) {
	if err := m.token.Err(); err != nil {
		return nil, err
	}

	s, err := m.open(ctx, headless)
	if err != nil {
		return nil, err
	}

	if err := s.Navigate(ctx, a.Config.HomeURL); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open %s: %w", a.Config.HomeURL, err)
	}

	// A leftover browser profile may already be authenticated.
	if m.loggedIn(s, a) {
		m.persistCookies(s, a)
		return s, nil
	}

	// Try the stored cookies.
	cookies, err := m.store.Get(a.ID)
	if err != nil {
		log.Warn().Err(err).Str("marketplace", a.ID).Msg("failed to load stored session")
	}
	if len(cookies) > 0 {
		log.Info().Str("marketplace", a.ID).Msg("restoring stored session")
		if err := s.SetCookies(cookies); err == nil {
			if err := s.Navigate(ctx, a.Config.HomeURL); err == nil && m.loggedIn(s, a) {
				// Keeps the stored session fresh: the marketplace may have
				// rotated cookie values during the restore.
				m.persistCookies(s, a)
				return s, nil
			}
		}
		log.Info().Str("marketplace", a.ID).Msg("stored session is stale")
	}

	return m.interactiveLogin(ctx, s, a, headless)
}

// interactiveLogin walks the operator through a manual login. When the
// current session is headless it is torn down and replaced with a visible
// one, then relaunched headless with the fresh cookies if the caller asked
// for a headless session.
func (m *Manager) interactiveLogin(ctx context.Context, s browser.Session, a *marketplace.Adapter, headless bool) (browser.Session, error) {
	if !s.Visible() {
		s.Close()
		visible, err := m.launcher.Visible(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to open visible browser: %w", err)
		}
		s = visible
		if err := s.Navigate(ctx, a.Config.HomeURL); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open %s: %w", a.Config.HomeURL, err)
		}
	}

	log.Info().Str("marketplace", a.ID).Msg("manual login required")
	if err := m.prompter.AwaitLogin(a.ID); err != nil {
		s.Close()
		return nil, err
	}

	if !m.loggedIn(s, a) {
		s.Close()
		return nil, fmt.Errorf("%s: %w", a.ID, ErrLoginFailed)
	}
	m.persistCookies(s, a)

	if !headless {
		return s, nil
	}

	// The caller wanted a headless session; move the fresh cookies over.
	cookies, err := s.Cookies()
	s.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies after login: %w", err)
	}

	hs, err := m.open(ctx, true)
	if err != nil {
		return nil, err
	}
	if err := hs.SetCookies(cookies); err != nil {
		hs.Close()
		return nil, fmt.Errorf("failed to restore cookies: %w", err)
	}
	if err := hs.Navigate(ctx, a.Config.HomeURL); err != nil || !m.loggedIn(hs, a) {
		hs.Close()
		return nil, fmt.Errorf("%s: %w", a.ID, ErrLoginFailed)
	}
	return hs, nil
}

func (m *Manager) open(ctx context.Context, headless bool) (browser.Session, error) {
	if headless {
		s, err := m.launcher.Headless(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to launch headless browser: %w", err)
		}
		return s, nil
	}
	s, err := m.launcher.Visible(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return s, nil
}

// loggedIn probes for the adapter's logged-in marker element.
func (m *Manager) loggedIn(s browser.Session, a *marketplace.Adapter) bool {
	_, err := s.WaitElement(a.Config.LoginSelector, m.domWait)
	return err == nil
}

func (m *Manager) persistCookies(s browser.Session, a *marketplace.Adapter) {
	cookies, err := s.Cookies()
	if err != nil {
		log.Warn().Err(err).Str("marketplace", a.ID).Msg("failed to read cookies")
		return
	}
	if err := m.store.Save(a.ID, cookies); err != nil {
		log.Warn().Err(err).Str("marketplace", a.ID).Msg("failed to persist session")
		return
	}
	log.Info().Str("marketplace", a.ID).Int("cookies", len(cookies)).Msg("session saved")
}

// Forget drops the stored session for a marketplace.
func (m *Manager) Forget(marketplace string) error {
	return m.store.Delete(marketplace)
}
