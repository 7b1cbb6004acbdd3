package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"
)

// Marketplaces block obvious automation fingerprints, so sessions use the
// stealth page patch plus a desktop user agent. Anything beyond that is out
// of scope.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

// elementTimeout bounds non-waiting element lookups.
const elementTimeout = 2 * time.Second

// RodLauncher opens rod-driven Chromium sessions.
type RodLauncher struct{}

func NewRodLauncher() *RodLauncher {
	return &RodLauncher{}
}

func (rl *RodLauncher) launch(ctx context.Context, headless bool) (Session, error) {
	l := launcher.New().Headless(headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		_ = b.Close()
		l.Cleanup()
		return nil, fmt.Errorf("failed to open stealth page: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
		log.Warn().Err(err).Msg("failed to override user agent")
	}

	log.Debug().Bool("headless", headless).Msg("browser session opened")
	return &rodSession{browser: b, page: page, launcher: l, visible: !headless}, nil
}

func (rl *RodLauncher) Headless(ctx context.Context) (Session, error) {
	return rl.launch(ctx, true)
}

func (rl *RodLauncher) Visible(ctx context.Context) (Session, error) {
	return rl.launch(ctx, false)
}

type rodSession struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	visible  bool
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return nil
}

func (s *rodSession) WaitElement(sel string, timeout time.Duration) (Element, error) {
	el, err := s.page.Timeout(timeout).Element(sel)
	if err != nil {
		return nil, fmt.Errorf("element %q did not appear: %w", sel, err)
	}
	return &rodElement{el: el.CancelTimeout()}, nil
}

func (s *rodSession) Element(sel string) (Element, error) {
	return s.WaitElement(sel, elementTimeout)
}

func (s *rodSession) Elements(sel string) ([]Element, error) {
	els, err := s.page.Elements(sel)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", sel, err)
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el}
	}
	return out, nil
}

func (s *rodSession) HTML() (string, error) {
	return s.page.HTML()
}

func (s *rodSession) ScrollToBottom() error {
	_, err := s.page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (s *rodSession) PageHeight() (int, error) {
	res, err := s.page.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, fmt.Errorf("failed to read page height: %w", err)
	}
	return res.Value.Int(), nil
}

func (s *rodSession) Cookies() ([]Cookie, error) {
	raw, err := s.browser.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookie := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			cookie.Expires = time.Unix(int64(c.Expires), 0)
		}
		cookies = append(cookies, cookie)
	}
	return cookies, nil
}

func (s *rodSession) SetCookies(cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.Expires.IsZero() {
			p.Expires = proto.TimeSinceEpoch(c.Expires.Unix())
		}
		params = append(params, p)
	}
	if err := s.browser.SetCookies(params); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

func (s *rodSession) Visible() bool {
	return s.visible
}

func (s *rodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Cleanup()
	log.Debug().Msg("browser session closed")
	return err
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}

func (e *rodElement) Attribute(name string) (string, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (e *rodElement) Value() (string, error) {
	res, err := e.el.Eval(`() => this.value || this.textContent || ""`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *rodElement) SetText(value string) error {
	_, err := e.el.Eval(`(v) => {
		this.focus();
		this.value = v;
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
		this.blur();
	}`, value)
	return err
}

func (e *rodElement) SetFiles(paths []string) error {
	return e.el.SetFiles(paths)
}

func (e *rodElement) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Enabled() (bool, error) {
	res, err := e.el.Eval(`() => !this.disabled && this.getAttribute("aria-disabled") !== "true"`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *rodElement) Element(sel string) (Element, error) {
	el, err := e.el.Timeout(elementTimeout).Element(sel)
	if err != nil {
		return nil, err
	}
	return &rodElement{el: el.CancelTimeout()}, nil
}

func (e *rodElement) Elements(sel string) ([]Element, error) {
	els, err := e.el.Elements(sel)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el}
	}
	return out, nil
}
