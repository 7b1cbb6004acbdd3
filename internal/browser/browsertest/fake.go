// Package browsertest provides in-memory fakes for the browser interfaces.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mlopezr/crosslist/internal/browser"
)

// FakeElement implements browser.Element from plain fields.
type FakeElement struct {
	TextVal  string
	Attrs    map[string]string
	Val      string
	Disabled bool
	Children map[string][]*FakeElement

	// RejectInput makes SetText appear to succeed without the value sticking,
	// simulating a form that swallows the write.
	RejectInput bool

	Clicks int
	Files  []string
}

func (e *FakeElement) Text() (string, error) { return e.TextVal, nil }

func (e *FakeElement) Attribute(name string) (string, error) {
	return e.Attrs[name], nil
}

func (e *FakeElement) Value() (string, error) { return e.Val, nil }

func (e *FakeElement) SetText(value string) error {
	if !e.RejectInput {
		e.Val = value
	}
	return nil
}

func (e *FakeElement) SetFiles(paths []string) error {
	e.Files = append(e.Files, paths...)
	return nil
}

func (e *FakeElement) Click() error {
	e.Clicks++
	return nil
}

func (e *FakeElement) Enabled() (bool, error) { return !e.Disabled, nil }

func (e *FakeElement) Element(sel string) (browser.Element, error) {
	els := e.Children[sel]
	if len(els) == 0 {
		return nil, fmt.Errorf("no element matches %q", sel)
	}
	return els[0], nil
}

func (e *FakeElement) Elements(sel string) ([]browser.Element, error) {
	els := e.Children[sel]
	out := make([]browser.Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

// FakeSession implements browser.Session against a static element table.
type FakeSession struct {
	mu sync.Mutex

	// ElementsBySel maps a selector to the elements it returns.
	ElementsBySel map[string][]*FakeElement
	// Heights are the successive PageHeight readings; the last one repeats.
	Heights []int
	HTMLVal string

	VisibleFlag bool
	NavigateErr error

	NavigatedURLs []string
	CookiesVal    []browser.Cookie
	SetCalls      [][]browser.Cookie
	Scrolls       int
	Closed        bool

	heightIdx int
}

func (s *FakeSession) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.NavigateErr != nil {
		return s.NavigateErr
	}
	s.NavigatedURLs = append(s.NavigatedURLs, url)
	return nil
}

func (s *FakeSession) WaitElement(sel string, _ time.Duration) (browser.Element, error) {
	return s.Element(sel)
}

func (s *FakeSession) Element(sel string) (browser.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	els := s.ElementsBySel[sel]
	if len(els) == 0 {
		return nil, fmt.Errorf("no element matches %q", sel)
	}
	return els[0], nil
}

func (s *FakeSession) Elements(sel string) ([]browser.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	els := s.ElementsBySel[sel]
	out := make([]browser.Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

func (s *FakeSession) HTML() (string, error) { return s.HTMLVal, nil }

func (s *FakeSession) ScrollToBottom() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Scrolls++
	return nil
}

func (s *FakeSession) PageHeight() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Heights) == 0 {
		return 0, nil
	}
	h := s.Heights[s.heightIdx]
	if s.heightIdx < len(s.Heights)-1 {
		s.heightIdx++
	}
	return h, nil
}

func (s *FakeSession) Cookies() ([]browser.Cookie, error) { return s.CookiesVal, nil }

func (s *FakeSession) SetCookies(cookies []browser.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetCalls = append(s.SetCalls, cookies)
	return nil
}

func (s *FakeSession) Visible() bool { return s.VisibleFlag }

func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// FakeLauncher hands out queued sessions in order, regardless of mode.
type FakeLauncher struct {
	mu       sync.Mutex
	Sessions []*FakeSession
	Err      error

	HeadlessCalls int
	VisibleCalls  int
}

func (l *FakeLauncher) next() (browser.Session, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	if len(l.Sessions) == 0 {
		return nil, fmt.Errorf("no fake session queued")
	}
	s := l.Sessions[0]
	l.Sessions = l.Sessions[1:]
	return s, nil
}

func (l *FakeLauncher) Headless(context.Context) (browser.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.HeadlessCalls++
	return l.next()
}

func (l *FakeLauncher) Visible(context.Context) (browser.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.VisibleCalls++
	return l.next()
}
