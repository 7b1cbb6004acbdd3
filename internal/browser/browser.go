// Package browser abstracts the automated browser behind small interfaces so
// the engine never depends on a concrete automation stack. The rod-backed
// implementation lives in rod.go; tests use fakes.
package browser

import (
	"context"
	"time"
)

// Cookie is the opaque persistence format for session tokens: a sequence of
// cookie-like key/value/domain records.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"httpOnly"`
}

// Session is one automated browser instance. It is owned exclusively by the
// component that opened it and must be closed on every exit path before
// control returns to the caller.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitElement blocks until the selector matches or the timeout elapses.
	WaitElement(sel string, timeout time.Duration) (Element, error)
	// Element returns a currently present element without a long wait.
	Element(sel string) (Element, error)
	Elements(sel string) ([]Element, error)
	HTML() (string, error)
	ScrollToBottom() error
	PageHeight() (int, error)
	Cookies() ([]Cookie, error)
	SetCookies(cookies []Cookie) error
	Visible() bool
	Close() error
}

// Element is a handle to one DOM node.
type Element interface {
	Text() (string, error)
	// Attribute returns the attribute value, or "" when absent.
	Attribute(name string) (string, error)
	// Value returns the node's current content (input value or text), used to
	// verify that an automated fill actually took.
	Value() (string, error)
	// SetText focuses the node, injects the value and dispatches input/change
	// events so framework-bound forms notice the write.
	SetText(value string) error
	SetFiles(paths []string) error
	Click() error
	Enabled() (bool, error)
	Element(sel string) (Element, error)
	Elements(sel string) ([]Element, error)
}

// Launcher opens browser sessions. Headless sessions are used for scraping
// and checking; visible ones for upload and interactive login.
type Launcher interface {
	Headless(ctx context.Context) (Session, error)
	Visible(ctx context.Context) (Session, error)
}
