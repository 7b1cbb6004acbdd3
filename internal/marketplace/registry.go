package marketplace

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnsupportedMarketplace is returned when a marketplace id or URL does not
// resolve to a registered adapter.
var ErrUnsupportedMarketplace = errors.New("unsupported marketplace")

// Registry owns all registered adapters for the process lifetime. Adapters
// are registered once at startup and never unregistered.
type Registry struct {
	order    []string
	adapters map[string]*Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]*Adapter)}
}

// Register stores an adapter under its id. Re-registration overwrites the
// prior entry but keeps its position in the detection order.
func (r *Registry) Register(a *Adapter) {
	if _, exists := r.adapters[a.ID]; !exists {
		r.order = append(r.order, a.ID)
	}
	r.adapters[a.ID] = a
}

// Resolve returns the adapter for a marketplace id.
func (r *Registry) Resolve(id string) (*Adapter, error) {
	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMarketplace, id)
	}
	return a, nil
}

// Detect matches the URL's host against each adapter's host patterns, in
// registration order. The first match wins.
func (r *Registry) Detect(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	for _, id := range r.order {
		for _, pattern := range r.adapters[id].Config.HostPatterns {
			if strings.Contains(host, pattern) {
				return id, true
			}
		}
	}
	return "", false
}

// IDs returns the marketplace ids in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Defaults returns a registry with all built-in marketplace adapters.
func Defaults() *Registry {
	r := NewRegistry()
	r.Register(Vinted())
	r.Register(Wallapop())
	r.Register(Milanuncios())
	return r
}
