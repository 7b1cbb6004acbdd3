// Package marketplace holds the adapter registry and the per-site capability
// bundles. The rest of the engine treats selectors and extractors as opaque:
// all marketplace markup knowledge lives here.
package marketplace

import (
	"regexp"
	"strings"

	"github.com/mlopezr/crosslist/internal/browser"
)

// Step is one stage of a marketplace's upload wizard.
type Step string

const (
	StepImages      Step = "images"
	StepTitle       Step = "title"
	StepDescription Step = "description"
	StepPrice       Step = "price"
	StepCategory    Step = "category"
	StepContinue    Step = "continue"
)

// CollectSelectors locate the listing detail fields on a public listing page.
type CollectSelectors struct {
	Title string `yaml:"title"`
	Price string `yaml:"price"`
	// Description is a goquery selector; when DescriptionAttr is set the
	// value is read from that attribute instead of the node text (og:meta).
	Description     string `yaml:"description"`
	DescriptionAttr string `yaml:"description_attr"`
	// FirstImage, when set, is clicked before extraction to open the
	// full-size image lightbox.
	FirstImage string `yaml:"first_image"`
	Images     string `yaml:"images"`
}

// CheckSelectors locate candidate items on the user's own listings feed.
type CheckSelectors struct {
	Items string `yaml:"items"`
	Title string `yaml:"title"`
	Href  string `yaml:"href"`
	Image string `yaml:"image"`
}

// UploadSelectors locate the upload form fields.
type UploadSelectors struct {
	Title          string `yaml:"title"`
	Description    string `yaml:"description"`
	Price          string `yaml:"price"`
	Category       string `yaml:"category"`
	CategoryOption string `yaml:"category_option"`
	FileInput      string `yaml:"file_input"`
	ImagePreview   string `yaml:"image_preview"`
	ContinueButton string `yaml:"continue_button"`
}

// Config is the declarative part of an adapter.
type Config struct {
	HostPatterns  []string `yaml:"host_patterns"`
	HomeURL       string   `yaml:"home_url"`
	ProfileURL    string   `yaml:"profile_url"`
	UploadURL     string   `yaml:"upload_url"`
	LoginSelector string   `yaml:"login_selector"`

	Collect CollectSelectors `yaml:"collect"`
	Check   CheckSelectors   `yaml:"check"`
	Upload  UploadSelectors  `yaml:"upload"`

	// Sequence is the ordered upload wizard; some sites are single-page,
	// others need intermediate continue gestures.
	Sequence []Step `yaml:"sequence"`

	// GeneratedDescription marks sites that pre-fill the description with an
	// auto-generated draft, so upload must resolve the conflict with the
	// scraped text via the operator.
	GeneratedDescription bool `yaml:"generated_description"`

	// CategoryOpenAttr is the attribute reporting the category dropdown's
	// open state (e.g. aria-expanded).
	CategoryOpenAttr string `yaml:"category_open_attr"`
}

// Adapter is one marketplace's capability bundle. Hooks left nil fall back to
// generic behavior derived from Config.
type Adapter struct {
	ID     string
	Config Config

	// ProfileURL resolves the URL of the user's own listings feed, given an
	// authenticated session on the marketplace homepage.
	ProfileURL func(s browser.Session) (string, error)

	// NormalizeTitle rewrites a candidate title before comparison.
	NormalizeTitle func(title string) string

	// ImageFilter rejects non-listing image URLs during collection.
	ImageFilter func(src string) bool

	// CandidateTitle/Href/Image project one feed item into a CandidateItem.
	CandidateTitle func(el browser.Element) string
	CandidateHref  func(el browser.Element) string
	CandidateImage func(el browser.Element) string
}

// Normalize applies the adapter's title normalizer, if any.
func (a *Adapter) Normalize(title string) string {
	if a.NormalizeTitle == nil {
		return title
	}
	return a.NormalizeTitle(title)
}

// AcceptsImage applies the adapter's image filter, if any.
func (a *Adapter) AcceptsImage(src string) bool {
	if src == "" {
		return false
	}
	if a.ImageFilter == nil {
		return true
	}
	return a.ImageFilter(src)
}

var styleURLRe = regexp.MustCompile(`url\(["']?([^"')]+)`)

// backgroundImageURL pulls the image URL out of a style="background:
// url(...)" attribute, query string stripped.
func backgroundImageURL(el browser.Element) string {
	style, err := el.Attribute("style")
	if err != nil || style == "" {
		return ""
	}
	m := styleURLRe.FindStringSubmatch(style)
	if m == nil {
		return ""
	}
	return strings.SplitN(m[1], "?", 2)[0]
}

// childAttr returns an attribute of the first descendant matching sel.
func childAttr(el browser.Element, sel, attr string) string {
	child, err := el.Element(sel)
	if err != nil {
		return ""
	}
	v, err := child.Attribute(attr)
	if err != nil {
		return ""
	}
	return v
}

// childText returns the trimmed text of the first descendant matching sel.
func childText(el browser.Element, sel string) string {
	child, err := el.Element(sel)
	if err != nil {
		return ""
	}
	t, err := child.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(t)
}
