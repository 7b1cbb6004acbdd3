// Package listing defines the canonical record produced by collection and
// consumed by duplicate detection and upload.
package listing

import "github.com/mlopezr/crosslist/internal/imaging"

// RequiredFields are the fields a listing needs before a destination can be
// chosen.
var RequiredFields = []string{"title", "price", "description", "images"}

// Listing is one collected marketplace listing. Price stays as the
// currency-formatted text found on the page; normalization is an upload-time
// concern.
type Listing struct {
	URL    string
	Source string

	Title       string
	Price       string
	Description string
	Images      []string // local file paths, in page order

	// Fingerprint of the first image. Zero when image collection failed.
	Fingerprint imaging.Fingerprint

	// ExistsIn maps a marketplace id to the URL of an equivalent listing
	// found there. A key with an empty value means checked and not found.
	ExistsIn map[string]string

	// Checked records which marketplaces were actually scanned. A marketplace
	// absent here was skipped (e.g. session failure), which is different from
	// "not found".
	Checked map[string]bool
}

func New(url, source string) *Listing {
	return &Listing{
		URL:      url,
		Source:   source,
		ExistsIn: make(map[string]string),
		Checked:  make(map[string]bool),
	}
}

// MissingFields returns the names of required fields that are still empty.
func (l *Listing) MissingFields() []string {
	var missing []string
	if l.Title == "" {
		missing = append(missing, "title")
	}
	if l.Price == "" {
		missing = append(missing, "price")
	}
	if l.Description == "" {
		missing = append(missing, "description")
	}
	if len(l.Images) == 0 {
		missing = append(missing, "images")
	}
	return missing
}

// Complete reports whether every required field is filled. An incomplete
// listing blocks destination choice but is never discarded.
func (l *Listing) Complete() bool {
	return len(l.MissingFields()) == 0
}

// MarkChecked records the verdict of a duplicate check on a marketplace.
func (l *Listing) MarkChecked(marketplace, foundURL string) {
	if l.ExistsIn == nil {
		l.ExistsIn = make(map[string]string)
	}
	if l.Checked == nil {
		l.Checked = make(map[string]bool)
	}
	l.Checked[marketplace] = true
	l.ExistsIn[marketplace] = foundURL
}

// FoundIn reports whether a duplicate was found on the given marketplace.
func (l *Listing) FoundIn(marketplace string) bool {
	return l.ExistsIn[marketplace] != ""
}
