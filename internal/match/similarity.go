// Package match decides whether a collected listing already exists on
// another marketplace, using two independent evidence channels: title
// similarity and image content hashes.
package match

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Similarity returns the case-insensitive sequence similarity of two titles
// in [0, 1]. Symmetric; identical titles score 1.0 and an empty title
// against a non-empty one scores 0.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}
	as := strings.Split(strings.ToLower(a), "")
	bs := strings.Split(strings.ToLower(b), "")
	return difflib.NewMatcher(as, bs).Ratio()
}

// IsMatch reports whether two titles are similar enough to be considered the
// same listing.
func IsMatch(a, b string, threshold float64) bool {
	if a == "" || b == "" {
		return false
	}
	return Similarity(a, b) >= threshold
}
