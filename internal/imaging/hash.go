// Package imaging provides image fingerprinting and the per-run download
// cache used by collection and duplicate detection.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"

	"github.com/corona10/goimagehash"
)

// Fingerprint identifies an image by two independent channels: an exact
// content hash of the raw bytes and a 64-bit perceptual hash of the decoded
// picture. The perceptual half may be absent when decoding fails.
type Fingerprint struct {
	ContentHash   string
	Perceptual    uint64
	HasPerceptual bool
}

// IsZero reports whether no fingerprint was computed at all.
func (f Fingerprint) IsZero() bool {
	return f.ContentHash == ""
}

// ContentHash returns the hex-encoded SHA-256 digest of b.
func ContentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// PerceptualHash decodes b as an image and returns its 64-bit perception
// hash. Visually similar images produce hashes with small Hamming distance.
func PerceptualHash(b []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return 0, fmt.Errorf("failed to decode image: %w", err)
	}
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, fmt.Errorf("failed to compute perceptual hash: %w", err)
	}
	return h.GetHash(), nil
}

// Hamming returns the number of differing bits between two 64-bit hashes.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// FingerprintBytes computes both hash channels for an image buffer. A decode
// failure degrades to a content-hash-only fingerprint rather than an error.
func FingerprintBytes(b []byte) Fingerprint {
	fp := Fingerprint{ContentHash: ContentHash(b)}
	if p, err := PerceptualHash(b); err == nil {
		fp.Perceptual = p
		fp.HasPerceptual = true
	}
	return fp
}
