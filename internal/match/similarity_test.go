package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityProperties(t *testing.T) {
	titles := []string{
		"Red winter jacket, size M",
		"red winter jacket size m",
		"Vintage wooden chair",
		"iPhone 12 64GB black",
	}

	for _, a := range titles {
		// identity
		assert.Equal(t, 1.0, Similarity(a, a))
		// empty comparison
		assert.Equal(t, 0.0, Similarity(a, ""))
		assert.Equal(t, 0.0, Similarity("", a))
		for _, b := range titles {
			// symmetry
			assert.InDelta(t, Similarity(a, b), Similarity(b, a), 1e-9)
			r := Similarity(a, b)
			assert.GreaterOrEqual(t, r, 0.0)
			assert.LessOrEqual(t, r, 1.0)
		}
	}

	assert.Equal(t, 1.0, Similarity("", ""))
}

func TestSimilarityCaseInsensitive(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Red Winter Jacket", "red winter jacket"))
}

func TestIsMatchNearIdenticalTitles(t *testing.T) {
	// Same title modulo case and a comma
	assert.True(t, IsMatch("Red winter jacket, size M", "red winter jacket size m", 0.85))
}

func TestIsMatchRejectsDifferentTitles(t *testing.T) {
	assert.False(t, IsMatch("Red winter jacket, size M", "Vintage wooden chair", 0.85))
	assert.False(t, IsMatch("", "Vintage wooden chair", 0.85))
	assert.False(t, IsMatch("Red winter jacket", "", 0.85))
}
