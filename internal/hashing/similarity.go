// internal/hashing/similarity.go
package hashing

import (
	"encoding/hex"
	"math/bits"
	"strings"
)

// HashKind distinguishes the legacy single-variant encoding from the current
// combined one. Comparison logic dispatches on the tag, never on ad hoc
// string sniffing at call sites.
type HashKind string

const (
	KindLegacy   HashKind = "legacy"
	KindCombined HashKind = "combined"
)

// TaggedHash is an explicit tagged variant of a perceptual hash payload.
type TaggedHash struct {
	Kind  HashKind `json:"kind"`
	Value string   `json:"value"`
}

// ParseTagged classifies a stored hash string into its tagged form.
func ParseTagged(s string) TaggedHash {
	if strings.HasPrefix(s, CombinedPrefix) {
		return TaggedHash{Kind: KindCombined, Value: strings.TrimPrefix(s, CombinedPrefix)}
	}
	return TaggedHash{Kind: KindLegacy, Value: s}
}

// Variant weights for the combined perceptual score.
const (
	structureWeight  = 0.4
	gradientWeight   = 0.3
	brightnessWeight = 0.3
)

// Similarity scores two perceptual hash strings in [0,1]. Combined hashes
// are scored per variant by normalized Hamming distance and merged with the
// fixed weights; legacy hashes, and kind mismatches, compare by equality.
func Similarity(a, b string) float64 {
	ta, tb := ParseTagged(a), ParseTagged(b)
	if ta.Kind != tb.Kind {
		return 0
	}
	if ta.Kind == KindLegacy {
		return BinarySimilarity(ta.Value, tb.Value)
	}

	va := strings.Split(ta.Value, ":")
	vb := strings.Split(tb.Value, ":")
	if len(va) != 3 || len(vb) != 3 {
		return BinarySimilarity(ta.Value, tb.Value)
	}

	return structureWeight*variantSimilarity(va[0], vb[0]) +
		gradientWeight*variantSimilarity(va[1], vb[1]) +
		brightnessWeight*variantSimilarity(va[2], vb[2])
}

// BinarySimilarity is the exact/audio-layer score: equal values are 1.0,
// anything else is 0.0.
func BinarySimilarity(a, b string) float64 {
	if a != "" && a == b {
		return 1.0
	}
	return 0.0
}

// variantSimilarity is 1 minus the normalized Hamming distance between two
// hex-encoded bit strings of equal width.
func variantSimilarity(a, b string) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	ba, err := hex.DecodeString(a)
	if err != nil {
		return BinarySimilarity(a, b)
	}
	bb, err := hex.DecodeString(b)
	if err != nil {
		return BinarySimilarity(a, b)
	}

	distance := 0
	for i := range ba {
		distance += bits.OnesCount8(ba[i] ^ bb[i])
	}
	total := len(ba) * 8
	return 1 - float64(distance)/float64(total)
}

// CompositeSimilarity scores two ordered perceptual hash lists: the average
// per-frame similarity over the aligned prefix, scaled down when the lists
// disagree on length.
func CompositeSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += Similarity(a[i], b[i])
	}
	avg := sum / float64(n)

	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	return avg * float64(n) / float64(longest)
}
