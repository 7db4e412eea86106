// internal/hashing/similarity_test.go
package hashing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTagged(t *testing.T) {
	combined := ParseTagged("p:aa:bb:cc")
	assert.Equal(t, KindCombined, combined.Kind)
	assert.Equal(t, "aa:bb:cc", combined.Value)

	legacy := ParseTagged("deadbeef")
	assert.Equal(t, KindLegacy, legacy.Kind)
	assert.Equal(t, "deadbeef", legacy.Value)
}

func TestSimilarityIdenticalCombined(t *testing.T) {
	h := CombinedPerceptualHash([]byte(strings.Repeat("frame data", 100)))
	assert.InDelta(t, 1.0, Similarity(h, h), 1e-9)
}

func TestSimilarityKindMismatch(t *testing.T) {
	assert.Zero(t, Similarity("p:aa:bb:cc", "deadbeef"))
}

func TestSimilarityLegacyIsBinary(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("legacyhash", "legacyhash"))
	assert.Equal(t, 0.0, Similarity("legacyhash", "otherhash"))
}

func TestSimilarityWeightsSingleVariantFlip(t *testing.T) {
	// All bits of one variant flipped: the score loses exactly that
	// variant's weight.
	base := "p:0000000000000000:0000000000000000:0000000000000000"
	structureFlipped := "p:ffffffffffffffff:0000000000000000:0000000000000000"
	gradientFlipped := "p:0000000000000000:ffffffffffffffff:0000000000000000"
	brightnessFlipped := "p:0000000000000000:0000000000000000:ffffffffffffffff"

	assert.InDelta(t, 0.6, Similarity(base, structureFlipped), 1e-9)
	assert.InDelta(t, 0.7, Similarity(base, gradientFlipped), 1e-9)
	assert.InDelta(t, 0.7, Similarity(base, brightnessFlipped), 1e-9)
}

func TestSimilarityPartialHamming(t *testing.T) {
	// 8 of 64 bits differ in the structure variant only.
	a := "p:0000000000000000:0000000000000000:0000000000000000"
	b := "p:00000000000000ff:0000000000000000:0000000000000000"

	expected := 0.4*(1-8.0/64) + 0.3 + 0.3
	assert.InDelta(t, expected, Similarity(a, b), 1e-9)
}

func TestBinarySimilarity(t *testing.T) {
	assert.Equal(t, 1.0, BinarySimilarity("x", "x"))
	assert.Equal(t, 0.0, BinarySimilarity("x", "y"))
	assert.Equal(t, 0.0, BinarySimilarity("", ""))
}

func TestCompositeSimilarity(t *testing.T) {
	h := "p:0000000000000000:0000000000000000:0000000000000000"

	assert.Zero(t, CompositeSimilarity(nil, []string{h}))
	assert.Zero(t, CompositeSimilarity([]string{h}, nil))

	same := []string{h, h, h, h}
	assert.InDelta(t, 1.0, CompositeSimilarity(same, same), 1e-9)

	// Length disagreement scales the score down.
	shorter := []string{h, h}
	assert.InDelta(t, 0.5, CompositeSimilarity(shorter, same), 1e-9)
}
