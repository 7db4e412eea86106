// internal/hashing/perceptual_test.go
package hashing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombinedPerceptualHashFormat(t *testing.T) {
	h := CombinedPerceptualHash([]byte(strings.Repeat("pixels", 512)))

	assert.True(t, strings.HasPrefix(h, CombinedPrefix))
	parts := strings.Split(strings.TrimPrefix(h, CombinedPrefix), ":")
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.Len(t, p, 16)
	}
}

func TestCombinedPerceptualHashDeterministic(t *testing.T) {
	frame := []byte(strings.Repeat("stable frame content", 128))
	assert.Equal(t, CombinedPerceptualHash(frame), CombinedPerceptualHash(frame))
}

func TestCombinedPerceptualHashSurvivesTinyFrames(t *testing.T) {
	// Degenerate buffers still produce a well-formed hash.
	for _, frame := range [][]byte{{}, {0x01}, []byte("abc")} {
		h := CombinedPerceptualHash(frame)
		assert.True(t, strings.HasPrefix(h, CombinedPrefix))
	}
}
