// internal/hashing/engine_test.go
package hashing

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaseal/mediaseal-backend/internal/media"
)

func testVideo(frames int, withAudio bool) *media.Video {
	v := &media.Video{
		Meta: media.Metadata{
			Duration:  90 * time.Second,
			Width:     1920,
			Height:    1080,
			FrameRate: 30,
			Codec:     "mp4",
			HasAudio:  withAudio,
		},
	}
	for i := 0; i < frames; i++ {
		v.Frames = append(v.Frames, []byte(fmt.Sprintf("frame-%04d-padding-padding", i)))
	}
	if withAudio {
		v.Audio = bytes.Repeat([]byte{0x21, 0x42, 0x63}, 400)
	}
	return v
}

func TestExactFrameHashesDeterministic(t *testing.T) {
	e := NewEngine()
	v := testVideo(120, false)

	first, err := e.ExactFrameHashes(v)
	require.NoError(t, err)
	second, err := e.ExactFrameHashes(v)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, ExactFrameSamples)
	for _, h := range first {
		assert.Len(t, h, 64)
	}
}

func TestExactFrameHashesChangeWithContent(t *testing.T) {
	e := NewEngine()
	a := testVideo(120, false)
	b := testVideo(120, false)
	b.Frames[0] = []byte("different first frame bytes here")

	ha, err := e.ExactFrameHashes(a)
	require.NoError(t, err)
	hb, err := e.ExactFrameHashes(b)
	require.NoError(t, err)

	assert.NotEqual(t, ha, hb)
}

func TestExactFrameHashesEmptyVideo(t *testing.T) {
	e := NewEngine()
	_, err := e.ExactFrameHashes(&media.Video{})
	assert.ErrorIs(t, err, media.ErrUnreadable)
}

func TestPerceptualFrameHashesStrideAndFormat(t *testing.T) {
	e := NewEngine()
	e.PerceptualStride = 30
	v := testVideo(120, false)

	hashes := e.PerceptualFrameHashes(v)
	assert.Len(t, hashes, 4) // frames 0, 30, 60, 90
	for _, h := range hashes {
		tagged := ParseTagged(h)
		assert.Equal(t, KindCombined, tagged.Kind)
	}
}

func TestAudioFingerprintSentinel(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, NoAudioFingerprint, e.AudioFingerprint(testVideo(10, false)))
}

func TestAudioFingerprintDeterministic(t *testing.T) {
	e := NewEngine()
	v := testVideo(10, true)

	fp := e.AudioFingerprint(v)
	assert.NotEqual(t, NoAudioFingerprint, fp)
	assert.Equal(t, fp, e.AudioFingerprint(v))

	other := testVideo(10, true)
	other.Audio[0] ^= 0xFF
	assert.NotEqual(t, fp, e.AudioFingerprint(other))
}

func TestMetadataHashCanonical(t *testing.T) {
	e := NewEngine()
	a := testVideo(10, false)
	b := testVideo(10, false)
	assert.Equal(t, e.MetadataHash(a), e.MetadataHash(b))

	b.Meta.Width = 1280
	assert.NotEqual(t, e.MetadataHash(a), e.MetadataHash(b))
}

func TestCombineHashes(t *testing.T) {
	assert.Empty(t, CombineHashes(nil))
	assert.Equal(t, CombineHashes([]string{"a", "b"}), CombineHashes([]string{"a", "b"}))
	assert.NotEqual(t, CombineHashes([]string{"a", "b"}), CombineHashes([]string{"b", "a"}))
}

func TestFastBundle(t *testing.T) {
	e := NewEngine()
	v := testVideo(120, false)
	data := []byte("raw upload bytes")

	bundle, err := e.FastBundle(data, v)
	require.NoError(t, err)

	assert.Equal(t, SHA256Hex(data), bundle.OriginalSHA256)
	assert.Len(t, bundle.ExactFrameHashes, ExactFrameSamples)
	assert.NotEmpty(t, bundle.MetadataHash)
	// Slow layers are left for the worker.
	assert.Empty(t, bundle.PerceptualFrameHashes)
	assert.Empty(t, bundle.AudioFingerprint)
}
