// internal/hashing/engine.go
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/mediaseal/mediaseal-backend/internal/media"
)

const (
	// ExactFrameSamples is the fixed number of evenly spaced frames hashed
	// on the fast path.
	ExactFrameSamples = 10

	// NoAudioFingerprint is the sentinel stored when the stream has no
	// audio track or the tier does not cover the audio layer.
	NoAudioFingerprint = "no-audio"

	defaultPerceptualStride = 30
	audioSampleStride       = 64
)

// Engine computes the hash layers of a decoded video. Every operation is a
// pure function of the video: re-running on identical bytes yields identical
// output.
type Engine struct {
	// PerceptualStride selects every Nth frame for the perceptual layer.
	PerceptualStride int
}

func NewEngine() *Engine {
	return &Engine{PerceptualStride: defaultPerceptualStride}
}

func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ExactFrameHashes samples ExactFrameSamples evenly spaced frames across the
// full duration and hashes each raw frame buffer. Detects pixel-perfect
// re-uploads of a pristine original.
func (e *Engine) ExactFrameHashes(v *media.Video) ([]string, error) {
	if len(v.Frames) == 0 {
		return nil, fmt.Errorf("exact frame hashing: %w", media.ErrUnreadable)
	}

	hashes := make([]string, ExactFrameSamples)
	for i := 0; i < ExactFrameSamples; i++ {
		frame := v.FrameAt(float64(i) / float64(ExactFrameSamples))
		hashes[i] = SHA256Hex(frame)
	}
	return hashes, nil
}

// PerceptualFrameHashes samples every Nth frame and computes the combined
// perceptual hash per frame. Callers gate this on tier >= pro.
func (e *Engine) PerceptualFrameHashes(v *media.Video) []string {
	stride := e.PerceptualStride
	if stride <= 0 {
		stride = defaultPerceptualStride
	}

	var hashes []string
	for i := 0; i < len(v.Frames); i += stride {
		hashes = append(hashes, CombinedPerceptualHash(v.Frames[i]))
	}
	return hashes
}

// AudioFingerprint downsamples the extracted audio track and digests the
// reduced waveform. A missing track yields the sentinel, not an error.
// Callers gate this on tier == enterprise.
func (e *Engine) AudioFingerprint(v *media.Video) string {
	if len(v.Audio) == 0 {
		return NoAudioFingerprint
	}

	reduced := make([]byte, 0, len(v.Audio)/audioSampleStride+1)
	for i := 0; i < len(v.Audio); i += audioSampleStride {
		reduced = append(reduced, v.Audio[i])
	}

	h := sha3.Sum256(reduced)
	return hex.EncodeToString(h[:])
}

// MetadataHash canonicalizes the stable stream properties into sorted
// key-value lines and hashes them. Always computed.
func (e *Engine) MetadataHash(v *media.Video) string {
	props := map[string]string{
		"codec":       v.Meta.Codec,
		"duration_ms": fmt.Sprintf("%d", v.Meta.Duration.Milliseconds()),
		"frame_rate":  fmt.Sprintf("%.3f", v.Meta.FrameRate),
		"width":       fmt.Sprintf("%d", v.Meta.Width),
		"height":      fmt.Sprintf("%d", v.Meta.Height),
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, props[k])
	}
	return SHA256Hex([]byte(b.String()))
}

// CombineHashes folds an ordered hash list into one composite value, used
// both as a Merkle leaf and for whole-layer comparison.
func CombineHashes(hashes []string) string {
	if len(hashes) == 0 {
		return ""
	}
	return SHA256Hex([]byte(strings.Join(hashes, "|")))
}
