// internal/hashing/bundle.go
package hashing

import (
	"fmt"

	"github.com/mediaseal/mediaseal-backend/internal/media"
)

// Bundle carries the hash layers computed so far for one upload. The fast
// path fills the cryptographic layers; the worker fills the perceptual and
// audio layers later.
type Bundle struct {
	OriginalSHA256        string
	ExactFrameHashes      []string
	PerceptualFrameHashes []string
	AudioFingerprint      string
	MetadataHash          string
}

// FastBundle computes the synchronous upload-time layers: the whole-file
// hash, the exact frame hashes, and the metadata hash. Perceptual and audio
// layers are deliberately excluded so the uploader gets a usable asset
// immediately, regardless of tier.
func (e *Engine) FastBundle(data []byte, v *media.Video) (*Bundle, error) {
	exact, err := e.ExactFrameHashes(v)
	if err != nil {
		return nil, fmt.Errorf("fast hashing failed: %w", err)
	}

	return &Bundle{
		OriginalSHA256:   SHA256Hex(data),
		ExactFrameHashes: exact,
		MetadataHash:     e.MetadataHash(v),
	}, nil
}
