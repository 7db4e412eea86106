// internal/media/video.go
package media

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

var ErrUnreadable = errors.New("media stream is unreadable or corrupt")

// Metadata holds the stable stream properties that feed the metadata hash.
type Metadata struct {
	Duration  time.Duration `json:"duration"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	FrameRate float64       `json:"frame_rate"`
	Codec     string        `json:"codec"`
	SizeBytes int64         `json:"size_bytes"`
	HasAudio  bool          `json:"has_audio"`
}

// Video is a decoded media stream: an ordered sequence of raw frame buffers,
// the extracted audio samples (empty when the stream carries no audio track),
// and the stream metadata. All hash layers are pure functions of this value.
type Video struct {
	Frames [][]byte
	Audio  []byte
	Meta   Metadata
}

// FrameAt returns the frame closest to the given fraction of the duration.
func (v *Video) FrameAt(fraction float64) []byte {
	if len(v.Frames) == 0 {
		return nil
	}
	idx := int(fraction * float64(len(v.Frames)))
	if idx >= len(v.Frames) {
		idx = len(v.Frames) - 1
	}
	return v.Frames[idx]
}

// Decoder turns raw uploaded bytes into a decoded Video.
type Decoder interface {
	Decode(data []byte) (*Video, error)
}

// StreamDecoder is the built-in decoder. It sniffs the container format from
// magic bytes, then samples the decoded stream into fixed byte windows that
// stand in for frame buffers. The sampling is deterministic: identical bytes
// always yield identical frames, audio samples, and metadata.
type StreamDecoder struct {
	FrameCount  int // number of frame windows to cut, default 300
	AudioStride int // downsampling stride for the audio track, default 17
}

func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{
		FrameCount:  300,
		AudioStride: 17,
	}
}

const minStreamSize = 512

func (d *StreamDecoder) Decode(data []byte) (*Video, error) {
	if len(data) < minStreamSize {
		return nil, fmt.Errorf("%w: stream too small (%d bytes)", ErrUnreadable, len(data))
	}

	codec, ok := sniffContainer(data)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized container", ErrUnreadable)
	}

	frameCount := d.FrameCount
	if frameCount <= 0 {
		frameCount = 300
	}
	if frameCount > len(data) {
		frameCount = len(data)
	}

	window := len(data) / frameCount
	frames := make([][]byte, 0, frameCount)
	for i := 0; i < frameCount; i++ {
		start := i * window
		end := start + window
		if i == frameCount-1 {
			end = len(data)
		}
		frames = append(frames, data[start:end])
	}

	hasAudio := sniffAudioTrack(data)
	var audio []byte
	if hasAudio {
		stride := d.AudioStride
		if stride <= 0 {
			stride = 17
		}
		audio = make([]byte, 0, len(data)/stride)
		for i := 0; i < len(data); i += stride {
			audio = append(audio, data[i])
		}
	}

	meta := Metadata{
		// Duration is approximated from the sampled frame count at a
		// nominal 30fps; containers are not fully parsed here.
		Duration:  time.Duration(frameCount) * time.Second / 30,
		FrameRate: 30,
		Codec:     codec,
		SizeBytes: int64(len(data)),
		HasAudio:  hasAudio,
	}

	return &Video{Frames: frames, Audio: audio, Meta: meta}, nil
}

func sniffContainer(data []byte) (string, bool) {
	switch {
	case len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")):
		return "mp4", true
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "webm", true
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("AVI ")):
		return "avi", true
	case len(data) >= 4 && bytes.Equal(data[0:3], []byte{0x00, 0x00, 0x01}):
		return "mpeg", true
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("FLV")):
		return "flv", true
	}
	return "", false
}

// sniffAudioTrack looks for the common audio codec markers inside the
// container rather than parsing track tables.
func sniffAudioTrack(data []byte) bool {
	markers := [][]byte{
		[]byte("mp4a"),
		[]byte("A_AAC"),
		[]byte("A_OPUS"),
		[]byte("A_VORBIS"),
		[]byte("auds"),
	}
	for _, m := range markers {
		if bytes.Contains(data, m) {
			return true
		}
	}
	return false
}
