// internal/hashing/perceptual.go
package hashing

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// CombinedPrefix tags the current perceptual-hash encoding. Values without
// it are legacy single-variant hashes and compare by equality only.
const CombinedPrefix = "p:"

const normalizedSize = 64

// CombinedPerceptualHash computes the three complementary perceptual
// variants of one frame and concatenates them into a single tagged string:
// p:<structure>:<gradient>:<brightness>. The frame is cropped to its center
// 50% (resistant to watermark and border placement) and normalized to a
// fixed square resolution (resolution-independent) before hashing.
func CombinedPerceptualHash(frame []byte) string {
	norm := normalizeFrame(frameImage(frame))
	return fmt.Sprintf("%s%s:%s:%s",
		CombinedPrefix,
		structureHash(norm),
		gradientHash(norm),
		brightnessHash(norm),
	)
}

// frameImage lays a raw frame buffer out as a square grayscale image.
func frameImage(buf []byte) image.Image {
	side := int(math.Sqrt(float64(len(buf))))
	if side < 8 {
		side = 8
	}
	gray := image.NewGray(image.Rect(0, 0, side, side))
	if len(buf) > 0 {
		for i := range gray.Pix {
			gray.Pix[i] = buf[i%len(buf)]
		}
	}
	return gray
}

func normalizeFrame(img image.Image) *image.NRGBA {
	b := img.Bounds()
	cropped := imaging.CropCenter(img, b.Dx()/2, b.Dy()/2)
	resized := imaging.Resize(cropped, normalizedSize, normalizedSize, imaging.Lanczos)
	return imaging.Grayscale(resized)
}

func luminanceAt(img *image.NRGBA, x, y int) float64 {
	// The image is already grayscale, so any channel carries the luminance.
	return float64(img.NRGBAAt(x, y).R)
}

// structureHash is an average hash over an 8x8 downsample: each bit marks a
// pixel brighter than the frame mean.
func structureHash(img *image.NRGBA) string {
	small := imaging.Resize(img, 8, 8, imaging.Box)

	var sum float64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			sum += luminanceAt(small, x, y)
		}
	}
	mean := sum / 64

	var bits uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			bits <<= 1
			if luminanceAt(small, x, y) > mean {
				bits |= 1
			}
		}
	}
	return fmt.Sprintf("%016x", bits)
}

// gradientHash is a difference hash over a 9x8 downsample: each bit marks a
// horizontal brightness increase.
func gradientHash(img *image.NRGBA) string {
	small := imaging.Resize(img, 9, 8, imaging.Box)

	var bits uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			bits <<= 1
			if luminanceAt(small, x, y) < luminanceAt(small, x+1, y) {
				bits |= 1
			}
		}
	}
	return fmt.Sprintf("%016x", bits)
}

// brightnessHash quantizes blockwise luminance: the normalized frame is cut
// into an 8x8 grid and each block mean is compared to the global mean.
func brightnessHash(img *image.NRGBA) string {
	block := normalizedSize / 8

	var global float64
	means := make([]float64, 0, 64)
	for by := 0; by < 8; by++ {
		for bx := 0; bx < 8; bx++ {
			var sum float64
			for y := by * block; y < (by+1)*block; y++ {
				for x := bx * block; x < (bx+1)*block; x++ {
					sum += luminanceAt(img, x, y)
				}
			}
			mean := sum / float64(block*block)
			means = append(means, mean)
			global += mean
		}
	}
	global /= 64

	var bits uint64
	for _, mean := range means {
		bits <<= 1
		if mean > global {
			bits |= 1
		}
	}
	return fmt.Sprintf("%016x", bits)
}
