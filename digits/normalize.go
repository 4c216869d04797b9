package digits

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/Tutortoise/digit-recognition-service/models"
)

// MaxImagePixels bounds the decoded canvas size.
const MaxImagePixels = 40_000_000

// DecodeBase64 decodes a standard base64 payload. A data URL prefix such as
// "data:image/png;base64," is accepted and stripped.
func DecodeBase64(encoded string) ([]byte, error) {
	s := strings.TrimSpace(encoded)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, newError(KindDecode, "malformed data URL", nil)
		}
		s = s[comma+1:]
	}
	if s == "" {
		return nil, newError(KindDecode, "image is empty", nil)
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, newError(KindDecode, "invalid base64 image", err)
	}
	return data, nil
}

// DecodeImage decodes PNG, JPEG, GIF, BMP or WebP bytes.
func DecodeImage(data []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", newError(KindImageFormat, "unrecognized image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", newError(KindImageFormat, fmt.Sprintf("invalid image dimensions %dx%d", cfg.Width, cfg.Height), nil)
	}
	if cfg.Width*cfg.Height > MaxImagePixels {
		return nil, "", newError(KindImageFormat, fmt.Sprintf("image too large: %dx%d", cfg.Width, cfg.Height), nil)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", newError(KindImageFormat, "corrupt image", err)
	}
	return img, format, nil
}

// Grayscale reduces img to a single luminance channel using ITU-R 601 weights.
// Alpha is discarded.
func Grayscale(img image.Image) *image.Gray {
	return grayFromNRGBA(imaging.Grayscale(img))
}

func MeanBrightness(g *image.Gray) float64 {
	b := g.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	var sum uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[g.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			sum += uint64(row[x])
		}
	}
	return float64(sum) / float64(n)
}

func NeedsInversion(mean float64) bool {
	return mean > PolarityThreshold
}

func Invert(g *image.Gray) *image.Gray {
	return grayFromNRGBA(imaging.Invert(g))
}

// CorrectPolarity returns an image with light strokes on a dark background,
// inverting g when its mean brightness is above PolarityThreshold.
func CorrectPolarity(g *image.Gray) (*image.Gray, bool) {
	if !NeedsInversion(MeanBrightness(g)) {
		return g, false
	}
	return Invert(g), true
}

// Normalize runs the full preprocessing chain from a base64 payload to a model
// input tensor. timings must not be nil.
func Normalize(encoded string, resampler Resampler, timings *models.ProcessingTimings) (*Tensor, error) {
	start := time.Now()
	data, err := DecodeBase64(encoded)
	timings.Base64Decode = time.Since(start)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	img, _, err := DecodeImage(data)
	timings.ImageDecode = time.Since(start)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	gray := Grayscale(img)
	timings.Grayscale = time.Since(start)

	start = time.Now()
	timings.MeanBrightness = MeanBrightness(gray)
	if NeedsInversion(timings.MeanBrightness) {
		gray = Invert(gray)
		timings.Inverted = true
	}
	timings.Polarity = time.Since(start)

	start = time.Now()
	resized := resampler.Resample(gray, InputWidth, InputHeight)
	timings.Resize = time.Since(start)

	start = time.Now()
	tensor := ToTensor(resized)
	timings.Preprocess = time.Since(start)

	return tensor, nil
}
