package digits

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

const (
	BackendImaging = "imaging"
	BackendNfnt    = "nfnt"
)

// Resampler stretches an image to exactly width x height. Implementations must
// use a Lanczos kernel: the model was trained on smoothed stroke edges.
type Resampler interface {
	Resample(img image.Image, width, height int) *image.Gray
	Name() string
}

type imagingLanczos struct{}

func (imagingLanczos) Resample(img image.Image, width, height int) *image.Gray {
	return grayFromNRGBA(imaging.Resize(img, width, height, imaging.Lanczos))
}

func (imagingLanczos) Name() string { return BackendImaging }

type nfntLanczos struct{}

func (nfntLanczos) Resample(img image.Image, width, height int) *image.Gray {
	return toGray(resize.Resize(uint(width), uint(height), img, resize.Lanczos3))
}

func (nfntLanczos) Name() string { return BackendNfnt }

func NewResampler(backend string) (Resampler, error) {
	switch backend {
	case "", BackendImaging:
		return imagingLanczos{}, nil
	case BackendNfnt:
		return nfntLanczos{}, nil
	default:
		return nil, fmt.Errorf("unknown resize backend %q", backend)
	}
}

// grayFromNRGBA keeps the red channel of an image whose channels already hold
// equal luminance values, dropping alpha.
func grayFromNRGBA(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		srcRow := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
		dstRow := dst.Pix[y*dst.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dstRow[x] = srcRow[x*4]
		}
	}
	return dst
}

func toGray(img image.Image) *image.Gray {
	switch src := img.(type) {
	case *image.Gray:
		if src.Rect.Min == (image.Point{}) {
			return src
		}
	case *image.NRGBA:
		return grayFromNRGBA(src)
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.SetGray(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray))
		}
	}
	return dst
}
