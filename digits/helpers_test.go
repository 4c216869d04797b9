package digits

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// drawSeven renders a black "7" on a white canvas.
func drawSeven(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	black := image.NewUniform(color.Black)

	draw.Draw(img, image.Rect(w*25/100, h*20/100, w*75/100, h*30/100), black, image.Point{}, draw.Src)

	thickness := w / 10
	top, bottom := h*30/100, h*85/100
	for y := top; y < bottom; y++ {
		frac := float64(y-top) / float64(bottom-top)
		cx := int(float64(w)*0.75 - frac*float64(w)*0.35)
		draw.Draw(img, image.Rect(cx-thickness, y, cx, y+1), black, image.Point{}, draw.Src)
	}
	return img
}

type fakeScorer struct {
	scores    []float32
	err       error
	calls     int
	last      *Tensor
	destroyed bool
	score     func(t *Tensor) []float32
}

func (f *fakeScorer) Scores(t *Tensor) ([]float32, error) {
	f.calls++
	f.last = t
	if f.err != nil {
		return nil, f.err
	}
	if f.score != nil {
		return f.score(t), nil
	}
	return f.scores, nil
}

func (f *fakeScorer) Destroy() { f.destroyed = true }

func peaked(digit int) []float32 {
	scores := make([]float32, NumClasses)
	for i := range scores {
		scores[i] = float32(i) * 0.1
	}
	scores[digit] = 9
	return scores
}

// regionMean averages the tensor over [x0,x1) x [y0,y1).
func regionMean(t *Tensor, x0, y0, x1, y1 int) float64 {
	var sum float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			sum += float64(t.At(x, y))
		}
	}
	return sum / float64((x1-x0)*(y1-y0))
}
