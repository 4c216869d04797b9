package digits

import "image"

// Tensor is a normalized model input laid out as (batch=1, channels=1,
// height=28, width=28) in row-major order. Every value is in [0, 1].
type Tensor [TensorSize]float32

func (t *Tensor) Shape() []int64 {
	return []int64{1, InputChannels, InputHeight, InputWidth}
}

func (t *Tensor) At(x, y int) float32 {
	return t[y*InputWidth+x]
}

// ToTensor scales a 28x28 grayscale image into a Tensor. Pixels outside the
// image bounds read as zero.
func ToTensor(g *image.Gray) *Tensor {
	var t Tensor
	b := g.Bounds()
	for y := 0; y < InputHeight; y++ {
		offset := y * InputWidth
		for x := 0; x < InputWidth; x++ {
			t[offset+x] = float32(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y) / 255.0
		}
	}
	return &t
}
