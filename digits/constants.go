package digits

const (
	InputWidth    = 28
	InputHeight   = 28
	InputChannels = 1
	NumClasses    = 10

	// PolarityThreshold is the mean brightness above which an image is treated
	// as dark strokes on a light background and inverted. The comparison is
	// strict and tuned to the MNIST model's training data.
	PolarityThreshold = 127
)

const TensorSize = InputChannels * InputHeight * InputWidth
