package models

import "time"

// PredictionResult is the response body of a successful prediction.
type PredictionResult struct {
	Digit         int       `json:"digit"`
	Probabilities []float64 `json:"probabilities"`
}

type ProcessingTimings struct {
	RequestID    string
	Base64Decode time.Duration
	ImageDecode  time.Duration
	Grayscale    time.Duration
	Polarity     time.Duration
	Resize       time.Duration
	Preprocess   time.Duration
	Inference    time.Duration
	Postprocess  time.Duration
	Total        time.Duration

	// Inverted records whether polarity correction flipped the image.
	Inverted       bool
	MeanBrightness float64
}

// Stages returns the per-stage durations keyed by stage name.
func (t *ProcessingTimings) Stages() map[string]time.Duration {
	return map[string]time.Duration{
		"base64_decode": t.Base64Decode,
		"image_decode":  t.ImageDecode,
		"grayscale":     t.Grayscale,
		"polarity":      t.Polarity,
		"resize":        t.Resize,
		"preprocess":    t.Preprocess,
		"inference":     t.Inference,
		"postprocess":   t.Postprocess,
	}
}
