package digits

import (
	"fmt"
	"math"
	"time"

	"github.com/Tutortoise/digit-recognition-service/models"
)

// Scorer runs the classification model on one tensor and returns its raw,
// unnormalized class scores. A Scorer is not required to be safe for
// concurrent use; callers hold it exclusively for the duration of a call.
type Scorer interface {
	Scores(t *Tensor) ([]float32, error)
	Destroy()
}

// Classify runs the model and converts its scores into a prediction.
// timings must not be nil.
func Classify(t *Tensor, scorer Scorer, timings *models.ProcessingTimings) (*models.PredictionResult, error) {
	if scorer == nil {
		return nil, newError(KindInference, "model session unavailable", nil)
	}

	start := time.Now()
	scores, err := scorer.Scores(t)
	timings.Inference = time.Since(start)
	if err != nil {
		return nil, newError(KindInference, "model inference", err)
	}

	start = time.Now()
	defer func() { timings.Postprocess = time.Since(start) }()

	if len(scores) != NumClasses {
		return nil, newError(KindInference, fmt.Sprintf("unexpected score count: got %d, want %d", len(scores), NumClasses), nil)
	}
	for i, s := range scores {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return nil, newError(KindInference, fmt.Sprintf("non-finite score for class %d", i), nil)
		}
	}

	probs := Softmax(scores)
	return &models.PredictionResult{
		Digit:         Argmax(scores),
		Probabilities: probs,
	}, nil
}

// Predict normalizes encoded and classifies it with scorer.
func Predict(encoded string, resampler Resampler, scorer Scorer, timings *models.ProcessingTimings) (*models.PredictionResult, error) {
	tensor, err := Normalize(encoded, resampler, timings)
	if err != nil {
		return nil, err
	}
	return Classify(tensor, scorer, timings)
}
