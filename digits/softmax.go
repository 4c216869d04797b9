package digits

import "math"

// Softmax converts raw scores into probabilities. The maximum score is
// subtracted before exponentiating so large scores cannot overflow.
func Softmax(scores []float32) []float64 {
	if len(scores) == 0 {
		return nil
	}

	maxScore := float64(scores[0])
	for _, s := range scores[1:] {
		if float64(s) > maxScore {
			maxScore = float64(s)
		}
	}

	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(float64(s) - maxScore)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// Argmax returns the index of the largest value; ties go to the lowest index.
// It returns -1 for an empty slice.
func Argmax[T float32 | float64](values []T) int {
	if len(values) == 0 {
		return -1
	}
	best := 0
	for i, v := range values[1:] {
		if v > values[best] {
			best = i + 1
		}
	}
	return best
}
