package processor

import (
	"math"

	"fxstory/models"
)

// RollingMean returns the trailing mean of window values ending at each
// index. The first window-1 positions are missing, as is any window holding
// a NaN.
func RollingMean(values []float64, window int) []models.Rate {
	out := make([]models.Rate, len(values))
	if window <= 0 {
		for i := range out {
			out[i] = models.Missing()
		}
		return out
	}
	for i := range values {
		if i+1 < window {
			out[i] = models.Missing()
			continue
		}
		sum := 0.0
		for _, v := range values[i+1-window : i+1] {
			sum += v
		}
		if math.IsNaN(sum) {
			out[i] = models.Missing()
			continue
		}
		out[i] = models.Some(sum / float64(window))
	}
	return out
}
