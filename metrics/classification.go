package metrics

import (
	"github.com/forester-ml/forester/pkg/errors"
)

// Accuracy computes the fraction of predictions matching the labels.
func Accuracy(yTrue, yPred []float64) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("Accuracy", "empty vector")
	}
	if len(yPred) != n {
		return 0, errors.NewDimensionError("Accuracy", n, len(yPred), 0)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}
