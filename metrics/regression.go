// Package metrics provides evaluation helpers for forest predictions.
package metrics

import (
	"math"

	"github.com/forester-ml/forester/pkg/errors"
)

// MSE computes the mean squared error between targets and predictions.
func MSE(yTrue, yPred []float64) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("MSE", "empty vector")
	}
	if len(yPred) != n {
		return 0, errors.NewDimensionError("MSE", n, len(yPred), 0)
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue[i] - yPred[i]
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE computes the root mean squared error.
func RMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// R2Score computes the coefficient of determination. A constant target
// vector yields a ValueError since the score is undefined.
func R2Score(yTrue, yPred []float64) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("R2Score", "empty vector")
	}
	if len(yPred) != n {
		return 0, errors.NewDimensionError("R2Score", n, len(yPred), 0)
	}

	var mean float64
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(n)

	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		r := yTrue[i] - yPred[i]
		ssRes += r * r
		t := yTrue[i] - mean
		ssTot += t * t
	}
	if ssTot == 0 {
		return 0, errors.NewValueError("R2Score", "constant target vector")
	}
	return 1 - ssRes/ssTot, nil
}
