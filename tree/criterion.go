package tree

import (
	"math"

	"github.com/forester-ml/forester/pkg/errors"
)

// Criterion selects the impurity measure used to score candidate
// splits. The set is closed and dispatched with a switch so the inner
// scan loop carries no interface calls.
type Criterion int

const (
	// Gini is the Gini impurity, for classification.
	Gini Criterion = iota
	// Entropy is the Shannon entropy, for classification.
	Entropy
	// MSE is the variance of the targets, for regression.
	MSE
)

// String returns the criterion name.
func (c Criterion) String() string {
	switch c {
	case Gini:
		return "gini"
	case Entropy:
		return "entropy"
	case MSE:
		return "mse"
	default:
		return "unknown"
	}
}

// ParseCriterion converts a criterion name to a Criterion.
func ParseCriterion(name string) (Criterion, error) {
	switch name {
	case "gini":
		return Gini, nil
	case "entropy":
		return Entropy, nil
	case "mse":
		return MSE, nil
	default:
		return 0, errors.NewConfigError("criterion", "must be one of gini, entropy, mse", name)
	}
}

// IsClassification reports whether the criterion scores label
// distributions rather than target variance.
func (c Criterion) IsClassification() bool {
	return c != MSE
}

// impurityFromCounts scores a class-count distribution. counts must sum
// to total; total must be positive.
func (c Criterion) impurityFromCounts(counts []int, total int) float64 {
	n := float64(total)
	switch c {
	case Gini:
		sumSq := 0.0
		for _, cnt := range counts {
			p := float64(cnt) / n
			sumSq += p * p
		}
		return 1 - sumSq
	case Entropy:
		ent := 0.0
		for _, cnt := range counts {
			if cnt == 0 {
				continue
			}
			p := float64(cnt) / n
			ent -= p * math.Log2(p)
		}
		return ent
	default:
		panic("tree: count-based impurity on a regression criterion")
	}
}

// varianceImpurity scores a target subset by its variance, given the
// running sum and sum of squares.
func varianceImpurity(sum, sumSq float64, n int) float64 {
	if n == 0 {
		return 0
	}
	fn := float64(n)
	mean := sum / fn
	v := sumSq/fn - mean*mean
	// Guard against negative variance from floating-point cancellation.
	if v < 0 {
		return 0
	}
	return v
}
