package tree

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/forester-ml/forester/pkg/errors"
)

// SplitStrategy selects how candidate thresholds are proposed per
// feature.
type SplitStrategy int

const (
	// BestSplit is the CART strategy: sort the node's samples by feature
	// value and evaluate every distinct boundary.
	BestSplit SplitStrategy = iota
	// RandomSplit is the extra-trees strategy: draw one uniform threshold
	// inside the node's observed value range and evaluate only that.
	RandomSplit
)

// String returns the strategy name.
func (s SplitStrategy) String() string {
	switch s {
	case BestSplit:
		return "best"
	case RandomSplit:
		return "extra_random"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a strategy name to a SplitStrategy.
func ParseStrategy(name string) (SplitStrategy, error) {
	switch name {
	case "best":
		return BestSplit, nil
	case "extra_random":
		return RandomSplit, nil
	default:
		return 0, errors.NewConfigError("split_strategy", "must be one of best, extra_random", name)
	}
}

// splitCandidate is the ephemeral result of a split search. It is
// discarded once the winning split is committed into a node.
type splitCandidate struct {
	feature   int
	threshold float64
	gain      float64
	ok        bool
}

// better reports whether a wins over b. Higher gain wins; exact ties
// break to the lowest feature index, then the lowest threshold, so the
// search is deterministic for a fixed dataset and seed.
func (a splitCandidate) better(b splitCandidate) bool {
	if !a.ok {
		return false
	}
	if !b.ok {
		return true
	}
	if a.gain != b.gain {
		return a.gain > b.gain
	}
	if a.feature != b.feature {
		return a.feature < b.feature
	}
	return a.threshold < b.threshold
}

// findSplit searches a fresh random feature subset for the winning
// split of this node. It returns ok == false only when every candidate
// feature is constant within the node's samples, in which case the
// caller emits a leaf.
func (b *Builder) findSplit(X mat.Matrix, targets []float64, indices []int, parentImp float64, rng *rand.Rand) splitCandidate {
	_, dims := X.Dims()
	k := b.SubsetSize
	if k <= 0 || k > dims {
		k = dims
	}
	feats := rng.Perm(dims)[:k]
	sort.Ints(feats)

	var best splitCandidate
	for _, f := range feats {
		var cand splitCandidate
		if b.Strategy == RandomSplit {
			cand = b.randomSplitFeature(X, targets, indices, f, parentImp, rng)
		} else {
			cand = b.bestSplitFeature(X, targets, indices, f, parentImp)
		}
		if cand.better(best) {
			best = cand
		}
	}
	return best
}

// bestSplitFeature runs the exhaustive CART scan over one feature: sort
// the node's samples by value and sweep every distinct boundary,
// keeping running class counts (or target moments) on both sides.
func (b *Builder) bestSplitFeature(X mat.Matrix, targets []float64, indices []int, feature int, parentImp float64) splitCandidate {
	n := len(indices)
	order := make([]int, n)
	copy(order, indices)
	sort.Slice(order, func(i, j int) bool {
		return X.At(order[i], feature) < X.At(order[j], feature)
	})

	best := splitCandidate{feature: feature}
	fn := float64(n)

	if b.Criterion.IsClassification() {
		leftCounts := make([]int, b.NumClasses)
		rightCounts := make([]int, b.NumClasses)
		for _, idx := range order {
			rightCounts[int(targets[idx])]++
		}
		for i := 0; i < n-1; i++ {
			c := int(targets[order[i]])
			leftCounts[c]++
			rightCounts[c]--

			v, next := X.At(order[i], feature), X.At(order[i+1], feature)
			if v == next {
				continue
			}
			nl := i + 1
			nr := n - nl
			gain := parentImp -
				float64(nl)/fn*b.Criterion.impurityFromCounts(leftCounts, nl) -
				float64(nr)/fn*b.Criterion.impurityFromCounts(rightCounts, nr)
			cand := splitCandidate{feature: feature, threshold: (v + next) / 2, gain: gain, ok: true}
			if cand.better(best) {
				best = cand
			}
		}
		return best
	}

	var totalSum, totalSumSq float64
	for _, idx := range order {
		t := targets[idx]
		totalSum += t
		totalSumSq += t * t
	}
	var leftSum, leftSumSq float64
	for i := 0; i < n-1; i++ {
		t := targets[order[i]]
		leftSum += t
		leftSumSq += t * t

		v, next := X.At(order[i], feature), X.At(order[i+1], feature)
		if v == next {
			continue
		}
		nl := i + 1
		nr := n - nl
		gain := parentImp -
			float64(nl)/fn*varianceImpurity(leftSum, leftSumSq, nl) -
			float64(nr)/fn*varianceImpurity(totalSum-leftSum, totalSumSq-leftSumSq, nr)
		cand := splitCandidate{feature: feature, threshold: (v + next) / 2, gain: gain, ok: true}
		if cand.better(best) {
			best = cand
		}
	}
	return best
}

// randomSplitFeature draws one uniform threshold inside the node's
// observed (min, max) for the feature and scores that single split.
// No sort is needed; constant features yield no candidate.
func (b *Builder) randomSplitFeature(X mat.Matrix, targets []float64, indices []int, feature int, parentImp float64, rng *rand.Rand) splitCandidate {
	minV, maxV := X.At(indices[0], feature), X.At(indices[0], feature)
	for _, idx := range indices[1:] {
		v := X.At(idx, feature)
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if minV == maxV {
		return splitCandidate{}
	}

	// rng.Float64 is in [0, 1), so the threshold stays strictly below
	// maxV and both children are non-empty under `value <= threshold`.
	threshold := minV + rng.Float64()*(maxV-minV)

	n := len(indices)
	fn := float64(n)
	if b.Criterion.IsClassification() {
		leftCounts := make([]int, b.NumClasses)
		rightCounts := make([]int, b.NumClasses)
		nl := 0
		for _, idx := range indices {
			if X.At(idx, feature) <= threshold {
				leftCounts[int(targets[idx])]++
				nl++
			} else {
				rightCounts[int(targets[idx])]++
			}
		}
		nr := n - nl
		gain := parentImp -
			float64(nl)/fn*b.Criterion.impurityFromCounts(leftCounts, nl) -
			float64(nr)/fn*b.Criterion.impurityFromCounts(rightCounts, nr)
		return splitCandidate{feature: feature, threshold: threshold, gain: gain, ok: true}
	}

	var leftSum, leftSumSq, rightSum, rightSumSq float64
	nl := 0
	for _, idx := range indices {
		t := targets[idx]
		if X.At(idx, feature) <= threshold {
			leftSum += t
			leftSumSq += t * t
			nl++
		} else {
			rightSum += t
			rightSumSq += t * t
		}
	}
	nr := n - nl
	gain := parentImp -
		float64(nl)/fn*varianceImpurity(leftSum, leftSumSq, nl) -
		float64(nr)/fn*varianceImpurity(rightSum, rightSumSq, nr)
	return splitCandidate{feature: feature, threshold: threshold, gain: gain, ok: true}
}
