// Package tree implements the recursive-partitioning core: split
// criteria, split search and the arena-backed decision tree grown from
// a sample subset.
package tree

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// noChild marks a missing child link in the node arena.
const noChild = -1

// Node is one node of a decision tree. Nodes live in a flat arena and
// reference their children by index, which keeps prediction-time
// traversal cache friendly and makes the structure trivially
// serializable. All fields are exported for gob.
type Node struct {
	LeftChild  int // arena index, noChild for leaves
	RightChild int

	// Split payload, meaningful for internal nodes.
	SplitFeature int
	Threshold    float64
	Gain         float64 // impurity reduction achieved by the split

	// Leaf payload.
	ClassCounts []float64 // class distribution, nil for regression
	Value       float64   // majority class id, or target mean

	Samples int // samples routed through this node during growth
}

// IsLeaf reports whether the node is a leaf.
func (n *Node) IsLeaf() bool {
	return n.LeftChild == noChild
}

// Tree is a single grown decision tree. NumClasses is zero for
// regression trees.
type Tree struct {
	Nodes      []Node
	NumClasses int
}

// LeafFor descends the tree for a feature vector and returns the
// reached leaf. The vector must already be in the tree's input space
// (rotated by the owning ensemble when rotation is enabled).
func (t *Tree) LeafFor(x []float64) *Node {
	idx := 0
	for {
		n := &t.Nodes[idx]
		if n.IsLeaf() {
			return n
		}
		if x[n.SplitFeature] <= n.Threshold {
			idx = n.LeftChild
		} else {
			idx = n.RightChild
		}
	}
}

// Predict returns the leaf prediction for a feature vector: the
// majority class id for classification trees, the target mean for
// regression trees.
func (t *Tree) Predict(x []float64) float64 {
	return t.LeafFor(x).Value
}

// Builder grows decision trees from sample subsets. The zero value is
// not usable; the ensemble package fills a Builder from its validated
// configuration.
type Builder struct {
	Criterion       Criterion
	Strategy        SplitStrategy
	MaxDepth        int // 0 means unbounded
	MinSamplesSplit int
	SubsetSize      int // candidate features per node, 0 or >dims means all
	NumClasses      int // 0 for regression
}

// Grow builds one tree over the given sample indices. X may be the
// training matrix itself or a rotated copy; targets holds class indices
// (as float64) for classification or raw targets for regression. The
// caller owns rng, which must be private to this tree for
// reproducibility under parallel training.
func (b *Builder) Grow(X mat.Matrix, targets []float64, indices []int, rng *rand.Rand) *Tree {
	t := &Tree{NumClasses: b.NumClasses}
	b.grow(t, X, targets, indices, 0, rng)
	return t
}

// grow appends the subtree for one sample subset to the arena and
// returns its root index.
func (b *Builder) grow(t *Tree, X mat.Matrix, targets []float64, indices []int, depth int, rng *rand.Rand) int {
	nodeIdx := len(t.Nodes)
	imp := b.nodeImpurity(targets, indices)

	if (b.MaxDepth > 0 && depth >= b.MaxDepth) ||
		len(indices) < b.MinSamplesSplit ||
		imp == 0 {
		t.Nodes = append(t.Nodes, b.leaf(targets, indices))
		return nodeIdx
	}

	split := b.findSplit(X, targets, indices, imp, rng)
	if !split.ok {
		// Every candidate feature is constant within this subset.
		t.Nodes = append(t.Nodes, b.leaf(targets, indices))
		return nodeIdx
	}

	left, right := partition(X, indices, split.feature, split.threshold)
	if len(left) == 0 || len(right) == 0 {
		// A winning split with non-positive gain is still taken, but
		// never one that would produce an empty child.
		t.Nodes = append(t.Nodes, b.leaf(targets, indices))
		return nodeIdx
	}

	t.Nodes = append(t.Nodes, Node{
		LeftChild:    noChild,
		RightChild:   noChild,
		SplitFeature: split.feature,
		Threshold:    split.threshold,
		Gain:         split.gain,
		Samples:      len(indices),
	})

	l := b.grow(t, X, targets, left, depth+1, rng)
	r := b.grow(t, X, targets, right, depth+1, rng)
	t.Nodes[nodeIdx].LeftChild = l
	t.Nodes[nodeIdx].RightChild = r
	return nodeIdx
}

// nodeImpurity scores the label subset at a node with the builder's
// criterion.
func (b *Builder) nodeImpurity(targets []float64, indices []int) float64 {
	if b.Criterion.IsClassification() {
		counts := make([]int, b.NumClasses)
		for _, idx := range indices {
			counts[int(targets[idx])]++
		}
		return b.Criterion.impurityFromCounts(counts, len(indices))
	}
	var sum, sumSq float64
	for _, idx := range indices {
		t := targets[idx]
		sum += t
		sumSq += t * t
	}
	return varianceImpurity(sum, sumSq, len(indices))
}

// leaf materializes a leaf node for a sample subset: class counts plus
// the majority class for classification (ties to the lowest class id),
// the target mean for regression.
func (b *Builder) leaf(targets []float64, indices []int) Node {
	n := Node{LeftChild: noChild, RightChild: noChild, Samples: len(indices)}
	if b.Criterion.IsClassification() {
		counts := make([]float64, b.NumClasses)
		for _, idx := range indices {
			counts[int(targets[idx])]++
		}
		best := 0
		for c := 1; c < len(counts); c++ {
			if counts[c] > counts[best] {
				best = c
			}
		}
		n.ClassCounts = counts
		n.Value = float64(best)
		return n
	}
	sum := 0.0
	for _, idx := range indices {
		sum += targets[idx]
	}
	n.Value = sum / float64(len(indices))
	return n
}

// partition splits a sample subset by `value <= threshold`.
func partition(X mat.Matrix, indices []int, feature int, threshold float64) (left, right []int) {
	for _, idx := range indices {
		if X.At(idx, feature) <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}
