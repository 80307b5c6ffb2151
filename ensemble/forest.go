// Package ensemble orchestrates forest training: bootstrap and
// random-subspace sampling, optional rotation transforms, parallel tree
// growth and the aggregation of per-tree predictions.
package ensemble

import (
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/forester-ml/forester/core/parallel"
	"github.com/forester-ml/forester/dataset"
	"github.com/forester-ml/forester/pkg/errors"
	"github.com/forester-ml/forester/pkg/log"
	"github.com/forester-ml/forester/rotation"
	"github.com/forester-ml/forester/tree"
)

// batchParallelThreshold is the row count below which batch prediction
// stays sequential.
const batchParallelThreshold = 256

// Forest is the trained model shared by the classifier and regressor
// front ends: the grown trees, their rotation matrices and the
// hyperparameters that produced them. All fields are exported for gob.
type Forest struct {
	Trees       []*tree.Tree
	Rotations   []*rotation.Matrix // per-tree, nil entries when rotation is off
	NumFeatures int
	ClassValues []float64 // distinct labels ascending; nil for regression
	Conf        Config
	OOBScore    float64
	HasOOB      bool
}

// fit grows the configured number of trees over the dataset. Trees are
// built in parallel, each from a private deterministic random stream
// seeded by (Seed, tree index) and written into its preallocated slot,
// so the result does not depend on scheduling or worker count.
func (f *Forest) fit(ds *dataset.Dataset, classification bool) error {
	dims := ds.Features()
	if err := f.Conf.validate(dims, classification); err != nil {
		return err
	}
	if !ds.HasLabels() {
		return errors.NewValueError("ensemble.Fit", "dataset has no labels")
	}

	start := time.Now()
	n := ds.Len()
	cfg := f.Conf

	targets, classValues := encodeTargets(ds.Labels(), classification)

	builder := tree.Builder{
		Criterion:       cfg.Criterion,
		Strategy:        cfg.Strategy,
		MaxDepth:        cfg.MaxDepth,
		MinSamplesSplit: cfg.MinSamplesSplit,
		SubsetSize:      cfg.resolveSubsetSize(dims),
		NumClasses:      len(classValues),
	}

	trees := make([]*tree.Tree, cfg.NumTrees)
	// Allocated only when rotation is on: gob cannot encode nil
	// pointers, so an all-nil slice would break persistence.
	var rots []*rotation.Matrix
	if cfg.Rotation {
		rots = make([]*rotation.Matrix, cfg.NumTrees)
	}

	// Out-of-bag votes are recorded per tree and merged after the join
	// barrier; workers never share mutable state.
	var oobIdx [][]int
	var oobPred [][]float64
	if cfg.ComputeOOB {
		oobIdx = make([][]int, cfg.NumTrees)
		oobPred = make([][]float64, cfg.NumTrees)
	}

	X := ds.Matrix()
	parallel.Parallelize(cfg.NumTrees, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			rng := rand.New(rand.NewSource(cfg.Seed + int64(i)))
			indices, inBag := drawSample(n, cfg.Bootstrap, rng)

			trainX := X
			if cfg.Rotation {
				rot := rotation.Fit(X, cfg.rotationGroupSize(), i, rng)
				rots[i] = rot
				trainX = rot.ApplyAll(X)
			}

			trees[i] = builder.Grow(trainX, targets, indices, rng)

			if cfg.ComputeOOB {
				for s := 0; s < n; s++ {
					if inBag[s] {
						continue
					}
					oobIdx[i] = append(oobIdx[i], s)
					oobPred[i] = append(oobPred[i], trees[i].Predict(rowOf(trainX, s)))
				}
			}
		}
	})

	f.Trees = trees
	f.Rotations = rots
	f.NumFeatures = dims
	f.ClassValues = classValues
	if cfg.ComputeOOB {
		f.OOBScore = mergeOOB(targets, len(classValues), oobIdx, oobPred)
		f.HasOOB = true
	}

	logger := log.GetLoggerWithName("ensemble.forest")
	logger.Debug("forest fitted",
		log.SamplesKey, n,
		log.FeaturesKey, dims,
		log.TreesKey, cfg.NumTrees,
		log.SeedKey, cfg.Seed,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// encodeTargets maps raw labels onto tree targets: compact ascending
// class indices for classification, the labels themselves for
// regression.
func encodeTargets(labels []float64, classification bool) (targets, classValues []float64) {
	if !classification {
		return labels, nil
	}
	seen := make(map[float64]struct{}, 8)
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	classValues = make([]float64, 0, len(seen))
	for l := range seen {
		classValues = append(classValues, l)
	}
	sort.Float64s(classValues)
	index := make(map[float64]int, len(classValues))
	for i, l := range classValues {
		index[l] = i
	}
	targets = make([]float64, len(labels))
	for i, l := range labels {
		targets[i] = float64(index[l])
	}
	return targets, classValues
}

// drawSample returns the training indices for one tree: a bootstrap
// draw with replacement of size n, or the full index set.
func drawSample(n int, bootstrap bool, rng *rand.Rand) (indices []int, inBag []bool) {
	indices = make([]int, n)
	inBag = make([]bool, n)
	if !bootstrap {
		for i := range indices {
			indices[i] = i
			inBag[i] = true
		}
		return indices, inBag
	}
	for i := range indices {
		s := rng.Intn(n)
		indices[i] = s
		inBag[s] = true
	}
	return indices, inBag
}

// mergeOOB folds the per-tree out-of-bag predictions into one error
// estimate: misclassification rate for classification, mean squared
// error for regression. Samples never left out of bag are skipped.
func mergeOOB(targets []float64, numClasses int, oobIdx [][]int, oobPred [][]float64) float64 {
	n := len(targets)
	if numClasses > 0 {
		votes := make([]int, n*numClasses)
		for t := range oobIdx {
			for k, s := range oobIdx[t] {
				votes[s*numClasses+int(oobPred[t][k])]++
			}
		}
		wrong, counted := 0, 0
		for s := 0; s < n; s++ {
			row := votes[s*numClasses : (s+1)*numClasses]
			best, total := 0, 0
			for c, v := range row {
				total += v
				if v > row[best] {
					best = c
				}
			}
			if total == 0 {
				continue
			}
			counted++
			if best != int(targets[s]) {
				wrong++
			}
		}
		if counted == 0 {
			return 0
		}
		return float64(wrong) / float64(counted)
	}

	sums := make([]float64, n)
	counts := make([]int, n)
	for t := range oobIdx {
		for k, s := range oobIdx[t] {
			sums[s] += oobPred[t][k]
			counts[s]++
		}
	}
	var sse float64
	counted := 0
	for s := 0; s < n; s++ {
		if counts[s] == 0 {
			continue
		}
		counted++
		d := sums[s]/float64(counts[s]) - targets[s]
		sse += d * d
	}
	if counted == 0 {
		return 0
	}
	return sse / float64(counted)
}

// rowOf extracts row s of a matrix without copying when possible.
func rowOf(X mat.Matrix, s int) []float64 {
	if d, ok := X.(*mat.Dense); ok {
		return d.RawRowView(s)
	}
	return mat.Row(nil, s, X)
}

// treeInput maps a sample into tree i's input space, applying the
// tree's stored rotation when present.
func (f *Forest) treeInput(i int, x []float64) []float64 {
	if len(f.Rotations) == 0 {
		return x
	}
	if rot := f.Rotations[i]; rot != nil {
		return rot.Apply(x)
	}
	return x
}

// checkVector validates a prediction input against the trained
// dimensionality.
func (f *Forest) checkVector(op string, x []float64) error {
	if len(x) != f.NumFeatures {
		return errors.NewDimensionError(op, f.NumFeatures, len(x), 1)
	}
	return nil
}

// votes collects one majority vote per tree into a per-class tally.
func (f *Forest) votes(x []float64) []float64 {
	tally := make([]float64, len(f.ClassValues))
	for i, t := range f.Trees {
		tally[int(t.Predict(f.treeInput(i, x)))]++
	}
	return tally
}

// mean averages the per-tree regression outputs.
func (f *Forest) mean(x []float64) float64 {
	sum := 0.0
	for i, t := range f.Trees {
		sum += t.Predict(f.treeInput(i, x))
	}
	return sum / float64(len(f.Trees))
}

// FeatureImportance returns the per-feature split gain accumulated over
// every tree and node, weighted by the share of samples each node saw
// and normalized to sum to one. A forest with no internal node (every
// tree a single leaf) yields all zeros.
func (f *Forest) FeatureImportance() []float64 {
	imp := make([]float64, f.NumFeatures)
	for _, t := range f.Trees {
		if len(t.Nodes) == 0 {
			continue
		}
		root := float64(t.Nodes[0].Samples)
		for i := range t.Nodes {
			nd := &t.Nodes[i]
			if nd.IsLeaf() || nd.Gain <= 0 {
				continue
			}
			imp[nd.SplitFeature] += nd.Gain * float64(nd.Samples) / root
		}
	}
	total := 0.0
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for i := range imp {
			imp[i] /= total
		}
	}
	return imp
}
