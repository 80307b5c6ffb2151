package ensemble

import (
	"math"
	"math/rand"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forester-ml/forester/dataset"
	"github.com/forester-ml/forester/pkg/errors"
	"github.com/forester-ml/forester/tree"
)

// twoClusters builds a linearly separable two-class problem with dims
// features, of which the first two are informative.
func twoClusters(t *testing.T, n, dims int, seed int64) (*dataset.Dataset, []float64) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float64, n)
	y := make([]float64, n)
	for i := range rows {
		row := make([]float64, dims)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		if i%2 == 1 {
			row[0] += 6
			row[1] += 6
			y[i] = 1
		}
		rows[i] = row
	}
	ds, err := dataset.FromRows(rows, y)
	require.NoError(t, err)
	return ds, y
}

func TestClassifier_FitPredict_Separable(t *testing.T) {
	ds, y := twoClusters(t, 80, 4, 1)

	clf := NewClassifier(
		WithNumTrees(20),
		WithSeed(1),
	)
	require.NoError(t, clf.Fit(ds))

	preds, err := clf.PredictBatch(ds)
	require.NoError(t, err)
	for i, p := range preds {
		assert.Equal(t, y[i], p, "sample %d", i)
	}
}

// Two points, one feature, opposite labels: a single unbounded tree
// reproduces each point's own label.
func TestClassifier_MemorizesTrivialDataset(t *testing.T) {
	ds, err := dataset.FromRows([][]float64{{0}, {1}}, []float64{0, 1})
	require.NoError(t, err)

	clf := NewExtraTreesClassifier(
		WithNumTrees(1),
		WithSeed(3),
	)
	require.NoError(t, clf.Fit(ds))

	p0, err := clf.Predict([]float64{0})
	require.NoError(t, err)
	p1, err := clf.Predict([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, p0)
	assert.Equal(t, 1.0, p1)
}

// Identical configuration, dataset and seed must produce bit-identical
// forests regardless of scheduling.
func TestForest_DeterministicForFixedSeed(t *testing.T) {
	ds, _ := twoClusters(t, 200, 8, 5)

	build := func() *Classifier {
		clf := NewExtraTreesClassifier(
			WithNumTrees(32),
			WithBootstrap(true),
			WithOOB(true),
			WithSeed(77),
		)
		require.NoError(t, clf.Fit(ds))
		return clf
	}
	c1, c2 := build(), build()
	if !reflect.DeepEqual(c1.Forest, c2.Forest) {
		t.Fatal("forests differ for identical seed and configuration")
	}
}

func TestClassifier_SingleLabelDataset(t *testing.T) {
	rows := [][]float64{{1, 2}, {3, 4}, {5, 6}, {7, 8}}
	y := []float64{7, 7, 7, 7}
	ds, err := dataset.FromRows(rows, y)
	require.NoError(t, err)

	clf := NewClassifier(WithNumTrees(5), WithSeed(2))
	require.NoError(t, clf.Fit(ds))

	for _, tr := range clf.Forest.Trees {
		assert.Len(t, tr.Nodes, 1, "single-label data must grow single-leaf trees")
	}
	p, err := clf.Predict([]float64{-100, 100})
	require.NoError(t, err)
	assert.Equal(t, 7.0, p)

	// No internal node anywhere: importances are all zero.
	imp, err := clf.FeatureImportance()
	require.NoError(t, err)
	for _, w := range imp {
		assert.Zero(t, w)
	}
}

func TestFit_ConfigErrors(t *testing.T) {
	ds, _ := twoClusters(t, 20, 2, 9)

	cases := []struct {
		name string
		clf  *Classifier
	}{
		{"zero trees", NewClassifier(WithNumTrees(0))},
		{"subset exceeds dims", NewClassifier(WithSubsetSize(10))},
		{"oob without bootstrap", NewClassifier(WithBootstrap(false), WithOOB(true))},
		{"regression criterion", NewClassifier(WithCriterion(tree.MSE))},
		{"zero min samples", NewClassifier(WithMinSamplesSplit(0))},
	}
	for _, c := range cases {
		err := c.clf.Fit(ds)
		var cfgErr *errors.ConfigError
		assert.True(t, errors.As(err, &cfgErr), "%s: expected ConfigError, got %v", c.name, err)
		assert.False(t, c.clf.IsFitted(), "%s: failed fit must not mark the model fitted", c.name)
	}
}

func TestClassifier_NotFittedAndDimensionErrors(t *testing.T) {
	clf := NewClassifier()
	_, err := clf.Predict([]float64{1, 2})
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf), "expected NotFittedError, got %v", err)

	ds, _ := twoClusters(t, 20, 3, 4)
	require.NoError(t, clf.Fit(ds))

	_, err = clf.Predict([]float64{1, 2})
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim), "expected DimensionError, got %v", err)
}

func TestFeatureImportance_NormalizedAndInformative(t *testing.T) {
	ds, _ := twoClusters(t, 120, 5, 8)

	clf := NewClassifier(WithNumTrees(30), WithSeed(8))
	require.NoError(t, clf.Fit(ds))

	imp, err := clf.FeatureImportance()
	require.NoError(t, err)
	require.Len(t, imp, 5)

	sum := 0.0
	for _, w := range imp {
		assert.GreaterOrEqual(t, w, 0.0)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	// Features 0 and 1 carry the signal; the noise features must not
	// dominate them.
	assert.Greater(t, imp[0]+imp[1], imp[2]+imp[3]+imp[4])
}

func TestClassifier_GobRoundTrip(t *testing.T) {
	ds, _ := twoClusters(t, 60, 4, 12)
	heldOut, _ := twoClusters(t, 40, 4, 13)

	clf := NewClassifier(WithNumTrees(15), WithSeed(12))
	require.NoError(t, clf.Fit(ds))

	path := filepath.Join(t.TempDir(), "forest.gob")
	require.NoError(t, clf.Save(path))

	loaded := &Classifier{}
	require.NoError(t, loaded.Load(path))
	assert.True(t, loaded.IsFitted())

	want, err := clf.PredictBatch(heldOut)
	require.NoError(t, err)
	got, err := loaded.PredictBatch(heldOut)
	require.NoError(t, err)
	assert.Equal(t, want, got, "round-tripped model must predict identically")
}

func TestClassifier_OOBError(t *testing.T) {
	ds, _ := twoClusters(t, 100, 4, 21)

	clf := NewClassifier(
		WithNumTrees(40),
		WithOOB(true),
		WithSeed(21),
	)
	require.NoError(t, clf.Fit(ds))

	oob, err := clf.OOBError()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, oob, 0.0)
	assert.Less(t, oob, 0.2, "separable data must have low out-of-bag error")

	noOOB := NewClassifier(WithNumTrees(5), WithSeed(1))
	require.NoError(t, noOOB.Fit(ds))
	_, err = noOOB.OOBError()
	assert.Error(t, err)
}

func TestRegressor_FitPredict(t *testing.T) {
	rows := [][]float64{{1}, {2}, {3}, {7}, {8}, {9}}
	y := []float64{5, 5, 5, 2, 2, 2}
	ds, err := dataset.FromRows(rows, y)
	require.NoError(t, err)

	reg := NewExtraTreesRegressor(
		WithNumTrees(50),
		WithSeed(4),
	)
	require.NoError(t, reg.Fit(ds))

	left, err := reg.Predict([]float64{-1000})
	require.NoError(t, err)
	assert.Equal(t, 5.0, left)

	right, err := reg.Predict([]float64{1000})
	require.NoError(t, err)
	assert.Equal(t, 2.0, right)

	mid, err := reg.Predict([]float64{5})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, mid, 2.0)
	assert.LessOrEqual(t, mid, 5.0)
}

func TestRegressor_OOBError(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	n := 200
	rows := make([][]float64, n)
	y := make([]float64, n)
	for i := range rows {
		x := rng.Float64() * 10
		rows[i] = []float64{x}
		y[i] = 3 * x
	}
	ds, err := dataset.FromRows(rows, y)
	require.NoError(t, err)

	reg := NewRegressor(
		WithNumTrees(40),
		WithOOB(true),
		WithSeed(31),
	)
	require.NoError(t, reg.Fit(ds))

	oob, err := reg.OOBError()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, oob, 0.0)
	assert.Less(t, oob, 1.0, "dense noiseless linear data must have small out-of-bag MSE")
}

func TestRotationForestClassifier(t *testing.T) {
	ds, y := twoClusters(t, 150, 6, 17)

	clf := NewRotationForestClassifier(
		WithNumTrees(25),
		WithSeed(17),
	)
	require.NoError(t, clf.Fit(ds))

	// Every tree must carry its rotation for prediction-time reuse.
	for _, rot := range clf.Forest.Rotations {
		require.NotNil(t, rot)
		assert.Equal(t, 6, rot.Dim)
	}

	preds, err := clf.PredictBatch(ds)
	require.NoError(t, err)
	correct := 0
	for i, p := range preds {
		if p == y[i] {
			correct++
		}
	}
	assert.GreaterOrEqual(t, float64(correct)/float64(len(y)), 0.95)
}

func TestClassifier_PredictProba(t *testing.T) {
	ds, _ := twoClusters(t, 60, 3, 23)

	clf := NewClassifier(WithNumTrees(10), WithSeed(23))
	require.NoError(t, clf.Fit(ds))

	x := ds.Row(0)
	proba, err := clf.PredictProba(x)
	require.NoError(t, err)
	require.Len(t, proba, 2)

	sum := 0.0
	best := 0
	for i, p := range proba {
		assert.GreaterOrEqual(t, p, 0.0)
		sum += p
		if p > proba[best] {
			best = i
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	pred, err := clf.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, clf.Classes()[best], pred, "Predict must agree with the proba argmax")
}

// Labels need not be contiguous class indices; the model maps them back
// to their original values.
func TestClassifier_NonContiguousLabels(t *testing.T) {
	rows := [][]float64{{0}, {0.1}, {0.2}, {5}, {5.1}, {5.2}}
	y := []float64{3, 3, 3, 11, 11, 11}
	ds, err := dataset.FromRows(rows, y)
	require.NoError(t, err)

	clf := NewClassifier(WithNumTrees(9), WithSeed(2))
	require.NoError(t, clf.Fit(ds))

	assert.Equal(t, []float64{3, 11}, clf.Classes())

	p, err := clf.Predict([]float64{0.05})
	require.NoError(t, err)
	assert.Equal(t, 3.0, p)
	p, err = clf.Predict([]float64{5.05})
	require.NoError(t, err)
	assert.Equal(t, 11.0, p)
}

func TestPredictBatch_OrderPreserving(t *testing.T) {
	ds, _ := twoClusters(t, 50, 4, 29)

	clf := NewClassifier(WithNumTrees(12), WithSeed(29))
	require.NoError(t, clf.Fit(ds))

	batch, err := clf.PredictBatch(ds)
	require.NoError(t, err)
	for i := 0; i < ds.Len(); i++ {
		single, err := clf.Predict(ds.Row(i))
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "row %d", i)
	}
}

// More trees should not make the out-of-bag estimate worse on average.
// This is statistical, so it is checked with a generous margin.
func TestOOB_ImprovesWithMoreTrees(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}
	ds, _ := twoClusters(t, 150, 6, 41)

	oobAt := func(numTrees int) float64 {
		clf := NewClassifier(WithNumTrees(numTrees), WithOOB(true), WithSeed(41))
		require.NoError(t, clf.Fit(ds))
		oob, err := clf.OOBError()
		require.NoError(t, err)
		return oob
	}
	few := oobAt(3)
	many := oobAt(60)
	assert.LessOrEqual(t, many, few+0.05)
}

func TestRegressor_MemorizesTrivialDataset(t *testing.T) {
	ds, err := dataset.FromRows([][]float64{{0}, {1}}, []float64{-1, 1})
	require.NoError(t, err)

	reg := NewExtraTreesRegressor(WithNumTrees(1), WithSeed(6))
	require.NoError(t, reg.Fit(ds))

	p0, err := reg.Predict([]float64{0})
	require.NoError(t, err)
	p1, err := reg.Predict([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, -1.0, p0)
	assert.Equal(t, 1.0, p1)
}

func TestSubsetSizeResolution(t *testing.T) {
	cfg := defaultConfig(tree.Gini, tree.BestSplit, true)
	assert.Equal(t, 3, cfg.resolveSubsetSize(9), "default is floor(sqrt(D))")
	assert.Equal(t, 1, cfg.resolveSubsetSize(1))

	cfg.SubsetSize = AllFeatures
	assert.Equal(t, 9, cfg.resolveSubsetSize(9))

	cfg.SubsetSize = 4
	assert.Equal(t, 4, cfg.resolveSubsetSize(9))
}

func TestRegressor_GobRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(51))
	rows := make([][]float64, 80)
	y := make([]float64, 80)
	for i := range rows {
		x := rng.Float64() * 4
		rows[i] = []float64{x, rng.Float64()}
		y[i] = math.Exp(-x)
	}
	ds, err := dataset.FromRows(rows, y)
	require.NoError(t, err)

	reg := NewRegressor(WithNumTrees(10), WithSeed(51))
	require.NoError(t, reg.Fit(ds))

	path := filepath.Join(t.TempDir(), "regressor.gob")
	require.NoError(t, reg.Save(path))

	loaded := &Regressor{}
	require.NoError(t, loaded.Load(path))

	want, err := reg.PredictBatch(ds)
	require.NoError(t, err)
	got, err := loaded.PredictBatch(ds)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
