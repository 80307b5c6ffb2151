package ensemble

import (
	"github.com/forester-ml/forester/core/model"
	"github.com/forester-ml/forester/core/parallel"
	"github.com/forester-ml/forester/dataset"
	"github.com/forester-ml/forester/pkg/errors"
	"github.com/forester-ml/forester/tree"
)

// Regressor is a forest of regression trees. Predictions are the
// arithmetic mean of the per-tree leaf means.
type Regressor struct {
	model.BaseEstimator
	Forest Forest
}

var (
	_ model.Regressor   = (*Regressor)(nil)
	_ model.Persistable = (*Regressor)(nil)
)

// NewRegressor builds a CART-style random forest regressor: best-split
// search, bootstrap sampling, variance reduction.
func NewRegressor(opts ...Option) *Regressor {
	cfg := defaultConfig(tree.MSE, tree.BestSplit, true)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Regressor{Forest: Forest{Conf: cfg}}
}

// NewExtraTreesRegressor builds an extremely-randomized trees
// regressor: one random threshold per candidate feature, no bootstrap.
func NewExtraTreesRegressor(opts ...Option) *Regressor {
	cfg := defaultConfig(tree.MSE, tree.RandomSplit, false)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Regressor{Forest: Forest{Conf: cfg}}
}

// Fit trains the forest. Configuration errors surface before any tree
// is grown.
func (r *Regressor) Fit(ds *dataset.Dataset) error {
	r.Reset()
	if err := r.Forest.fit(ds, false); err != nil {
		return err
	}
	r.SetFitted()
	return nil
}

// Predict returns the forest mean for a single feature vector.
func (r *Regressor) Predict(x []float64) (float64, error) {
	if !r.IsFitted() {
		return 0, errors.NewNotFittedError("Regressor", "Predict")
	}
	if err := r.Forest.checkVector("Regressor.Predict", x); err != nil {
		return 0, err
	}
	return r.Forest.mean(x), nil
}

// PredictBatch predicts one value per dataset row, in row order.
func (r *Regressor) PredictBatch(ds *dataset.Dataset) ([]float64, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("Regressor", "PredictBatch")
	}
	if ds.Features() != r.Forest.NumFeatures {
		return nil, errors.NewDimensionError("Regressor.PredictBatch", r.Forest.NumFeatures, ds.Features(), 1)
	}
	out := make([]float64, ds.Len())
	parallel.ParallelizeWithThreshold(ds.Len(), batchParallelThreshold, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = r.Forest.mean(ds.Row(i))
		}
	})
	return out, nil
}

// FeatureImportance returns the normalized per-feature importance
// weights of the trained forest.
func (r *Regressor) FeatureImportance() ([]float64, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("Regressor", "FeatureImportance")
	}
	return r.Forest.FeatureImportance(), nil
}

// OOBError returns the out-of-bag mean squared error. It is only
// available when the forest was fitted with WithOOB(true).
func (r *Regressor) OOBError() (float64, error) {
	if !r.IsFitted() {
		return 0, errors.NewNotFittedError("Regressor", "OOBError")
	}
	if !r.Forest.HasOOB {
		return 0, errors.New("out-of-bag estimate not computed; fit with WithOOB(true)")
	}
	return r.Forest.OOBScore, nil
}

// Save writes the trained forest to a file with encoding/gob.
func (r *Regressor) Save(path string) error {
	if !r.IsFitted() {
		return errors.NewNotFittedError("Regressor", "Save")
	}
	return model.SaveModel(&r.Forest, path)
}

// Load reads a forest written by Save and marks the model fitted.
func (r *Regressor) Load(path string) error {
	if err := model.LoadModel(&r.Forest, path); err != nil {
		return err
	}
	r.SetFitted()
	return nil
}
