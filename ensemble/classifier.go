package ensemble

import (
	"github.com/forester-ml/forester/core/model"
	"github.com/forester-ml/forester/core/parallel"
	"github.com/forester-ml/forester/dataset"
	"github.com/forester-ml/forester/pkg/errors"
	"github.com/forester-ml/forester/tree"
)

// Classifier is a forest of classification trees. Predictions are
// aggregated by majority vote with ties broken toward the lowest class
// id.
type Classifier struct {
	model.BaseEstimator
	Forest Forest
}

var (
	_ model.Classifier  = (*Classifier)(nil)
	_ model.Persistable = (*Classifier)(nil)
)

// NewClassifier builds a CART-style random forest classifier:
// best-split search, bootstrap sampling, Gini impurity.
func NewClassifier(opts ...Option) *Classifier {
	cfg := defaultConfig(tree.Gini, tree.BestSplit, true)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Classifier{Forest: Forest{Conf: cfg}}
}

// NewExtraTreesClassifier builds an extremely-randomized trees
// classifier: one random threshold per candidate feature and no
// bootstrap, trading a little bias for variance and speed.
func NewExtraTreesClassifier(opts ...Option) *Classifier {
	cfg := defaultConfig(tree.Gini, tree.RandomSplit, false)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Classifier{Forest: Forest{Conf: cfg}}
}

// NewRotationForestClassifier builds a rotation-forest classifier:
// every tree trains on a group-wise PCA rotation of the feature space.
func NewRotationForestClassifier(opts ...Option) *Classifier {
	cfg := defaultConfig(tree.Gini, tree.BestSplit, true)
	cfg.Rotation = true
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Classifier{Forest: Forest{Conf: cfg}}
}

// Fit trains the forest. Configuration errors surface before any tree
// is grown; a successful call leaves the model immutable.
func (c *Classifier) Fit(ds *dataset.Dataset) error {
	c.Reset()
	if err := c.Forest.fit(ds, true); err != nil {
		return err
	}
	c.SetFitted()
	return nil
}

// Predict returns the majority-vote label for a single feature vector.
func (c *Classifier) Predict(x []float64) (float64, error) {
	if !c.IsFitted() {
		return 0, errors.NewNotFittedError("Classifier", "Predict")
	}
	if err := c.Forest.checkVector("Classifier.Predict", x); err != nil {
		return 0, err
	}
	return c.Forest.ClassValues[argmax(c.Forest.votes(x))], nil
}

// PredictProba returns the vote distribution over Classes for a single
// feature vector.
func (c *Classifier) PredictProba(x []float64) ([]float64, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("Classifier", "PredictProba")
	}
	if err := c.Forest.checkVector("Classifier.PredictProba", x); err != nil {
		return nil, err
	}
	tally := c.Forest.votes(x)
	total := float64(len(c.Forest.Trees))
	for i := range tally {
		tally[i] /= total
	}
	return tally, nil
}

// PredictBatch predicts one label per dataset row, in row order. Rows
// are scored in parallel for large batches.
func (c *Classifier) PredictBatch(ds *dataset.Dataset) ([]float64, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("Classifier", "PredictBatch")
	}
	if ds.Features() != c.Forest.NumFeatures {
		return nil, errors.NewDimensionError("Classifier.PredictBatch", c.Forest.NumFeatures, ds.Features(), 1)
	}
	out := make([]float64, ds.Len())
	parallel.ParallelizeWithThreshold(ds.Len(), batchParallelThreshold, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = c.Forest.ClassValues[argmax(c.Forest.votes(ds.Row(i)))]
		}
	})
	return out, nil
}

// Classes returns the distinct labels seen during fitting, ascending.
func (c *Classifier) Classes() []float64 {
	return c.Forest.ClassValues
}

// FeatureImportance returns the normalized per-feature importance
// weights of the trained forest.
func (c *Classifier) FeatureImportance() ([]float64, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("Classifier", "FeatureImportance")
	}
	return c.Forest.FeatureImportance(), nil
}

// OOBError returns the out-of-bag misclassification rate. It is only
// available when the forest was fitted with WithOOB(true).
func (c *Classifier) OOBError() (float64, error) {
	if !c.IsFitted() {
		return 0, errors.NewNotFittedError("Classifier", "OOBError")
	}
	if !c.Forest.HasOOB {
		return 0, errors.New("out-of-bag estimate not computed; fit with WithOOB(true)")
	}
	return c.Forest.OOBScore, nil
}

// Save writes the trained forest to a file with encoding/gob.
func (c *Classifier) Save(path string) error {
	if !c.IsFitted() {
		return errors.NewNotFittedError("Classifier", "Save")
	}
	return model.SaveModel(&c.Forest, path)
}

// Load reads a forest written by Save and marks the model fitted.
func (c *Classifier) Load(path string) error {
	if err := model.LoadModel(&c.Forest, path); err != nil {
		return err
	}
	c.SetFitted()
	return nil
}

// argmax returns the index of the largest tally, ties to the lowest
// index.
func argmax(tally []float64) int {
	best := 0
	for i := 1; i < len(tally); i++ {
		if tally[i] > tally[best] {
			best = i
		}
	}
	return best
}
