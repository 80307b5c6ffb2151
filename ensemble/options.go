package ensemble

import (
	"math"

	"github.com/forester-ml/forester/pkg/errors"
	"github.com/forester-ml/forester/rotation"
	"github.com/forester-ml/forester/tree"
)

// AllFeatures requests the full feature set as the per-node candidate
// subset, disabling random-subspace sampling.
const AllFeatures = -1

// Default hyperparameters.
const (
	DefaultNumTrees        = 100
	DefaultMinSamplesSplit = 2
)

// Config holds the forest hyperparameters. It is immutable once Fit
// starts and is persisted with the model.
type Config struct {
	NumTrees        int
	MaxDepth        int // 0 means unbounded
	MinSamplesSplit int
	// SubsetSize is the number of candidate features drawn per node:
	// 0 means floor(sqrt(D)), AllFeatures means D.
	SubsetSize        int
	Bootstrap         bool
	Strategy          tree.SplitStrategy
	Criterion         tree.Criterion
	Rotation          bool
	RotationGroupSize int
	ComputeOOB        bool
	Seed              int64
}

// Option configures a forest before training.
type Option func(*Config)

// WithNumTrees sets the number of trees grown by Fit.
func WithNumTrees(n int) Option {
	return func(c *Config) { c.NumTrees = n }
}

// WithMaxDepth limits tree depth. Zero grows unbounded trees.
func WithMaxDepth(depth int) Option {
	return func(c *Config) { c.MaxDepth = depth }
}

// WithMinSamplesSplit sets the smallest node size eligible for a split.
func WithMinSamplesSplit(n int) Option {
	return func(c *Config) { c.MinSamplesSplit = n }
}

// WithSubsetSize sets the per-node candidate feature count. Pass
// AllFeatures to consider every feature at every node.
func WithSubsetSize(n int) Option {
	return func(c *Config) { c.SubsetSize = n }
}

// WithBootstrap toggles sampling the training set with replacement
// before growing each tree.
func WithBootstrap(enabled bool) Option {
	return func(c *Config) { c.Bootstrap = enabled }
}

// WithStrategy selects the split search strategy.
func WithStrategy(s tree.SplitStrategy) Option {
	return func(c *Config) { c.Strategy = s }
}

// WithCriterion selects the impurity criterion.
func WithCriterion(crit tree.Criterion) Option {
	return func(c *Config) { c.Criterion = crit }
}

// WithRotation toggles the per-tree rotation transform.
func WithRotation(enabled bool) Option {
	return func(c *Config) { c.Rotation = enabled }
}

// WithRotationGroupSize sets the feature-group size of the rotation
// transform.
func WithRotationGroupSize(n int) Option {
	return func(c *Config) { c.RotationGroupSize = n }
}

// WithOOB toggles the out-of-bag error estimate. It requires bootstrap
// sampling.
func WithOOB(enabled bool) Option {
	return func(c *Config) { c.ComputeOOB = enabled }
}

// WithSeed fixes the random seed. Two fits with the same seed, dataset
// and configuration produce bit-identical forests at any worker count.
func WithSeed(seed int64) Option {
	return func(c *Config) { c.Seed = seed }
}

// validate checks the configuration against the dataset dimensionality.
// It runs before any training work, so an invalid configuration never
// touches the data.
func (c *Config) validate(dims int, classification bool) error {
	if c.NumTrees <= 0 {
		return errors.NewConfigError("num_trees", "must be positive", c.NumTrees)
	}
	if c.MinSamplesSplit <= 0 {
		return errors.NewConfigError("min_samples_split", "must be positive", c.MinSamplesSplit)
	}
	if c.MaxDepth < 0 {
		return errors.NewConfigError("max_depth", "must be zero (unbounded) or positive", c.MaxDepth)
	}
	if c.SubsetSize > dims {
		return errors.NewConfigError("feature_subset_size", "exceeds the dataset dimensionality", c.SubsetSize)
	}
	if c.SubsetSize < AllFeatures {
		return errors.NewConfigError("feature_subset_size", "must be AllFeatures, 0 (sqrt) or positive", c.SubsetSize)
	}
	if classification && !c.Criterion.IsClassification() {
		return errors.NewConfigError("criterion", "regression criterion on a classifier", c.Criterion.String())
	}
	if !classification && c.Criterion.IsClassification() {
		return errors.NewConfigError("criterion", "classification criterion on a regressor", c.Criterion.String())
	}
	if c.ComputeOOB && !c.Bootstrap {
		return errors.NewConfigError("oob", "out-of-bag estimation requires bootstrap sampling", c.ComputeOOB)
	}
	if c.RotationGroupSize < 0 {
		return errors.NewConfigError("rotation_group_size", "must be zero (default) or positive", c.RotationGroupSize)
	}
	return nil
}

// resolveSubsetSize maps the configured subset size onto a concrete
// per-node feature count for a dataset with dims features.
func (c *Config) resolveSubsetSize(dims int) int {
	switch {
	case c.SubsetSize == AllFeatures:
		return dims
	case c.SubsetSize == 0:
		k := int(math.Sqrt(float64(dims)))
		if k < 1 {
			k = 1
		}
		return k
	default:
		return c.SubsetSize
	}
}

func (c *Config) rotationGroupSize() int {
	if c.RotationGroupSize == 0 {
		return rotation.DefaultGroupSize
	}
	return c.RotationGroupSize
}

func defaultConfig(crit tree.Criterion, strategy tree.SplitStrategy, bootstrap bool) Config {
	return Config{
		NumTrees:        DefaultNumTrees,
		MinSamplesSplit: DefaultMinSamplesSplit,
		Criterion:       crit,
		Strategy:        strategy,
		Bootstrap:       bootstrap,
	}
}
