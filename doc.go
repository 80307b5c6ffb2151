// Package forester provides decision-tree ensemble learning for Go.
//
// The library trains random forests, extremely-randomized trees
// (extra trees) and rotation forests for both classification and
// regression. Training is batch, single-process and multi-threaded:
// trees are grown in parallel over all CPUs while results stay
// bit-reproducible for a fixed random seed and worker count.
//
// The main entry points live in the ensemble package:
//
//	clf := ensemble.NewExtraTreesClassifier(
//	    ensemble.WithNumTrees(100),
//	    ensemble.WithSeed(42),
//	)
//	err := clf.Fit(ds)
//	label, err := clf.Predict(sample)
//
// Feature matrices are loaded through the dataset package, which
// validates dimensionality and rejects non-finite values up front.
// Trained forests persist with encoding/gob via core/model.
package forester
