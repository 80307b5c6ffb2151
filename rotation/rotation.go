// Package rotation implements the per-tree linear transform of the
// rotation-forest variant: the feature set is partitioned into random
// disjoint groups, a principal-component basis is fitted per group on a
// bootstrap subsample, and the group bases are assembled into one
// full-dimension rotation matrix.
package rotation

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/forester-ml/forester/pkg/errors"
)

// DefaultGroupSize is the feature-group size used when none is
// configured, per the standard rotation-forest formulation.
const DefaultGroupSize = 3

// subsampleFraction is the share of rows bootstrapped per group before
// fitting its principal-component basis.
const subsampleFraction = 0.75

// Matrix is a D x D rotation applied to samples before tree descent.
// Fields are exported for gob; Data is row-major.
type Matrix struct {
	Dim  int
	Data []float64
}

// Identity returns the identity rotation of the given dimension.
func Identity(dim int) *Matrix {
	m := &Matrix{Dim: dim, Data: make([]float64, dim*dim)}
	for i := 0; i < dim; i++ {
		m.Data[i*dim+i] = 1
	}
	return m
}

// Apply rotates a single feature vector, returning a new slice.
func (m *Matrix) Apply(x []float64) []float64 {
	out := make([]float64, m.Dim)
	for i, v := range x {
		if v == 0 {
			continue
		}
		row := m.Data[i*m.Dim : (i+1)*m.Dim]
		for j, r := range row {
			out[j] += v * r
		}
	}
	return out
}

// ApplyAll rotates every row of a feature matrix: X' = X R.
func (m *Matrix) ApplyAll(X mat.Matrix) *mat.Dense {
	rows, _ := X.Dims()
	out := mat.NewDense(rows, m.Dim, nil)
	out.Mul(X, mat.NewDense(m.Dim, m.Dim, m.Data))
	return out
}

// Fit builds the rotation for one tree. Feature indices are shuffled
// and cut into disjoint groups of groupSize (the last group may be
// smaller); each group gets the principal-component basis of a
// bootstrap subsample restricted to its columns. A group whose
// covariance is singular degrades to an identity block with a warning
// rather than aborting the tree. rng must be the tree's private stream.
func Fit(X mat.Matrix, groupSize, treeIndex int, rng *rand.Rand) *Matrix {
	rows, dims := X.Dims()
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}

	m := Identity(dims)
	perm := rng.Perm(dims)

	for start := 0; start < dims; start += groupSize {
		end := start + groupSize
		if end > dims {
			end = dims
		}
		group := perm[start:end]

		basis := groupBasis(X, rows, group, rng)
		if basis == nil {
			errors.Warn(errors.NewDegenerateRotationWarning(treeIndex, start/groupSize,
				"singular covariance in feature group"))
			continue // identity block stays in place
		}
		for a, fa := range group {
			for b, fb := range group {
				m.Data[fa*m.Dim+fb] = basis.At(a, b)
			}
		}
	}
	return m
}

// groupBasis fits the principal-component basis of a bootstrap
// subsample restricted to the group's columns. It returns nil when the
// decomposition fails or yields fewer components than features.
func groupBasis(X mat.Matrix, rows int, group []int, rng *rand.Rand) *mat.Dense {
	g := len(group)
	n := int(float64(rows) * subsampleFraction)
	if n < 2 {
		n = rows
	}

	sub := mat.NewDense(n, g, nil)
	for i := 0; i < n; i++ {
		src := rng.Intn(rows)
		for j, f := range group {
			sub.Set(i, j, X.At(src, f))
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(sub, nil); !ok {
		return nil
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	if r, c := vecs.Dims(); r != g || c != g {
		return nil
	}
	return &vecs
}
