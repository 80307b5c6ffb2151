// Package dataset provides the validated feature matrix and label
// vector that the tree and ensemble packages train on.
package dataset

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/forester-ml/forester/pkg/errors"
)

// Dataset couples an n x D feature matrix with an optional label vector
// of length n. Labels hold class ids for classification or real targets
// for regression. A Dataset is immutable once constructed; samples are
// identified by row index.
type Dataset struct {
	x *mat.Dense
	y []float64
}

// New builds a Dataset from a feature matrix and labels. It fails with
// a DimensionError when len(y) does not match the number of rows, and
// with a ValueError when any feature or label is NaN or infinite. Pass
// nil labels for prediction-only matrices.
func New(X mat.Matrix, y []float64) (*Dataset, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.ErrEmptyData
	}
	if y != nil && len(y) != rows {
		return nil, errors.NewDimensionError("dataset.New", rows, len(y), 0)
	}

	dense := mat.DenseCopyOf(X)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if !isFinite(dense.At(i, j)) {
				return nil, errors.NewValueError("dataset.New",
					"non-finite feature value; clean or impute the input before loading")
			}
		}
	}
	var labels []float64
	if y != nil {
		labels = make([]float64, len(y))
		copy(labels, y)
		for _, v := range labels {
			if !isFinite(v) {
				return nil, errors.NewValueError("dataset.New", "non-finite label value")
			}
		}
	}

	return &Dataset{x: dense, y: labels}, nil
}

// FromRows builds a Dataset from row slices. It fails with a
// DimensionError when row lengths differ.
func FromRows(rows [][]float64, y []float64) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, errors.ErrEmptyData
	}
	cols := len(rows[0])
	flat := make([]float64, 0, len(rows)*cols)
	for _, row := range rows {
		if len(row) != cols {
			return nil, errors.NewDimensionError("dataset.FromRows", cols, len(row), 1)
		}
		flat = append(flat, row...)
	}
	return New(mat.NewDense(len(rows), cols, flat), y)
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	r, _ := d.x.Dims()
	return r
}

// Features returns the feature dimensionality D.
func (d *Dataset) Features() int {
	_, c := d.x.Dims()
	return c
}

// HasLabels reports whether the dataset carries a label vector.
func (d *Dataset) HasLabels() bool {
	return d.y != nil
}

// Row returns the feature vector of sample i. The returned slice aliases
// internal storage and must not be modified.
func (d *Dataset) Row(i int) []float64 {
	return d.x.RawRowView(i)
}

// At returns feature j of sample i.
func (d *Dataset) At(i, j int) float64 {
	return d.x.At(i, j)
}

// Label returns the label of sample i.
func (d *Dataset) Label(i int) float64 {
	return d.y[i]
}

// Labels returns the label vector. The returned slice aliases internal
// storage and must not be modified.
func (d *Dataset) Labels() []float64 {
	return d.y
}

// Matrix returns the feature matrix as a read-only gonum matrix.
func (d *Dataset) Matrix() mat.Matrix {
	return d.x
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
