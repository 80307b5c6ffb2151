package model

import (
	"github.com/forester-ml/forester/dataset"
)

// Estimator is the interface shared by every trainable model.
type Estimator interface {
	// Fit trains the model on a dataset.
	Fit(ds *dataset.Dataset) error

	// IsFitted reports whether the model has been trained.
	IsFitted() bool
}

// Predictor makes predictions for individual samples and batches.
type Predictor interface {
	// Predict returns the prediction for a single feature vector.
	Predict(x []float64) (float64, error)

	// PredictBatch returns one prediction per dataset row, in row order.
	PredictBatch(ds *dataset.Dataset) ([]float64, error)
}

// Classifier is a classification model.
type Classifier interface {
	Estimator
	Predictor

	// PredictProba returns the class probability distribution for a sample,
	// indexed like Classes.
	PredictProba(x []float64) ([]float64, error)

	// Classes returns the distinct labels seen during fitting, ascending.
	Classes() []float64
}

// Regressor is a regression model.
type Regressor interface {
	Estimator
	Predictor
}

// Persistable is implemented by models that can be saved and loaded.
type Persistable interface {
	// Save writes the model to a file.
	Save(path string) error

	// Load reads the model from a file.
	Load(path string) error
}
