package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/forester-ml/forester/pkg/errors"
)

// SaveModel writes a model to a file with encoding/gob. The model must
// expose its persisted state through exported fields.
func SaveModel(model interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create model file")
	}
	defer file.Close()

	return SaveModelToWriter(model, file)
}

// LoadModel reads a model previously written by SaveModel. The model
// argument must be a pointer.
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open model file")
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter encodes a model onto an io.Writer.
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader decodes a model from an io.Reader.
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
