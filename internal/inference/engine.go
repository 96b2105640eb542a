// Package inference wraps the pretrained face generator: parameter loading,
// the forward pass and conversion of its output into 8-bit images.
package inference

import (
	"context"
	"errors"
)

var ErrParametersNotLoaded = errors.New("inference: parameters not loaded")

// Settings are the generator knobs used for every face.
type Settings struct {
	LatentSeed    uint32
	LatentDim     int
	NumLayers     int
	TruncationPsi float64
	NoiseSeed     int64
	MixAfter      int
	BatchSize     int
	// StyleInputs is how many copies of the latent are fed as style noise.
	StyleInputs int
	// DynamicRange is the value range of the raw output mapped onto [0, 255].
	DynamicRange [2]float64
}

// DefaultSettings returns the fixed configuration the service generates with.
// The seed does not depend on the requesting user.
func DefaultSettings() Settings {
	return Settings{
		LatentSeed:    954,
		LatentDim:     512,
		NumLayers:     18,
		TruncationPsi: 0.5,
		NoiseSeed:     500,
		MixAfter:      7,
		BatchSize:     1,
		StyleInputs:   2,
		DynamicRange:  [2]float64{-1, 1},
	}
}

// GenerateRequest is one forward pass. StyleNoises is indexed
// [input][batch][latentDim].
type GenerateRequest struct {
	StyleNoises   [][][]float64 `json:"styleNoises"`
	NumLayers     int           `json:"numLayers"`
	TruncationPsi float64       `json:"truncationPsi"`
	NoiseSeed     int64         `json:"noiseSeed"`
	MixAfter      int           `json:"mixAfter"`
	BatchSize     int           `json:"batchSize"`
}

// NewGenerateRequest builds the forward-pass request for a latent batch,
// duplicating it StyleInputs times.
func NewGenerateRequest(s Settings, latent [][]float64) *GenerateRequest {
	noises := make([][][]float64, s.StyleInputs)
	for i := range noises {
		noises[i] = latent
	}
	return &GenerateRequest{
		StyleNoises:   noises,
		NumLayers:     s.NumLayers,
		TruncationPsi: s.TruncationPsi,
		NoiseSeed:     s.NoiseSeed,
		MixAfter:      s.MixAfter,
		BatchSize:     s.BatchSize,
	}
}

// Tensor is a dense float32 array in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Engine runs the generator. LoadParameters replaces the engine's current
// weights; Generate uses whatever weights were loaded last.
type Engine interface {
	LoadParameters(path string) error
	Generate(ctx context.Context, req *GenerateRequest) (*Tensor, error)
}
