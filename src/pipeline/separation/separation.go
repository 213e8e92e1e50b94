package separation

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/stemsplit/stemsplit-be/src/pipeline/stem"
	"github.com/stemsplit/stemsplit-be/src/pipeline/waveform"
)

// Prediction maps stem names to the waveform the model produced for
// them. Keys are always a subset of the closed stem set - a silent or
// absent source simply has no entry, which is a warning for the
// caller, never an error.
type Prediction map[stem.Name]waveform.Waveform

// Release drops all buffers held by the prediction.
func (p Prediction) Release() {
	for name, wave := range p {
		wave.Release()
		p[name] = wave
	}
}

var (
	// InitializationMark marks model load failures. These are fatal
	// for the whole process - no later request can succeed.
	InitializationMark = errors.New("separation engine initialization failed")

	// SeparationMark marks inference failures. Fatal for the current
	// file only, the next upload proceeds normally.
	SeparationMark = errors.New("separation failed")
)

// Engine is the boundary to the pretrained separation model.
//
// Initialize is expensive and must run at most once per process. A
// shared engine's Separate is not safe for unguarded concurrent use,
// so implementations serialize calls internally.
type Engine interface {
	Initialize() error
	Separate(ctx context.Context, wave waveform.Waveform) (Prediction, error)
}
