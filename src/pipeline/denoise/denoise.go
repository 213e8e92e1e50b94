package denoise

import (
	"context"

	"github.com/stemsplit/stemsplit-be/src/pipeline/waveform"
)

// Params controls the noise reduction pass on the vocal stem.
//
// The defaults are deliberately moderate. Raising PropDecrease
// suppresses more background noise but degrades vocal tone - a
// documented trade-off, not a bug.
type Params struct {
	// Stationary should stay false for music, where background noise
	// shifts over time.
	Stationary bool

	// PropDecrease is the suppression strength between 0 and 1.
	PropDecrease float64
}

func DefaultParams() Params {
	return Params{
		Stationary:   false,
		PropDecrease: 0.6,
	}
}

// Denoiser is the boundary to the external noise reduction routine.
type Denoiser interface {
	Denoise(ctx context.Context, signal waveform.Mono, params Params) (waveform.Mono, error)
}
