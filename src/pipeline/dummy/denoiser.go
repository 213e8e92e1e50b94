package dummy

import (
	"context"
	"sync"

	"github.com/stemsplit/stemsplit-be/src/pipeline/denoise"
	"github.com/stemsplit/stemsplit-be/src/pipeline/waveform"
)

var _ denoise.Denoiser = &Denoiser{}

func NewDummyDenoiser() *Denoiser {
	return &Denoiser{}
}

// Denoiser halves every sample so tests can tell a denoised buffer
// apart from a plain downmix.
type Denoiser struct {
	DenoiseErr error

	mutex      sync.Mutex
	calls      int
	lastParams denoise.Params
}

const Attenuation = 0.5

func (d *Denoiser) Denoise(ctx context.Context, signal waveform.Mono, params denoise.Params) (waveform.Mono, error) {
	d.mutex.Lock()
	d.calls++
	d.lastParams = params
	d.mutex.Unlock()

	if d.DenoiseErr != nil {
		return waveform.Mono{}, d.DenoiseErr
	}

	out := make([]float64, len(signal.Samples))
	for i, sample := range signal.Samples {
		out[i] = sample * Attenuation
	}

	return waveform.Mono{
		Samples:    out,
		SampleRate: signal.SampleRate,
	}, nil
}

func (d *Denoiser) CallCount() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.calls
}

func (d *Denoiser) LastParams() denoise.Params {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.lastParams
}
