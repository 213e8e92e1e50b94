package dummy

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stemsplit/stemsplit-be/src/pipeline/separation"
	"github.com/stemsplit/stemsplit-be/src/pipeline/waveform"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/errors/mark"
)

var _ separation.Engine = &Engine{}

func NewDummyEngine() *Engine {
	return &Engine{}
}

// Engine is an in-memory separation engine. PredictionFn fabricates
// the prediction for each call; when nil, Prediction is returned
// as-is. MaxInFlight records the highest number of concurrent
// Separate calls observed inside the lock-free window, which a well
// behaved caller keeps at 1.
type Engine struct {
	InitializeErr error
	SeparateErr   error

	Prediction   separation.Prediction
	PredictionFn func(wave waveform.Waveform) separation.Prediction

	mutex           sync.Mutex
	initializeCalls int32
	separateCalls   []waveform.Waveform
	inFlight        int32
	MaxInFlight     int32
}

func (e *Engine) Initialize() error {
	atomic.AddInt32(&e.initializeCalls, 1)

	if e.InitializeErr != nil {
		return mark.Wrap(e.InitializeErr, separation.InitializationMark, "Dummy engine failed to initialize")
	}

	return nil
}

func (e *Engine) Separate(ctx context.Context, wave waveform.Waveform) (separation.Prediction, error) {
	current := atomic.AddInt32(&e.inFlight, 1)
	defer atomic.AddInt32(&e.inFlight, -1)

	for {
		observed := atomic.LoadInt32(&e.MaxInFlight)
		if current <= observed || atomic.CompareAndSwapInt32(&e.MaxInFlight, observed, current) {
			break
		}
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.separateCalls = append(e.separateCalls, wave)

	if e.SeparateErr != nil {
		return nil, mark.Wrap(e.SeparateErr, separation.SeparationMark, "Dummy engine failed to separate")
	}

	if e.PredictionFn != nil {
		return e.PredictionFn(wave), nil
	}

	// fresh buffers per call, the way a real engine produces them -
	// callers release predictions after use
	return copyPrediction(e.Prediction), nil
}

func copyPrediction(prediction separation.Prediction) separation.Prediction {
	copied := separation.Prediction{}
	for stemName, stemWave := range prediction {
		channels := make([][]float64, len(stemWave.Channels))
		for c, channel := range stemWave.Channels {
			channels[c] = append([]float64{}, channel...)
		}
		copied[stemName] = waveform.Waveform{
			Channels:   channels,
			SampleRate: stemWave.SampleRate,
		}
	}
	return copied
}

func (e *Engine) InitializeCallCount() int {
	return int(atomic.LoadInt32(&e.initializeCalls))
}

func (e *Engine) SeparateCalls() []waveform.Waveform {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	copied := make([]waveform.Waveform, len(e.separateCalls))
	copy(copied, e.separateCalls)
	return copied
}
