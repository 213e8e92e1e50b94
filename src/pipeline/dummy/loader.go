package dummy

import (
	"context"
	"sync"

	"github.com/stemsplit/stemsplit-be/src/pipeline/ingest"
	"github.com/stemsplit/stemsplit-be/src/pipeline/waveform"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/cerr"
)

var _ ingest.Loader = &Loader{}

func NewDummyLoader() *Loader {
	return &Loader{}
}

// Loader hands back a canned waveform instead of decoding anything.
// When Unparseable is set it behaves like a corrupt input.
type Loader struct {
	Unparseable bool
	Waveform    waveform.Waveform
	SourceRate  int

	mutex       sync.Mutex
	loadedPaths []string
}

func (l *Loader) Load(ctx context.Context, path string, targetSampleRate int) (waveform.Waveform, int, error) {
	l.mutex.Lock()
	l.loadedPaths = append(l.loadedPaths, path)
	l.mutex.Unlock()

	if l.Unparseable {
		return waveform.Waveform{}, 0, cerr.Field("path", path).Error("Dummy loader cannot parse this file")
	}

	sourceRate := l.SourceRate
	if sourceRate == 0 {
		sourceRate = targetSampleRate
	}

	wave := l.Waveform
	if wave.SampleRate == 0 {
		wave.SampleRate = targetSampleRate
	}

	return wave, sourceRate, nil
}

func (l *Loader) LoadedPaths() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	copied := make([]string, len(l.loadedPaths))
	copy(copied, l.loadedPaths)
	return copied
}
