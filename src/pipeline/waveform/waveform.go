package waveform

import (
	"github.com/go-audio/audio"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/cerr"
)

// Waveform is a decoded multi-channel sample buffer. Channels holds
// one float slice per channel, all of equal length, with samples
// normalized to [-1, 1].
type Waveform struct {
	Channels   [][]float64
	SampleRate int
}

// Mono is a single channel sample buffer, the shape every processed
// stem ends up in.
type Mono struct {
	Samples    []float64
	SampleRate int
}

func (w Waveform) NumChannels() int {
	return len(w.Channels)
}

func (w Waveform) Frames() int {
	if len(w.Channels) == 0 {
		return 0
	}

	return len(w.Channels[0])
}

func (w Waveform) Empty() bool {
	return w.Frames() == 0
}

// Valid reports whether all channels carry the same number of frames.
func (w Waveform) Valid() bool {
	if len(w.Channels) == 0 {
		return false
	}

	frames := len(w.Channels[0])
	for _, channel := range w.Channels {
		if len(channel) != frames {
			return false
		}
	}

	return true
}

// DownmixMono reduces the waveform to a single channel by straight
// channel averaging. A single channel waveform passes through as-is.
func (w Waveform) DownmixMono() Mono {
	if w.NumChannels() == 1 {
		return Mono{
			Samples:    w.Channels[0],
			SampleRate: w.SampleRate,
		}
	}

	frames := w.Frames()
	mixed := make([]float64, frames)
	channelCount := float64(w.NumChannels())

	for i := 0; i < frames; i++ {
		sum := 0.0
		for _, channel := range w.Channels {
			sum += channel[i]
		}
		mixed[i] = sum / channelCount
	}

	return Mono{
		Samples:    mixed,
		SampleRate: w.SampleRate,
	}
}

// Release drops the sample buffers. Repeated runs accumulate process
// memory otherwise - the orchestrator calls this once a buffer has
// been handed downstream.
func (w *Waveform) Release() {
	w.Channels = nil
}

func (m Mono) Empty() bool {
	return len(m.Samples) == 0
}

// FromIntBuffer converts a go-audio PCM buffer into a normalized
// waveform. Samples are deinterleaved channel-major.
func FromIntBuffer(buf *audio.IntBuffer) (Waveform, error) {
	if buf == nil || buf.Format == nil {
		return Waveform{}, cerr.Error("PCM buffer is missing format information")
	}

	numChannels := buf.Format.NumChannels
	if numChannels <= 0 {
		return Waveform{}, cerr.Field("num_channels", numChannels).
			Error("PCM buffer has no channels")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float64(int(1) << uint(bitDepth-1))

	frames := len(buf.Data) / numChannels
	channels := make([][]float64, numChannels)
	for c := range channels {
		channels[c] = make([]float64, frames)
	}

	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			channels[c][i] = float64(buf.Data[i*numChannels+c]) / scale
		}
	}

	return Waveform{
		Channels:   channels,
		SampleRate: buf.Format.SampleRate,
	}, nil
}

// ToIntBuffer converts a mono buffer to 16-bit PCM with clipping.
func (m Mono) ToIntBuffer() *audio.IntBuffer {
	const scale = 1 << 15

	data := make([]int, len(m.Samples))
	for i, sample := range m.Samples {
		scaled := int(sample * scale)
		if scaled > scale-1 {
			scaled = scale - 1
		}
		if scaled < -scale {
			scaled = -scale
		}
		data[i] = scaled
	}

	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  m.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
}

// ToWaveform reinterprets the mono buffer as a one channel waveform.
func (m Mono) ToWaveform() Waveform {
	return Waveform{
		Channels:   [][]float64{m.Samples},
		SampleRate: m.SampleRate,
	}
}

// InterleavedIntBuffer converts the waveform to interleaved 16-bit
// PCM, preserving channel count.
func (w Waveform) InterleavedIntBuffer() *audio.IntBuffer {
	const scale = 1 << 15

	frames := w.Frames()
	numChannels := w.NumChannels()
	data := make([]int, frames*numChannels)

	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			scaled := int(w.Channels[c][i] * scale)
			if scaled > scale-1 {
				scaled = scale - 1
			}
			if scaled < -scale {
				scaled = -scale
			}
			data[i*numChannels+c] = scaled
		}
	}

	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: numChannels,
			SampleRate:  w.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
}
