package testing

import (
	"os"

	"github.com/go-audio/wav"
	. "github.com/onsi/gomega"
	"github.com/stemsplit/stemsplit-be/src/pipeline/waveform"
)

func ExpectSuccess[T any](value T, err error) T {
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return value
}

// ConstWaveform builds a waveform where every sample in every
// channel carries the same value. Handy for asserting downmix and
// denoise behavior by value.
func ConstWaveform(numChannels int, frames int, value float64, sampleRate int) waveform.Waveform {
	channels := make([][]float64, numChannels)
	for c := range channels {
		channel := make([]float64, frames)
		for i := range channel {
			channel[i] = value
		}
		channels[c] = channel
	}

	return waveform.Waveform{
		Channels:   channels,
		SampleRate: sampleRate,
	}
}

func StereoWaveform(frames int, left float64, right float64, sampleRate int) waveform.Waveform {
	leftChannel := make([]float64, frames)
	rightChannel := make([]float64, frames)
	for i := 0; i < frames; i++ {
		leftChannel[i] = left
		rightChannel[i] = right
	}

	return waveform.Waveform{
		Channels:   [][]float64{leftChannel, rightChannel},
		SampleRate: sampleRate,
	}
}

// ExpectMonoPCM16WAV asserts the file at path is a valid mono 16-bit
// PCM WAV at the expected rate and returns its decoded contents.
func ExpectMonoPCM16WAV(path string, expectedSampleRate int) waveform.Mono {
	file := ExpectSuccess(os.Open(path))
	defer file.Close()

	decoder := wav.NewDecoder(file)
	ExpectWithOffset(1, decoder.IsValidFile()).To(BeTrue(), "file should be a valid WAV: %s", path)

	buf := ExpectSuccess(decoder.FullPCMBuffer())
	ExpectWithOffset(1, int(decoder.BitDepth)).To(Equal(16))
	ExpectWithOffset(1, buf.Format.NumChannels).To(Equal(1))
	ExpectWithOffset(1, buf.Format.SampleRate).To(Equal(expectedSampleRate))

	decoded := ExpectSuccess(waveform.FromIntBuffer(buf))
	return decoded.DownmixMono()
}
