package wavfile

import (
	"os"

	"github.com/go-audio/wav"
	"github.com/stemsplit/stemsplit-be/src/pipeline/waveform"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/cerr"
)

// Read decodes a whole WAV file into a normalized waveform.
func Read(path string) (waveform.Waveform, error) {
	errctx := cerr.Field("path", path)

	file, err := os.Open(path)
	if err != nil {
		return waveform.Waveform{}, errctx.Wrap(err).Error("Failed to open WAV file")
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return waveform.Waveform{}, errctx.Error("File is not a valid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return waveform.Waveform{}, errctx.Wrap(err).Error("Failed to decode WAV PCM data")
	}

	decoded, err := waveform.FromIntBuffer(buf)
	if err != nil {
		return waveform.Waveform{}, errctx.Wrap(err).Error("Failed to convert PCM buffer to waveform")
	}

	return decoded, nil
}

// Write encodes the waveform as 16-bit PCM, preserving channel count.
func Write(path string, wave waveform.Waveform) error {
	errctx := cerr.Field("path", path)

	file, err := os.Create(path)
	if err != nil {
		return errctx.Wrap(err).Error("Failed to create WAV file")
	}
	defer file.Close()

	encoder := wav.NewEncoder(file, wave.SampleRate, 16, wave.NumChannels(), 1)

	if err := encoder.Write(wave.InterleavedIntBuffer()); err != nil {
		_ = encoder.Close()
		return errctx.Wrap(err).Error("Failed to write WAV PCM data")
	}

	if err := encoder.Close(); err != nil {
		return errctx.Wrap(err).Error("Failed to finalize WAV file")
	}

	return nil
}
