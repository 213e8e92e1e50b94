package artifact

import (
	"fmt"
	"path/filepath"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/stemsplit/stemsplit-be/src/pipeline/stem"
	"github.com/stemsplit/stemsplit-be/src/pipeline/waveform"
	"github.com/stemsplit/stemsplit-be/src/pipeline/wavfile"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/cerr"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/errors/mark"
)

// WriteMark marks artifact I/O failures. Reported per stem, same
// isolation as any other stem processing failure.
var WriteMark = errors.New("failed to write stem artifact")

// StemPaths maps each produced stem to its artifact path inside the
// session output directory.
type StemPaths = map[stem.Name]string

type Writer struct{}

func NewWriter() Writer {
	return Writer{}
}

// Write persists one processed stem as a 16-bit PCM mono WAV named
// {base}_{stem}.wav in outputDir. Re-processing the same base name
// overwrites the prior artifact, there is no versioning.
func (Writer) Write(processed waveform.Mono, baseName string, stemName stem.Name, outputDir string) (string, error) {
	fileName := fmt.Sprintf("%s_%s.wav", baseName, stemName)
	outputPath := filepath.Join(outputDir, fileName)

	errctx := cerr.Field("output_path", outputPath).Field("stem", stemName)

	if err := wavfile.Write(outputPath, processed.ToWaveform()); err != nil {
		return "", mark.Wrap(
			errctx.Wrap(err).Error("Failed to write the stem WAV file"),
			WriteMark,
			"Could not save the stem artifact")
	}

	log.WithFields(log.Fields{
		"output_path": outputPath,
		"stem":        string(stemName),
	}).Info("Wrote stem artifact")

	return outputPath, nil
}
