package postprocess

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/stemsplit/stemsplit-be/src/pipeline/artifact"
	"github.com/stemsplit/stemsplit-be/src/pipeline/denoise"
	"github.com/stemsplit/stemsplit-be/src/pipeline/progress"
	"github.com/stemsplit/stemsplit-be/src/pipeline/separation"
	"github.com/stemsplit/stemsplit-be/src/pipeline/stem"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/cerr"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/errors/mark"
)

// StemProcessingMark marks per-stem failures. These are isolated: one
// stem failing never aborts the remaining stems.
var StemProcessingMark = errors.New("stem processing failed")

// Processor turns one prediction into written artifacts. Every stem
// is downmixed to mono by channel averaging. Vocals are denoised
// unconditionally after the downmix - the rule does not depend on the
// model's output channel count.
type Processor struct {
	denoiser      denoise.Denoiser
	writer        artifact.Writer
	denoiseParams denoise.Params
}

func NewProcessor(denoiser denoise.Denoiser, writer artifact.Writer, denoiseParams denoise.Params) Processor {
	return Processor{
		denoiser:      denoiser,
		writer:        writer,
		denoiseParams: denoiseParams,
	}
}

// ProcessAll walks the fixed stem order. Absent, empty, or failing
// stems are skipped with a warning or error event; whatever else
// succeeds is returned. After each stem the sink receives the share
// of stems handled so far.
func (p Processor) ProcessAll(
	ctx context.Context,
	prediction separation.Prediction,
	baseName string,
	outputDir string,
	sink progress.Sink,
) artifact.StemPaths {
	results := artifact.StemPaths{}

	allStems := stem.AllInOrder()
	for i, stemName := range allStems {
		sink.Emit(progress.Event{
			Level:    progress.Info,
			Stage:    progress.StagePostProcessing,
			Stem:     stemName,
			Message:  fmt.Sprintf("Processing stem: %s", stemName),
			Fraction: float64(i) / float64(len(allStems)),
		})

		path, err := p.processOne(ctx, prediction, stemName, baseName, outputDir)

		fraction := float64(i+1) / float64(len(allStems))

		switch {
		case err != nil && errors.Is(err, errSkipStem):
			sink.Emit(progress.Event{
				Level:    progress.Warning,
				Stage:    progress.StagePostProcessing,
				Stem:     stemName,
				Message:  fmt.Sprintf("Stem %s is absent or empty and was skipped", stemName),
				Fraction: fraction,
			})

		case err != nil:
			// isolation: report and move on to the next stem
			cerr.Log(err)
			sink.Emit(progress.Event{
				Level:    progress.Error,
				Stage:    progress.StagePostProcessing,
				Stem:     stemName,
				Message:  fmt.Sprintf("Failed to process stem %s, skipping it", stemName),
				Fraction: fraction,
			})

		default:
			results[stemName] = path
			sink.Emit(progress.Event{
				Level:    progress.Info,
				Stage:    progress.StagePostProcessing,
				Stem:     stemName,
				Message:  fmt.Sprintf("Finished stem: %s", stemName),
				Fraction: fraction,
			})
		}
	}

	return results
}

// errSkipStem is the non-error outcome for absent or empty stems.
var errSkipStem = errors.New("stem skipped")

func (p Processor) processOne(
	ctx context.Context,
	prediction separation.Prediction,
	stemName stem.Name,
	baseName string,
	outputDir string,
) (string, error) {
	stemWave, ok := prediction[stemName]
	if !ok {
		log.WithField("stem", string(stemName)).
			Warn("Stem is missing from the model prediction")
		return "", errSkipStem
	}

	if stemWave.Empty() || !stemWave.Valid() {
		log.WithField("stem", string(stemName)).
			Warn("Stem buffer is empty or misshapen")
		return "", errSkipStem
	}

	errctx := cerr.Field("stem", stemName).Field("base_name", baseName)

	mono := stemWave.DownmixMono()

	if stemName == stem.Vocals {
		denoised, err := p.denoiser.Denoise(ctx, mono, p.denoiseParams)
		if err != nil {
			return "", mark.Wrap(
				errctx.Wrap(err).Error("Failed to denoise the vocal stem"),
				StemProcessingMark,
				"Noise reduction failed")
		}
		mono = denoised
	}

	if mono.Empty() {
		log.WithField("stem", string(stemName)).
			Warn("Processed stem came out empty, not writing it")
		return "", errSkipStem
	}

	path, err := p.writer.Write(mono, baseName, stemName, outputDir)
	if err != nil {
		return "", mark.Wrap(
			errctx.Wrap(err).Error("Failed to write the stem artifact"),
			StemProcessingMark,
			"Artifact write failed")
	}

	return path, nil
}
