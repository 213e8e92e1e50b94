package orchestrator

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/stemsplit/stemsplit-be/src/pipeline/artifact"
	"github.com/stemsplit/stemsplit-be/src/pipeline/ingest"
	"github.com/stemsplit/stemsplit-be/src/pipeline/postprocess"
	"github.com/stemsplit/stemsplit-be/src/pipeline/progress"
	"github.com/stemsplit/stemsplit-be/src/pipeline/separation"
	"github.com/stemsplit/stemsplit-be/src/pipeline/session"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/cerr"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/errors/mark"
)

// NoArtifactsMark marks runs where every stem was skipped or failed.
// Partial output is success, zero output is not.
var NoArtifactsMark = errors.New("no stem artifacts were produced")

// Orchestrator sequences one uploaded file through ingestion,
// separation, and the per-stem post-processing loop:
//
//	Received -> Ingested -> Separated -> PostProcessing(1..5) -> Completed | Failed
//
// Stems run strictly sequentially to bound peak memory - the five
// stem buffers plus denoise intermediates are the dominant cost.
type Orchestrator struct {
	ingestor  ingest.Ingestor
	engine    separation.Engine
	processor postprocess.Processor
}

func New(ingestor ingest.Ingestor, engine separation.Engine, processor postprocess.Processor) Orchestrator {
	return Orchestrator{
		ingestor:  ingestor,
		engine:    engine,
		processor: processor,
	}
}

// Outcome is what one successful run hands back to the presentation
// layer.
type Outcome struct {
	Artifacts        artifact.StemPaths
	Resampled        bool
	SourceSampleRate int
}

// Process runs the whole pipeline for one upload. The input temp
// file is deleted on every exit path. On fatal failure the artifact
// map is empty; on success at least one stem was written and recorded
// on the session.
func (o Orchestrator) Process(
	ctx context.Context,
	upload ingest.Upload,
	sess *session.Session,
	sink progress.Sink,
) (Outcome, error) {
	errctx := cerr.Field("file_name", upload.FileName).Field("session_id", sess.ID())

	sink.Emit(progress.Event{
		Level:   progress.Info,
		Stage:   progress.StageReceived,
		Message: fmt.Sprintf("Processing file: %s", upload.FileName),
	})

	wave, ingestResult, cleanupInput, err := o.ingestor.Ingest(ctx, upload)
	if err != nil {
		err = errctx.Wrap(err).Error("Failed to ingest the uploaded file")
		o.emitFailure(sink, "The file could not be read as audio. Please check that it is a valid audio file")
		return Outcome{}, err
	}

	// invariant: the input temp file never survives this call,
	// whatever path it exits on
	defer cleanupInput()

	if ingestResult.Resampled {
		sink.Emit(progress.Event{
			Level:   progress.Warning,
			Stage:   progress.StageIngested,
			Message: fmt.Sprintf("Audio was resampled from its native %dHz", ingestResult.SourceSampleRate),
		})
	}

	sink.Emit(progress.Event{
		Level:   progress.Info,
		Stage:   progress.StageIngested,
		Message: fmt.Sprintf("Audio loaded (%dHz, %.2fs)", wave.SampleRate, durationSeconds(wave.Frames(), wave.SampleRate)),
	})

	prediction, err := o.engine.Separate(ctx, wave)

	// the mixed waveform is no longer needed either way, release it
	// so repeated runs don't accumulate memory
	wave.Release()

	if err != nil {
		err = errctx.Wrap(err).Error("Failed to separate the track into stems")
		o.emitFailure(sink, "Separation failed. The file may be too long or too complex")
		return Outcome{}, err
	}

	log.WithFields(log.Fields{
		"file_name":  upload.FileName,
		"stem_count": len(prediction),
	}).Info("Separation complete")

	sink.Emit(progress.Event{
		Level:   progress.Info,
		Stage:   progress.StageSeparated,
		Message: "Stem separation complete",
	})

	outputDir, err := sess.OutputDir()
	if err != nil {
		prediction.Release()
		err = errctx.Wrap(err).Error("Failed to prepare the session output dir")
		o.emitFailure(sink, "Could not prepare the session storage")
		return Outcome{}, err
	}

	paths := o.processor.ProcessAll(ctx, prediction, upload.BaseName(), outputDir, sink)
	prediction.Release()

	if len(paths) == 0 {
		err = mark.Message(NoArtifactsMark, "Every stem was skipped or failed, nothing was produced")
		o.emitFailure(sink, "No stems could be extracted from this file")
		return Outcome{}, errctx.Wrap(err).Error("Pipeline produced zero artifacts")
	}

	sess.RecordArtifacts(paths)

	sink.Emit(progress.Event{
		Level:    progress.Info,
		Stage:    progress.StageCompleted,
		Message:  fmt.Sprintf("Produced %d of %d stems", len(paths), 5),
		Fraction: 1,
	})

	return Outcome{
		Artifacts:        paths,
		Resampled:        ingestResult.Resampled,
		SourceSampleRate: ingestResult.SourceSampleRate,
	}, nil
}

func (o Orchestrator) emitFailure(sink progress.Sink, userMessage string) {
	sink.Emit(progress.Event{
		Level:   progress.Error,
		Stage:   progress.StageFailed,
		Message: userMessage,
	})
}

func durationSeconds(frames int, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}

	return float64(frames) / float64(sampleRate)
}
