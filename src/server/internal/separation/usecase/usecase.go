package separationusecase

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/markers"
	"github.com/stemsplit/stemsplit-be/src/pipeline/artifact"
	"github.com/stemsplit/stemsplit-be/src/pipeline/ingest"
	"github.com/stemsplit/stemsplit-be/src/pipeline/orchestrator"
	"github.com/stemsplit/stemsplit-be/src/pipeline/progress"
	"github.com/stemsplit/stemsplit-be/src/pipeline/separation"
	"github.com/stemsplit/stemsplit-be/src/server/internal/errors/api"
	separationerrors "github.com/stemsplit/stemsplit-be/src/server/internal/separation/errors"
	sessionusecase "github.com/stemsplit/stemsplit-be/src/server/internal/session/usecase"
	"github.com/stemsplit/stemsplit-be/src/shared/config"
)

// Result is one finished run: the produced artifacts plus the status
// events that accumulated while it ran.
type Result struct {
	Artifacts        artifact.StemPaths
	Events           []progress.Event
	Resampled        bool
	SourceSampleRate int
}

type Usecase struct {
	sessionUsecase sessionusecase.Usecase
	orchestrator   orchestrator.Orchestrator
	pipelineConfig config.Pipeline
}

func NewUsecase(
	sessionUsecase sessionusecase.Usecase,
	orchestrator orchestrator.Orchestrator,
	pipelineConfig config.Pipeline,
) Usecase {
	return Usecase{
		sessionUsecase: sessionUsecase,
		orchestrator:   orchestrator,
		pipelineConfig: pipelineConfig,
	}
}

// ValidateUpload rejects an upload before any pipeline work happens.
// Size is checked against the declared size so an oversize file never
// reaches ingestion.
func (u Usecase) ValidateUpload(fileName string, declaredSize int64) *api.Error {
	if fileName == "" {
		return api.CommitError(
			errors.New("No file name on the upload"),
			separationerrors.MissingFileCode,
			"No file was attached to the request")
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if !extensionAllowed(ext) {
		return api.CommitError(
			errors.Newf("Extension %s is not supported", ext),
			separationerrors.UnsupportedMediaCode,
			"Unsupported file type. Supported types: mp3, wav, flac, m4a, ogg, aac")
	}

	if declaredSize > u.pipelineConfig.MaxUploadBytes {
		return api.CommitError(
			errors.Newf("Upload of %d bytes exceeds the maximum of %d", declaredSize, u.pipelineConfig.MaxUploadBytes),
			separationerrors.FileTooLargeCode,
			"The file is too large for this service")
	}

	return nil
}

func (u Usecase) Separate(ctx context.Context, sessionID string, upload ingest.Upload) (Result, *api.Error) {
	if apiErr := u.ValidateUpload(upload.FileName, upload.Size); apiErr != nil {
		return Result{}, api.WrapError(apiErr, "Upload was rejected")
	}

	sess, apiErr := u.sessionUsecase.GetSession(sessionID)
	if apiErr != nil {
		return Result{}, api.WrapError(apiErr, "Cannot separate for this session")
	}

	collector := progress.NewCollector()
	sink := progress.Multi{collector, progress.LogSink{}}

	outcome, err := u.orchestrator.Process(ctx, upload, sess, sink)
	if err != nil {
		err = errors.Wrap(err, "Pipeline failed for this upload")
		switch {
		case markers.Is(err, ingest.DecodeMark):
			return Result{}, api.CommitError(err,
				separationerrors.BadAudioCode,
				"The file could not be read as audio. Please check that it is a valid audio file")
		case markers.Is(err, separation.SeparationMark):
			return Result{}, api.CommitError(err,
				separationerrors.SeparationFailedCode,
				"Separation failed. The file may be too long or too complex")
		case markers.Is(err, orchestrator.NoArtifactsMark):
			return Result{}, api.CommitError(err,
				separationerrors.NoStemsCode,
				"No stems could be extracted from this file")
		default:
			return Result{}, api.CommitError(err,
				api.DefaultErrorCode,
				"Unknown error: Failed to process the file")
		}
	}

	return Result{
		Artifacts:        outcome.Artifacts,
		Events:           collector.Events(),
		Resampled:        outcome.Resampled,
		SourceSampleRate: outcome.SourceSampleRate,
	}, nil
}

func extensionAllowed(ext string) bool {
	for _, allowed := range config.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
