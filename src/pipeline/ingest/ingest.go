package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/stemsplit/stemsplit-be/src/pipeline/waveform"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/cerr"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/errors/mark"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/working_dir"
)

// DecodeMark marks inputs that cannot be parsed as audio. Fatal for
// the file, harmless for the session.
var DecodeMark = errors.New("input could not be decoded as audio")

// Upload is one user-submitted audio file, held in memory until the
// input temp file is written and consumed exactly once.
type Upload struct {
	Data     []byte
	FileName string
	Size     int64
}

// BaseName is the original file name without its extension, used to
// derive artifact names.
func (u Upload) BaseName() string {
	name := filepath.Base(u.FileName)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Loader is the decode boundary: path in, waveform out, resampled to
// the target rate. The second return is the source's native sample
// rate before resampling.
type Loader interface {
	Load(ctx context.Context, path string, targetSampleRate int) (waveform.Waveform, int, error)
}

// Result describes non-fatal observations made while ingesting.
type Result struct {
	SourceSampleRate int
	Resampled        bool
}

type Ingestor struct {
	workingDir       working_dir.WorkingDir
	loader           Loader
	targetSampleRate int
}

func NewIngestor(workingDirStr string, loader Loader, targetSampleRate int) (Ingestor, error) {
	workingDir, err := working_dir.NewWorkingDir(workingDirStr)
	if err != nil {
		return Ingestor{}, cerr.Wrap(err).Error("Failed to convert working dir to absolute format")
	}

	if err := os.MkdirAll(workingDir.TempDir(), os.ModePerm); err != nil {
		return Ingestor{}, cerr.Field("temp_dir", workingDir.TempDir()).
			Wrap(err).Error("Failed to create temp dir")
	}

	return Ingestor{
		workingDir:       workingDir,
		loader:           loader,
		targetSampleRate: targetSampleRate,
	}, nil
}

// Ingest writes the upload to a uniquely named temp file and decodes
// it at the target rate. The returned cleanup func removes the temp
// file and must run on every exit path; when Ingest itself fails it
// has already run.
func (i Ingestor) Ingest(ctx context.Context, upload Upload) (waveform.Waveform, Result, func(), error) {
	errctx := cerr.Field("file_name", upload.FileName)

	tempPath, cleanup, err := i.saveTempInputFile(upload)
	if err != nil {
		return waveform.Waveform{}, Result{}, nil, errctx.Wrap(err).Error("Failed to save upload to a temp file")
	}

	wave, sourceRate, err := i.loader.Load(ctx, tempPath, i.targetSampleRate)
	if err != nil {
		cleanup()
		return waveform.Waveform{}, Result{}, nil,
			mark.Wrap(
				errctx.Field("temp_path", tempPath).Wrap(err).Error("Failed to decode the uploaded audio"),
				DecodeMark,
				"The uploaded file could not be read as audio")
	}

	result := Result{
		SourceSampleRate: sourceRate,
		Resampled:        sourceRate != i.targetSampleRate,
	}

	log.WithFields(log.Fields{
		"file_name":   upload.FileName,
		"frames":      wave.Frames(),
		"channels":    wave.NumChannels(),
		"sample_rate": wave.SampleRate,
		"source_rate": sourceRate,
	}).Info("Decoded uploaded audio")

	return wave, result, cleanup, nil
}

func (i Ingestor) saveTempInputFile(upload Upload) (string, func(), error) {
	tempDir, err := os.MkdirTemp(i.workingDir.TempDir(), "ingest-*")
	if err != nil {
		return "", nil, cerr.Field("temp_dir", i.workingDir.TempDir()).
			Wrap(err).Error("Failed to create temp dir for the upload")
	}

	cleanup := func() { _ = os.RemoveAll(tempDir) }

	// keep the original file name so decoders can sniff the container
	// from the extension
	tempPath := filepath.Join(tempDir, filepath.Base(upload.FileName))
	if err := os.WriteFile(tempPath, upload.Data, 0o644); err != nil {
		cleanup()
		return "", nil, cerr.Field("temp_path", tempPath).
			Wrap(err).Error("Failed to write upload bytes to the temp file")
	}

	return tempPath, cleanup, nil
}
