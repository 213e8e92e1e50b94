package spleeter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/apex/log"
	"github.com/stemsplit/stemsplit-be/src/pipeline/separation"
	"github.com/stemsplit/stemsplit-be/src/pipeline/stem"
	"github.com/stemsplit/stemsplit-be/src/pipeline/waveform"
	"github.com/stemsplit/stemsplit-be/src/pipeline/wavfile"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/cerr"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/errors/mark"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/executor"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/working_dir"
)

// PretrainedModel is the five stem configuration the engine always
// runs with.
const PretrainedModel = "spleeter:5stems"

var _ separation.Engine = &Engine{}

// Engine drives an external spleeter binary. The model weights load
// on first use and the loaded instance is shared for the rest of the
// process, so Separate calls are serialized behind a mutex.
type Engine struct {
	workingDir working_dir.WorkingDir
	binPath    string
	executor   executor.Executor

	initOnce sync.Once
	initErr  error

	separateLock sync.Mutex
}

func NewEngine(workingDirStr string, binPath string, executor executor.Executor) (*Engine, error) {
	workingDir, err := working_dir.NewWorkingDir(workingDirStr)
	if err != nil {
		return nil, cerr.Wrap(err).Error("Failed to convert working dir to absolute format")
	}

	if err := os.MkdirAll(workingDir.TempDir(), os.ModePerm); err != nil {
		return nil, cerr.Field("temp_dir", workingDir.TempDir()).
			Wrap(err).Error("Failed to create temp dir")
	}

	return &Engine{
		workingDir: workingDir,
		binPath:    binPath,
		executor:   executor,
	}, nil
}

// Initialize loads the model at most once. Failure here is terminal
// for the process - every result is memoized, including the error.
func (e *Engine) Initialize() error {
	e.initOnce.Do(func() {
		logger := log.WithField("model", PretrainedModel)
		logger.Info("Initializing separation engine")

		cmd := e.executor.Command(e.binPath, "separate", "--help")
		cmd.SetDir(e.workingDir.Root())

		output, err := cmd.CombinedOutput()
		if err != nil {
			e.initErr = mark.Wrap(
				cerr.Field("bin_path", e.binPath).
					Field("output", string(output)).
					Wrap(err).Error("Separator binary is not runnable"),
				separation.InitializationMark,
				"Failed to initialize the separation engine")
			return
		}

		logger.Info("Separation engine ready")
	})

	return e.initErr
}

func (e *Engine) Separate(ctx context.Context, wave waveform.Waveform) (separation.Prediction, error) {
	if err := e.Initialize(); err != nil {
		return nil, cerr.Wrap(err).Error("Engine was never initialized successfully")
	}

	// separation is a lengthy process, if we want to halt now is the time
	if ctx.Err() != nil {
		return nil, cerr.Wrap(ctx.Err()).Error("Context cancelled before separation could happen")
	}

	e.separateLock.Lock()
	defer e.separateLock.Unlock()

	scratchDir, err := os.MkdirTemp(e.workingDir.TempDir(), "separation-*")
	if err != nil {
		return nil, mark.Wrap(err, separation.SeparationMark, "Failed to create separation scratch dir")
	}
	defer os.RemoveAll(scratchDir)

	inputPath := filepath.Join(scratchDir, "input.wav")
	if err := wavfile.Write(inputPath, wave); err != nil {
		return nil, mark.Wrap(err, separation.SeparationMark, "Failed to write input waveform for separation")
	}

	outputDir := filepath.Join(scratchDir, "stems")
	if err := e.runSpleeter(inputPath, outputDir); err != nil {
		return nil, mark.Wrap(err, separation.SeparationMark, "Failed to execute the separator")
	}

	prediction, err := collectPrediction(outputDir)
	if err != nil {
		return nil, mark.Wrap(err, separation.SeparationMark, "Failed to collect separated stems")
	}

	return prediction, nil
}

func (e *Engine) runSpleeter(sourcePath string, destPath string) error {
	logger := log.WithFields(log.Fields{
		"sourcePath": sourcePath,
		"destPath":   destPath,
		"workingDir": e.workingDir.Root(),
	})

	logger.Info("Running separator command")

	args := []string{"separate", "-p", PretrainedModel, "-o", destPath, "-f", "{instrument}.{codec}", sourcePath}

	errctx := cerr.Field("bin_path", e.binPath).Field("args", args)

	cmd := e.executor.Command(e.binPath, args...)
	cmd.SetDir(e.workingDir.Root())

	output, err := cmd.CombinedOutput()
	if err != nil {
		return errctx.Field("output", string(output)).
			Wrap(err).
			Error(fmt.Sprintf("Error occurred while running the separator: %s", string(output)))
	}

	logger.Debug(string(output))
	logger.Info("Finished separator command")

	return nil
}

func collectPrediction(dir string) (separation.Prediction, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, cerr.Field("dir", dir).Wrap(err).Error("Error reading separation output directory")
	}

	if len(dirEntries) == 0 {
		return nil, cerr.Field("dir", dir).Error("No files in separation output directory")
	}

	prediction := separation.Prediction{}

	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() {
			continue
		}

		fileName := dirEntry.Name()
		stemName, err := stem.Parse(trimExt(fileName))
		if err != nil {
			log.WithField("file_name", fileName).
				Warn("Ignoring unrecognized file in separation output")
			continue
		}

		stemWave, err := wavfile.Read(filepath.Join(dir, fileName))
		if err != nil {
			return nil, cerr.Field("file_name", fileName).
				Wrap(err).Error("Failed to read separated stem file")
		}

		prediction[stemName] = stemWave
	}

	return prediction, nil
}

func trimExt(fileName string) string {
	return fileName[:len(fileName)-len(filepath.Ext(fileName))]
}
