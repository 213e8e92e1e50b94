package noisetool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/stemsplit/stemsplit-be/src/pipeline/denoise"
	"github.com/stemsplit/stemsplit-be/src/pipeline/waveform"
	"github.com/stemsplit/stemsplit-be/src/pipeline/wavfile"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/cerr"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/executor"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/working_dir"
)

var _ denoise.Denoiser = Denoiser{}

// Denoiser shells out to an external noise reduction tool that reads
// and writes WAV files.
type Denoiser struct {
	workingDir working_dir.WorkingDir
	binPath    string
	executor   executor.Executor
}

func NewDenoiser(workingDirStr string, binPath string, executor executor.Executor) (Denoiser, error) {
	workingDir, err := working_dir.NewWorkingDir(workingDirStr)
	if err != nil {
		return Denoiser{}, cerr.Wrap(err).Error("Failed to convert working dir to absolute format")
	}

	if err := os.MkdirAll(workingDir.TempDir(), os.ModePerm); err != nil {
		return Denoiser{}, cerr.Field("temp_dir", workingDir.TempDir()).
			Wrap(err).Error("Failed to create temp dir")
	}

	return Denoiser{
		workingDir: workingDir,
		binPath:    binPath,
		executor:   executor,
	}, nil
}

func (d Denoiser) Denoise(ctx context.Context, signal waveform.Mono, params denoise.Params) (waveform.Mono, error) {
	if ctx.Err() != nil {
		return waveform.Mono{}, cerr.Wrap(ctx.Err()).Error("Context cancelled before denoising could happen")
	}

	scratchDir, err := os.MkdirTemp(d.workingDir.TempDir(), "denoise-*")
	if err != nil {
		return waveform.Mono{}, cerr.Wrap(err).Error("Failed to create denoise scratch dir")
	}
	defer os.RemoveAll(scratchDir)

	inputPath := filepath.Join(scratchDir, "input.wav")
	outputPath := filepath.Join(scratchDir, "output.wav")

	if err := wavfile.Write(inputPath, signal.ToWaveform()); err != nil {
		return waveform.Mono{}, cerr.Wrap(err).Error("Failed to write signal for denoising")
	}

	if err := d.runReducer(inputPath, outputPath, params); err != nil {
		return waveform.Mono{}, cerr.Wrap(err).Error("Failed to execute the noise reducer")
	}

	denoised, err := wavfile.Read(outputPath)
	if err != nil {
		return waveform.Mono{}, cerr.Wrap(err).Error("Failed to read denoised signal")
	}

	return denoised.DownmixMono(), nil
}

func (d Denoiser) runReducer(inputPath string, outputPath string, params denoise.Params) error {
	logger := log.WithFields(log.Fields{
		"inputPath":  inputPath,
		"outputPath": outputPath,
	})

	logger.Info("Running noise reducer command")

	args := []string{
		"--input", inputPath,
		"--output", outputPath,
		"--prop-decrease", fmt.Sprintf("%g", params.PropDecrease),
	}
	if params.Stationary {
		args = append(args, "--stationary")
	}

	errctx := cerr.Field("bin_path", d.binPath).Field("args", args)

	cmd := d.executor.Command(d.binPath, args...)
	cmd.SetDir(d.workingDir.Root())

	output, err := cmd.CombinedOutput()
	if err != nil {
		return errctx.Field("output", string(output)).
			Wrap(err).
			Error(fmt.Sprintf("Error occurred while running the noise reducer: %s", string(output)))
	}

	logger.Debug(string(output))
	logger.Info("Finished noise reducer command")

	return nil
}
