package ffmpegloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/stemsplit/stemsplit-be/src/pipeline/ingest"
	"github.com/stemsplit/stemsplit-be/src/pipeline/waveform"
	"github.com/stemsplit/stemsplit-be/src/pipeline/wavfile"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/cerr"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/executor"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/working_dir"
)

var _ ingest.Loader = Loader{}

// Loader decodes any supported container (mp3/wav/flac/m4a/ogg/aac)
// by running ffmpeg to a 16-bit WAV at the target rate, then parsing
// that. ffprobe reports the native rate so the caller can surface a
// resampling notice.
type Loader struct {
	workingDir  working_dir.WorkingDir
	ffmpegPath  string
	ffprobePath string
	executor    executor.Executor
}

func NewLoader(workingDirStr string, ffmpegPath string, ffprobePath string, executor executor.Executor) (Loader, error) {
	workingDir, err := working_dir.NewWorkingDir(workingDirStr)
	if err != nil {
		return Loader{}, cerr.Wrap(err).Error("Failed to convert working dir to absolute format")
	}

	if err := os.MkdirAll(workingDir.TempDir(), os.ModePerm); err != nil {
		return Loader{}, cerr.Field("temp_dir", workingDir.TempDir()).
			Wrap(err).Error("Failed to create temp dir")
	}

	return Loader{
		workingDir:  workingDir,
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		executor:    executor,
	}, nil
}

func (l Loader) Load(ctx context.Context, path string, targetSampleRate int) (waveform.Waveform, int, error) {
	if ctx.Err() != nil {
		return waveform.Waveform{}, 0, cerr.Wrap(ctx.Err()).Error("Context cancelled before decoding could happen")
	}

	errctx := cerr.Field("path", path)

	sourceRate, err := l.probeSampleRate(path)
	if err != nil {
		return waveform.Waveform{}, 0, errctx.Wrap(err).Error("Failed to probe the source sample rate")
	}

	scratchDir, err := os.MkdirTemp(l.workingDir.TempDir(), "decode-*")
	if err != nil {
		return waveform.Waveform{}, 0, errctx.Wrap(err).Error("Failed to create decode scratch dir")
	}
	defer os.RemoveAll(scratchDir)

	decodedPath := filepath.Join(scratchDir, "decoded.wav")
	if err := l.runFFmpeg(path, decodedPath, targetSampleRate); err != nil {
		return waveform.Waveform{}, 0, errctx.Wrap(err).Error("Failed to decode audio with ffmpeg")
	}

	wave, err := wavfile.Read(decodedPath)
	if err != nil {
		return waveform.Waveform{}, 0, errctx.Wrap(err).Error("Failed to parse the decoded WAV")
	}

	return wave, sourceRate, nil
}

func (l Loader) probeSampleRate(path string) (int, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	errctx := cerr.Field("ffprobe_path", l.ffprobePath).Field("args", args)

	cmd := l.executor.Command(l.ffprobePath, args...)
	cmd.SetDir(l.workingDir.Root())

	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, errctx.Field("output", string(output)).
			Wrap(err).Error("ffprobe could not read the file")
	}

	rate, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil {
		return 0, errctx.Field("output", string(output)).
			Wrap(err).Error("ffprobe reported an unparseable sample rate")
	}

	return rate, nil
}

func (l Loader) runFFmpeg(sourcePath string, destPath string, targetSampleRate int) error {
	logger := log.WithFields(log.Fields{
		"sourcePath": sourcePath,
		"destPath":   destPath,
	})

	logger.Info("Running ffmpeg decode command")

	args := []string{
		"-y",
		"-i", sourcePath,
		"-ar", strconv.Itoa(targetSampleRate),
		"-acodec", "pcm_s16le",
		destPath,
	}

	errctx := cerr.Field("ffmpeg_path", l.ffmpegPath).Field("args", args)

	cmd := l.executor.Command(l.ffmpegPath, args...)
	cmd.SetDir(l.workingDir.Root())

	output, err := cmd.CombinedOutput()
	if err != nil {
		return errctx.Field("output", string(output)).
			Wrap(err).
			Error(fmt.Sprintf("Error occurred while running ffmpeg: %s", string(output)))
	}

	logger.Debug(string(output))
	logger.Info("Finished ffmpeg decode command")

	return nil
}
