package main

import (
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
	"github.com/stemsplit/stemsplit-be/src/server/application"
	"github.com/stemsplit/stemsplit-be/src/shared/config"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/env"
	"github.com/stemsplit/stemsplit-be/src/shared/values/dev"
	"github.com/stemsplit/stemsplit-be/src/shared/values/envvar"
)

func main() {
	var appConfig application.Config

	switch env.Get() {
	case env.Production:
		log.SetHandler(json.New(os.Stdout))

		commaSeparatedOrigins := envvar.MustGet(envvar.CORS_ALLOWED_ORIGINS)
		allowedOrigins := strings.Split(commaSeparatedOrigins, ",")

		appConfig = application.Config{
			Pipeline:           pipelineConfig(),
			WorkingDirPath:     envvar.MustGet(envvar.WORKING_DIR_PATH),
			SessionRootPath:    envvar.MustGet(envvar.SESSION_ROOT_PATH),
			SeparatorBinPath:   envvar.MustGet(envvar.SPLEETER_BIN_PATH),
			FFmpegBinPath:      envvar.MustGet(envvar.FFMPEG_BIN_PATH),
			FFprobeBinPath:     envvar.MustGet(envvar.FFPROBE_BIN_PATH),
			NoiseReducerPath:   envvar.MustGet(envvar.NOISE_REDUCER_BIN_PATH),
			CORSAllowedOrigins: allowedOrigins,
			Port:               ":" + envvar.GetOrDefault(envvar.PORT, dev.Port),
			Log:                true,
		}

	case env.Development:
		log.SetHandler(cli.New(os.Stdout))

		appConfig = application.Config{
			Pipeline:           pipelineConfig(),
			WorkingDirPath:     dev.WorkingDirPath,
			SessionRootPath:    dev.SessionRootPath,
			SeparatorBinPath:   config.SpleeterPath(),
			FFmpegBinPath:      config.FFmpegPath(),
			FFprobeBinPath:     config.FFprobePath(),
			NoiseReducerPath:   config.NoiseReducerPath(),
			CORSAllowedOrigins: []string{dev.CORSAllowedOrigins},
			Port:               ":" + dev.Port,
			Log:                true,
		}

	default:
		panic("Unexpected environment")
	}

	app := application.NewApp(appConfig)

	// a refresh-or-exit wipes everything: tear sessions down before
	// the process goes away
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		if err := app.Stop(); err != nil {
			log.WithError(err).Error("Failed to stop the app cleanly")
		}
		os.Exit(0)
	}()

	if err := app.Start(); err != nil {
		panic(err)
	}
}

func pipelineConfig() config.Pipeline {
	pipeline := config.DefaultPipeline()

	if maxBytes := envvar.GetOrDefault(envvar.MAX_UPLOAD_BYTES, ""); maxBytes != "" {
		pipeline.MaxUploadBytes = mustParseInt(maxBytes)
	}

	if strength := envvar.GetOrDefault(envvar.DENOISE_STRENGTH, ""); strength != "" {
		pipeline.DenoiseStrength = mustParseFloat(strength)
	}

	return pipeline
}

func mustParseInt(value string) int64 {
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		panic("Unparseable integer env var value: " + value)
	}
	return parsed
}

func mustParseFloat(value string) float64 {
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		panic("Unparseable float env var value: " + value)
	}
	return parsed
}
