package envvar

import (
	"fmt"
	"os"
)

const (
	ENVIRONMENT            = "ENVIRONMENT"
	PORT                   = "PORT"
	CORS_ALLOWED_ORIGINS   = "CORS_ALLOWED_ORIGINS"
	WORKING_DIR_PATH       = "WORKING_DIR_PATH"
	SESSION_ROOT_PATH      = "SESSION_ROOT_PATH"
	SPLEETER_BIN_PATH      = "SPLEETER_BIN_PATH"
	FFMPEG_BIN_PATH        = "FFMPEG_BIN_PATH"
	FFPROBE_BIN_PATH       = "FFPROBE_BIN_PATH"
	NOISE_REDUCER_BIN_PATH = "NOISE_REDUCER_BIN_PATH"
	MAX_UPLOAD_BYTES       = "MAX_UPLOAD_BYTES"
	DENOISE_STRENGTH       = "DENOISE_STRENGTH"
)

func MustGet(key string) string {
	val, isSet := os.LookupEnv(key)
	if !isSet {
		panic(fmt.Sprintf("No env variable found for key %s", key))
	}

	if val == "" {
		panic(fmt.Sprintf("Env variable is empty for key %s", key))
	}

	return val
}

func GetOrDefault(key string, defaultVal string) string {
	val, isSet := os.LookupEnv(key)
	if !isSet || val == "" {
		return defaultVal
	}

	return val
}
