package separationerrors

import (
	"github.com/stemsplit/stemsplit-be/src/server/internal/errors/api"
)

const (
	MissingFileCode      = api.ErrorCode("missing_file")
	FileTooLargeCode     = api.ErrorCode("file_too_large")
	UnsupportedMediaCode = api.ErrorCode("unsupported_media")
	BadAudioCode         = api.ErrorCode("bad_audio")
	SeparationFailedCode = api.ErrorCode("separation_failed")
	NoStemsCode          = api.ErrorCode("no_stems_produced")
)
