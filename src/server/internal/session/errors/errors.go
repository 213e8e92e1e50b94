package sessionerrors

import (
	"github.com/stemsplit/stemsplit-be/src/server/internal/errors/api"
)

const (
	SessionNotFoundCode = api.ErrorCode("session_not_found")
	StemNotFoundCode    = api.ErrorCode("stem_not_found")
	BadStemNameCode     = api.ErrorCode("bad_stem_name")
)
