package gateway

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stemsplit/stemsplit-be/src/server/api_error"
	"github.com/stemsplit/stemsplit-be/src/server/internal/errors/api"
	separationerrors "github.com/stemsplit/stemsplit-be/src/server/internal/separation/errors"
	sessionerrors "github.com/stemsplit/stemsplit-be/src/server/internal/session/errors"
)

var httpStatusCodeMap = map[api.ErrorCode]int{
	api.DefaultErrorCode:                  http.StatusInternalServerError,
	separationerrors.MissingFileCode:      http.StatusBadRequest,
	separationerrors.FileTooLargeCode:     http.StatusRequestEntityTooLarge,
	separationerrors.UnsupportedMediaCode: http.StatusUnsupportedMediaType,
	separationerrors.BadAudioCode:         http.StatusUnprocessableEntity,
	separationerrors.SeparationFailedCode: http.StatusUnprocessableEntity,
	separationerrors.NoStemsCode:          http.StatusUnprocessableEntity,
	sessionerrors.SessionNotFoundCode:     http.StatusNotFound,
	sessionerrors.StemNotFoundCode:        http.StatusNotFound,
	sessionerrors.BadStemNameCode:         http.StatusBadRequest,
}

func ErrorResponse(c echo.Context, err *api.Error) error {
	statusCode, ok := httpStatusCodeMap[err.ErrorCode]
	if !ok {
		msg := fmt.Sprintf("Error code %s has no HTTP status code mapping", err.ErrorCode)
		panic(msg)
	}

	return c.JSON(statusCode, api_error.JSONAPIError{
		Code:         string(err.ErrorCode),
		Msg:          err.UserMessage,
		ErrorDetails: err.Error(),
	})
}
