package sessiongateway

import (
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/stemsplit/stemsplit-be/src/server/internal/errors/api"
	"github.com/stemsplit/stemsplit-be/src/server/internal/errors/gateway"
	sessionusecase "github.com/stemsplit/stemsplit-be/src/server/internal/session/usecase"
)

type Gateway struct {
	usecase sessionusecase.Usecase
}

func NewGateway(usecase sessionusecase.Usecase) Gateway {
	return Gateway{
		usecase: usecase,
	}
}

type sessionResponse struct {
	ID string `json:"id"`
	// a session and everything uploaded or produced in it vanishes
	// when the session ends
	Retention string `json:"retention"`
}

const retentionNotice = "Uploaded and produced files exist only for this session and are deleted when it ends"

func (g Gateway) CreateSession(c echo.Context) error {
	sess := g.usecase.CreateSession()

	return c.JSON(http.StatusCreated, sessionResponse{
		ID:        sess.ID(),
		Retention: retentionNotice,
	})
}

type stemListResponse struct {
	Stems map[string]string `json:"stems"`
}

func (g Gateway) ListStems(c echo.Context, sessionID string) error {
	artifacts, apiErr := g.usecase.ListArtifacts(sessionID)
	if apiErr != nil {
		apiErr = api.WrapError(apiErr, "Failed to list stems")
		return gateway.ErrorResponse(c, apiErr)
	}

	stems := map[string]string{}
	for stemName, path := range artifacts {
		stems[string(stemName)] = filepath.Base(path)
	}

	return c.JSON(http.StatusOK, stemListResponse{Stems: stems})
}

func (g Gateway) DownloadStem(c echo.Context, sessionID string, stemName string) error {
	path, apiErr := g.usecase.ArtifactPath(sessionID, stemName)
	if apiErr != nil {
		apiErr = api.WrapError(apiErr, "Failed to resolve the stem download")
		return gateway.ErrorResponse(c, apiErr)
	}

	return c.Attachment(path, filepath.Base(path))
}

func (g Gateway) EndSession(c echo.Context, sessionID string) error {
	if apiErr := g.usecase.EndSession(sessionID); apiErr != nil {
		apiErr = api.WrapError(apiErr, "Failed to end the session")
		return gateway.ErrorResponse(c, apiErr)
	}

	return c.NoContent(http.StatusNoContent)
}
