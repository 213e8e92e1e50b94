package separationgateway

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	"github.com/stemsplit/stemsplit-be/src/pipeline/ingest"
	"github.com/stemsplit/stemsplit-be/src/pipeline/progress"
	"github.com/stemsplit/stemsplit-be/src/server/internal/errors/api"
	"github.com/stemsplit/stemsplit-be/src/server/internal/errors/gateway"
	"github.com/stemsplit/stemsplit-be/src/server/internal/lib/request"
	separationerrors "github.com/stemsplit/stemsplit-be/src/server/internal/separation/errors"
	separationusecase "github.com/stemsplit/stemsplit-be/src/server/internal/separation/usecase"
)

const uploadFormField = "file"

type Gateway struct {
	usecase separationusecase.Usecase
}

func NewGateway(usecase separationusecase.Usecase) Gateway {
	return Gateway{
		usecase: usecase,
	}
}

type stemDescriptor struct {
	FileName    string `json:"file_name"`
	DownloadURL string `json:"download_url"`
}

type separationResponse struct {
	SessionID        string                    `json:"session_id"`
	Stems            map[string]stemDescriptor `json:"stems"`
	Events           []progress.Event          `json:"events"`
	Resampled        bool                      `json:"resampled"`
	SourceSampleRate int                       `json:"source_sample_rate"`
	Retention        string                    `json:"retention"`
}

const retentionNotice = "Uploaded and produced files exist only for this session and are deleted when it ends"

// Separate handles one multipart upload. The declared size gets
// validated before the file content is even read so oversize uploads
// never touch the pipeline.
func (g Gateway) Separate(c echo.Context, sessionID string) error {
	ctx := request.Context(c)

	fileHeader, err := c.FormFile(uploadFormField)
	if err != nil {
		err = errors.Wrap(err, "Failed to read the multipart file field")
		apiErr := api.CommitError(err,
			separationerrors.MissingFileCode,
			"No file was attached to the request. Attach one as the 'file' field")
		return gateway.ErrorResponse(c, apiErr)
	}

	if apiErr := g.usecase.ValidateUpload(fileHeader.Filename, fileHeader.Size); apiErr != nil {
		return gateway.ErrorResponse(c, apiErr)
	}

	file, err := fileHeader.Open()
	if err != nil {
		err = errors.Wrap(err, "Failed to open the multipart file")
		apiErr := api.CommitError(err,
			api.DefaultErrorCode,
			"Unknown error: Failed to read the uploaded file")
		return gateway.ErrorResponse(c, apiErr)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		err = errors.Wrap(err, "Failed to read the multipart file body")
		apiErr := api.CommitError(err,
			api.DefaultErrorCode,
			"Unknown error: Failed to read the uploaded file")
		return gateway.ErrorResponse(c, apiErr)
	}

	upload := ingest.Upload{
		Data:     data,
		FileName: fileHeader.Filename,
		Size:     fileHeader.Size,
	}

	result, apiErr := g.usecase.Separate(ctx, sessionID, upload)
	if apiErr != nil {
		return gateway.ErrorResponse(c, apiErr)
	}

	stems := map[string]stemDescriptor{}
	for stemName, path := range result.Artifacts {
		stems[string(stemName)] = stemDescriptor{
			FileName:    filepath.Base(path),
			DownloadURL: "/sessions/" + sessionID + "/stems/" + string(stemName),
		}
	}

	return c.JSON(http.StatusOK, separationResponse{
		SessionID:        sessionID,
		Stems:            stems,
		Events:           result.Events,
		Resampled:        result.Resampled,
		SourceSampleRate: result.SourceSampleRate,
		Retention:        retentionNotice,
	})
}
