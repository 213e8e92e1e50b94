package sessionusecase

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/markers"
	"github.com/stemsplit/stemsplit-be/src/pipeline/session"
	"github.com/stemsplit/stemsplit-be/src/pipeline/stem"
	"github.com/stemsplit/stemsplit-be/src/server/internal/errors/api"
	sessionerrors "github.com/stemsplit/stemsplit-be/src/server/internal/session/errors"
)

type Usecase struct {
	manager *session.Manager
}

func NewUsecase(manager *session.Manager) Usecase {
	return Usecase{
		manager: manager,
	}
}

func (u Usecase) CreateSession() *session.Session {
	return u.manager.Create()
}

func (u Usecase) GetSession(sessionID string) (*session.Session, *api.Error) {
	sess, err := u.manager.Get(sessionID)
	if err != nil {
		err = errors.Wrap(err, "Failed to look up session")
		switch {
		case markers.Is(err, session.NotFoundMark):
			return nil, api.CommitError(err,
				sessionerrors.SessionNotFoundCode,
				"This session does not exist or has already ended. Please start a new one")
		default:
			return nil, api.CommitError(err,
				api.DefaultErrorCode,
				"Unknown error: Failed to look up the session")
		}
	}

	return sess, nil
}

func (u Usecase) ListArtifacts(sessionID string) (map[stem.Name]string, *api.Error) {
	sess, apiErr := u.GetSession(sessionID)
	if apiErr != nil {
		return nil, api.WrapError(apiErr, "Cannot list artifacts")
	}

	return sess.Artifacts(), nil
}

func (u Usecase) ArtifactPath(sessionID string, stemValue string) (string, *api.Error) {
	sess, apiErr := u.GetSession(sessionID)
	if apiErr != nil {
		return "", api.WrapError(apiErr, "Cannot resolve the artifact path")
	}

	stemName, err := stem.Parse(stemValue)
	if err != nil {
		return "", api.CommitError(
			errors.Wrap(err, "Failed to parse the stem name"),
			sessionerrors.BadStemNameCode,
			"Unknown stem name. Valid stems are vocals, drums, bass, piano, other")
	}

	path, ok := sess.ArtifactPath(stemName)
	if !ok {
		return "", api.CommitError(
			errors.New("No artifact recorded for this stem"),
			sessionerrors.StemNotFoundCode,
			"This stem was not produced for the current session")
	}

	return path, nil
}

func (u Usecase) EndSession(sessionID string) *api.Error {
	err := u.manager.Teardown(sessionID)
	if err != nil {
		err = errors.Wrap(err, "Failed to tear down session")
		switch {
		case markers.Is(err, session.NotFoundMark):
			return api.CommitError(err,
				sessionerrors.SessionNotFoundCode,
				"This session does not exist or has already ended")
		default:
			return api.CommitError(err,
				api.DefaultErrorCode,
				"Unknown error: Failed to end the session")
		}
	}

	return nil
}
