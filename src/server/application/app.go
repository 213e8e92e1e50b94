package application

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stemsplit/stemsplit-be/src/pipeline/artifact"
	"github.com/stemsplit/stemsplit-be/src/pipeline/denoise"
	"github.com/stemsplit/stemsplit-be/src/pipeline/denoise/noisetool"
	"github.com/stemsplit/stemsplit-be/src/pipeline/ingest"
	"github.com/stemsplit/stemsplit-be/src/pipeline/ingest/ffmpegloader"
	"github.com/stemsplit/stemsplit-be/src/pipeline/orchestrator"
	"github.com/stemsplit/stemsplit-be/src/pipeline/postprocess"
	"github.com/stemsplit/stemsplit-be/src/pipeline/separation"
	"github.com/stemsplit/stemsplit-be/src/pipeline/separation/spleeter"
	"github.com/stemsplit/stemsplit-be/src/pipeline/session"
	separationgateway "github.com/stemsplit/stemsplit-be/src/server/internal/separation/gateway"
	separationusecase "github.com/stemsplit/stemsplit-be/src/server/internal/separation/usecase"
	sessiongateway "github.com/stemsplit/stemsplit-be/src/server/internal/session/gateway"
	sessionusecase "github.com/stemsplit/stemsplit-be/src/server/internal/session/usecase"
	"github.com/stemsplit/stemsplit-be/src/shared/config"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/cerr"
	"github.com/stemsplit/stemsplit-be/src/shared/lib/executor"
)

func ensureOk(err error) {
	if err != nil {
		panic(err)
	}
}

type HTTPMethod string

const (
	GET    HTTPMethod = "GET"
	POST   HTTPMethod = "POST"
	DELETE HTTPMethod = "DELETE"
)

type App struct {
	echo           *echo.Echo
	port           string
	sessionManager *session.Manager
}

type Config struct {
	Pipeline           config.Pipeline
	WorkingDirPath     string
	SessionRootPath    string
	SeparatorBinPath   string
	FFmpegBinPath      string
	FFprobeBinPath     string
	NoiseReducerPath   string
	CORSAllowedOrigins []string
	Port               string
	Log                bool
}

func NewApp(config Config) App {
	e := echo.New()

	if config.Log {
		e.Use(middleware.Logger())
	}

	e.Use(middleware.BodyLimit(bodyLimit(config.Pipeline.MaxUploadBytes)))

	corsMiddleware := makeCorsMiddleware(config)

	handleRoute := func(method HTTPMethod, path string, handlerFunc echo.HandlerFunc) {
		params := func() (string, echo.HandlerFunc, echo.MiddlewareFunc) {
			return path, handlerFunc, corsMiddleware
		}

		e.OPTIONS(params())

		switch method {
		case GET:
			e.GET(params())
		case POST:
			e.POST(params())
		case DELETE:
			e.DELETE(params())
		default:
			panic("unhandled http method!")
		}
	}

	sessionManager := makeSessionManager(config)
	engine := makeEngine(config)

	// the model load is fatal for the whole process when it fails -
	// no later request could ever succeed, so halt up front instead
	// of failing every upload
	if err := engine.Initialize(); err != nil {
		cerr.Log(err)
		panic(errors.Wrap(err, "Separation engine could not be initialized, refusing to serve"))
	}

	sessionUsecase := sessionusecase.NewUsecase(sessionManager)
	sessionGateway := sessiongateway.NewGateway(sessionUsecase)

	separationUsecase := makeSeparationUsecase(config, sessionUsecase, engine)
	separationGateway := separationgateway.NewGateway(separationUsecase)

	// health check
	handleRoute(GET, "/health-check", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// session routes
	handleRoute(POST, "/sessions", sessionGateway.CreateSession)
	handleRoute(DELETE, "/sessions/:id", func(c echo.Context) error {
		sessionID := c.Param("id")
		return sessionGateway.EndSession(c, sessionID)
	})

	// separation + artifact routes
	handleRoute(POST, "/sessions/:id/separation", func(c echo.Context) error {
		sessionID := c.Param("id")
		return separationGateway.Separate(c, sessionID)
	})
	handleRoute(GET, "/sessions/:id/stems", func(c echo.Context) error {
		sessionID := c.Param("id")
		return sessionGateway.ListStems(c, sessionID)
	})
	handleRoute(GET, "/sessions/:id/stems/:stem", func(c echo.Context) error {
		sessionID := c.Param("id")
		stemName := c.Param("stem")
		return sessionGateway.DownloadStem(c, sessionID, stemName)
	})

	return App{
		echo:           e,
		port:           config.Port,
		sessionManager: sessionManager,
	}
}

func (a *App) Start() error {
	err := a.echo.Start(a.port)
	if err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "Couldn't start echo server")
	}

	return nil
}

func (a *App) Stop() error {
	// session output must not outlive the serving process
	a.sessionManager.TeardownAll()

	err := a.echo.Close()
	if err != nil {
		return errors.Wrap(err, "Failed to stop echo server")
	}

	return nil
}

func makeCorsMiddleware(config Config) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: config.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	})
}

func makeSessionManager(config Config) *session.Manager {
	manager, err := session.NewManager(config.SessionRootPath)
	ensureOk(err)
	return manager
}

func makeEngine(config Config) separation.Engine {
	engine, err := spleeter.NewEngine(config.WorkingDirPath, config.SeparatorBinPath, executor.BinaryFileExecutor{})
	ensureOk(err)
	return engine
}

func makeSeparationUsecase(
	config Config,
	sessionUsecase sessionusecase.Usecase,
	engine separation.Engine,
) separationusecase.Usecase {
	loader, err := ffmpegloader.NewLoader(config.WorkingDirPath, config.FFmpegBinPath, config.FFprobeBinPath, executor.BinaryFileExecutor{})
	ensureOk(err)

	ingestor, err := ingest.NewIngestor(config.WorkingDirPath, loader, config.Pipeline.TargetSampleRate)
	ensureOk(err)

	denoiser, err := noisetool.NewDenoiser(config.WorkingDirPath, config.NoiseReducerPath, executor.BinaryFileExecutor{})
	ensureOk(err)

	denoiseParams := denoise.Params{
		Stationary:   false,
		PropDecrease: config.Pipeline.DenoiseStrength,
	}

	processor := postprocess.NewProcessor(denoiser, artifact.NewWriter(), denoiseParams)
	pipelineOrchestrator := orchestrator.New(ingestor, engine, processor)

	return separationusecase.NewUsecase(sessionUsecase, pipelineOrchestrator, config.Pipeline)
}

func bodyLimit(maxUploadBytes int64) string {
	// echo's body limit takes a humanized string, round up to whole
	// megabytes to leave room for the multipart framing
	const mb = 1024 * 1024
	limit := (maxUploadBytes + mb - 1) / mb
	return fmt.Sprintf("%dM", limit+1)
}
