package separationgateway_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stemsplit/stemsplit-be/src/pipeline/artifact"
	"github.com/stemsplit/stemsplit-be/src/pipeline/denoise"
	"github.com/stemsplit/stemsplit-be/src/pipeline/dummy"
	"github.com/stemsplit/stemsplit-be/src/pipeline/ingest"
	"github.com/stemsplit/stemsplit-be/src/pipeline/orchestrator"
	"github.com/stemsplit/stemsplit-be/src/pipeline/postprocess"
	"github.com/stemsplit/stemsplit-be/src/pipeline/separation"
	"github.com/stemsplit/stemsplit-be/src/pipeline/session"
	"github.com/stemsplit/stemsplit-be/src/pipeline/stem"
	"github.com/stemsplit/stemsplit-be/src/server/api_error"
	separationgateway "github.com/stemsplit/stemsplit-be/src/server/internal/separation/gateway"
	separationusecase "github.com/stemsplit/stemsplit-be/src/server/internal/separation/usecase"
	sessionusecase "github.com/stemsplit/stemsplit-be/src/server/internal/session/usecase"
	"github.com/stemsplit/stemsplit-be/src/shared/config"
	shared_testing "github.com/stemsplit/stemsplit-be/src/shared/testing"
)

var _ = Describe("Gateway", func() {
	var (
		loader  *dummy.Loader
		engine  *dummy.Engine
		sess    *session.Session
		gateway separationgateway.Gateway

		recorder *httptest.ResponseRecorder
	)

	const (
		sampleRate     = 44100
		maxUploadBytes = 1024
	)

	fullPrediction := func() separation.Prediction {
		prediction := separation.Prediction{}
		for _, stemName := range stem.AllInOrder() {
			prediction[stemName] = shared_testing.ConstWaveform(2, 32, 0.4, sampleRate)
		}
		return prediction
	}

	uploadRequest := func(fileName string, data []byte) echo.Context {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)

		part := shared_testing.ExpectSuccess(writer.CreateFormFile("file", fileName))
		shared_testing.ExpectSuccess(part.Write(data))
		Expect(writer.Close()).To(Succeed())

		request := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID()+"/separation", body)
		request.Header.Set(echo.HeaderContentType, writer.FormDataContentType())

		recorder = httptest.NewRecorder()
		return echo.New().NewContext(request, recorder)
	}

	bareRequest := func() echo.Context {
		request := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID()+"/separation", nil)
		recorder = httptest.NewRecorder()
		return echo.New().NewContext(request, recorder)
	}

	expectAPIError := func(statusCode int, errorCode string) {
		ExpectWithOffset(1, recorder.Code).To(Equal(statusCode))

		var apiError api_error.JSONAPIError
		ExpectWithOffset(1, json.Unmarshal(recorder.Body.Bytes(), &apiError)).To(Succeed())
		ExpectWithOffset(1, apiError.Code).To(Equal(errorCode))
	}

	BeforeEach(func() {
		loader = dummy.NewDummyLoader()
		loader.Waveform = shared_testing.StereoWaveform(32, 0.5, 0.1, sampleRate)

		engine = dummy.NewDummyEngine()
		engine.Prediction = fullPrediction()

		ingestor := shared_testing.ExpectSuccess(
			ingest.NewIngestor(GinkgoT().TempDir(), loader, sampleRate))
		processor := postprocess.NewProcessor(
			dummy.NewDummyDenoiser(), artifact.NewWriter(), denoise.DefaultParams())
		pipeline := orchestrator.New(ingestor, engine, processor)

		manager := shared_testing.ExpectSuccess(session.NewManager(GinkgoT().TempDir()))
		sessionUC := sessionusecase.NewUsecase(manager)
		sess = sessionUC.CreateSession()

		pipelineConfig := config.DefaultPipeline()
		pipelineConfig.MaxUploadBytes = maxUploadBytes

		gateway = separationgateway.NewGateway(
			separationusecase.NewUsecase(sessionUC, pipeline, pipelineConfig))
	})

	Describe("A valid upload", func() {
		It("responds with stem descriptors, events, and the retention notice", func() {
			echoCtx := uploadRequest("track.mp3", []byte("pretend audio"))
			Expect(gateway.Separate(echoCtx, sess.ID())).To(Succeed())
			Expect(recorder.Code).To(Equal(http.StatusOK))

			var response struct {
				SessionID string `json:"session_id"`
				Stems     map[string]struct {
					FileName    string `json:"file_name"`
					DownloadURL string `json:"download_url"`
				} `json:"stems"`
				Events    []map[string]interface{} `json:"events"`
				Retention string                   `json:"retention"`
			}
			Expect(json.Unmarshal(recorder.Body.Bytes(), &response)).To(Succeed())

			Expect(response.SessionID).To(Equal(sess.ID()))
			Expect(response.Stems).To(HaveLen(stem.Count()))
			Expect(response.Stems["vocals"].FileName).To(Equal("track_vocals.wav"))
			Expect(response.Stems["vocals"].DownloadURL).
				To(Equal("/sessions/" + sess.ID() + "/stems/vocals"))
			Expect(response.Events).NotTo(BeEmpty())
			Expect(response.Retention).To(ContainSubstring("deleted"))
		})
	})

	Describe("A request with no file field", func() {
		It("is rejected as a missing file", func() {
			echoCtx := bareRequest()
			Expect(gateway.Separate(echoCtx, sess.ID())).To(Succeed())
			expectAPIError(http.StatusBadRequest, "missing_file")
		})
	})

	Describe("An oversize upload", func() {
		It("is rejected before the pipeline ever runs", func() {
			oversize := make([]byte, maxUploadBytes+1)
			echoCtx := uploadRequest("track.mp3", oversize)
			Expect(gateway.Separate(echoCtx, sess.ID())).To(Succeed())

			expectAPIError(http.StatusRequestEntityTooLarge, "file_too_large")
			Expect(loader.LoadedPaths()).To(BeEmpty())
			Expect(engine.SeparateCalls()).To(BeEmpty())
		})
	})

	Describe("An unsupported file type", func() {
		It("is rejected as unsupported media", func() {
			echoCtx := uploadRequest("slides.pdf", []byte("%PDF"))
			Expect(gateway.Separate(echoCtx, sess.ID())).To(Succeed())
			expectAPIError(http.StatusUnsupportedMediaType, "unsupported_media")
		})
	})

	Describe("An unknown session", func() {
		It("is rejected as not found", func() {
			echoCtx := uploadRequest("track.mp3", []byte("pretend audio"))
			Expect(gateway.Separate(echoCtx, "never-issued")).To(Succeed())
			expectAPIError(http.StatusNotFound, "session_not_found")
		})
	})

	Describe("An undecodable upload", func() {
		It("is rejected as bad audio", func() {
			loader.Unparseable = true

			echoCtx := uploadRequest("track.mp3", []byte("pretend audio"))
			Expect(gateway.Separate(echoCtx, sess.ID())).To(Succeed())
			expectAPIError(http.StatusUnprocessableEntity, "bad_audio")
		})
	})
})
