package sessionusecase_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stemsplit/stemsplit-be/src/pipeline/session"
	"github.com/stemsplit/stemsplit-be/src/pipeline/stem"
	sessionerrors "github.com/stemsplit/stemsplit-be/src/server/internal/session/errors"
	sessionusecase "github.com/stemsplit/stemsplit-be/src/server/internal/session/usecase"
	shared_testing "github.com/stemsplit/stemsplit-be/src/shared/testing"
)

var _ = Describe("Usecase", func() {
	var (
		manager *session.Manager
		usecase sessionusecase.Usecase
	)

	BeforeEach(func() {
		manager = shared_testing.ExpectSuccess(session.NewManager(GinkgoT().TempDir()))
		usecase = sessionusecase.NewUsecase(manager)
	})

	Describe("CreateSession", func() {
		It("creates a retrievable session", func() {
			sess := usecase.CreateSession()

			found, apiErr := usecase.GetSession(sess.ID())
			Expect(apiErr).To(BeNil())
			Expect(found).To(BeIdenticalTo(sess))
		})
	})

	Describe("GetSession", func() {
		It("maps unknown IDs to a session not found code", func() {
			_, apiErr := usecase.GetSession("never-issued")
			Expect(apiErr).NotTo(BeNil())
			Expect(apiErr.ErrorCode).To(BeEquivalentTo(sessionerrors.SessionNotFoundCode))
		})
	})

	Describe("ListArtifacts", func() {
		It("returns the session's recorded artifacts", func() {
			sess := usecase.CreateSession()
			sess.RecordArtifacts(map[stem.Name]string{
				stem.Vocals: "/out/take_vocals.wav",
			})

			artifacts, apiErr := usecase.ListArtifacts(sess.ID())
			Expect(apiErr).To(BeNil())
			Expect(artifacts).To(HaveKeyWithValue(stem.Vocals, "/out/take_vocals.wav"))
		})

		It("rejects unknown sessions", func() {
			_, apiErr := usecase.ListArtifacts("never-issued")
			Expect(apiErr).NotTo(BeNil())
			Expect(apiErr.ErrorCode).To(BeEquivalentTo(sessionerrors.SessionNotFoundCode))
		})
	})

	Describe("ArtifactPath", func() {
		var sess *session.Session

		BeforeEach(func() {
			sess = usecase.CreateSession()
			sess.RecordArtifacts(map[stem.Name]string{
				stem.Drums: "/out/take_drums.wav",
			})
		})

		It("resolves a recorded stem", func() {
			path, apiErr := usecase.ArtifactPath(sess.ID(), "drums")
			Expect(apiErr).To(BeNil())
			Expect(path).To(Equal("/out/take_drums.wav"))
		})

		It("rejects stem names outside the fixed five", func() {
			_, apiErr := usecase.ArtifactPath(sess.ID(), "guitar")
			Expect(apiErr).NotTo(BeNil())
			Expect(apiErr.ErrorCode).To(BeEquivalentTo(sessionerrors.BadStemNameCode))
		})

		It("rejects stems that were never produced", func() {
			_, apiErr := usecase.ArtifactPath(sess.ID(), "piano")
			Expect(apiErr).NotTo(BeNil())
			Expect(apiErr.ErrorCode).To(BeEquivalentTo(sessionerrors.StemNotFoundCode))
		})
	})

	Describe("EndSession", func() {
		It("makes the session unreachable", func() {
			sess := usecase.CreateSession()

			Expect(usecase.EndSession(sess.ID())).To(BeNil())

			_, apiErr := usecase.GetSession(sess.ID())
			Expect(apiErr).NotTo(BeNil())
			Expect(apiErr.ErrorCode).To(BeEquivalentTo(sessionerrors.SessionNotFoundCode))
		})

		It("rejects ending a session twice", func() {
			sess := usecase.CreateSession()
			Expect(usecase.EndSession(sess.ID())).To(BeNil())

			apiErr := usecase.EndSession(sess.ID())
			Expect(apiErr).NotTo(BeNil())
			Expect(apiErr.ErrorCode).To(BeEquivalentTo(sessionerrors.SessionNotFoundCode))
		})
	})
})
