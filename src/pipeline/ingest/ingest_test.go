package ingest_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors/markers"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stemsplit/stemsplit-be/src/pipeline/dummy"
	"github.com/stemsplit/stemsplit-be/src/pipeline/ingest"
	shared_testing "github.com/stemsplit/stemsplit-be/src/shared/testing"
)

var _ = Describe("Upload", func() {
	Describe("BaseName", func() {
		It("strips the extension", func() {
			upload := ingest.Upload{FileName: "my song.mp3"}
			Expect(upload.BaseName()).To(Equal("my song"))
		})

		It("keeps earlier dots in the name", func() {
			upload := ingest.Upload{FileName: "mix.v2.final.flac"}
			Expect(upload.BaseName()).To(Equal("mix.v2.final"))
		})

		It("ignores any directory part of the submitted name", func() {
			upload := ingest.Upload{FileName: "../../etc/passwd.wav"}
			Expect(upload.BaseName()).To(Equal("passwd"))
		})
	})
})

var _ = Describe("Ingestor", func() {
	var (
		loader   *dummy.Loader
		ingestor ingest.Ingestor
		upload   ingest.Upload
	)

	const sampleRate = 44100

	ingestUpload := func() (func(), error) {
		_, _, cleanup, err := ingestor.Ingest(context.Background(), upload)
		return cleanup, err
	}

	BeforeEach(func() {
		loader = dummy.NewDummyLoader()
		loader.Waveform = shared_testing.StereoWaveform(32, 0.5, 0.1, sampleRate)

		ingestor = shared_testing.ExpectSuccess(
			ingest.NewIngestor(GinkgoT().TempDir(), loader, sampleRate))

		upload = ingest.Upload{
			Data:     []byte("pretend audio bytes"),
			FileName: "track.mp3",
			Size:     19,
		}
	})

	Describe("A decodable upload", func() {
		It("hands the loader a temp file with the original name and bytes", func() {
			cleanup, err := ingestUpload()
			Expect(err).NotTo(HaveOccurred())
			defer cleanup()

			loadedPaths := loader.LoadedPaths()
			Expect(loadedPaths).To(HaveLen(1))
			Expect(filepath.Base(loadedPaths[0])).To(Equal("track.mp3"))

			written := shared_testing.ExpectSuccess(os.ReadFile(loadedPaths[0]))
			Expect(written).To(Equal(upload.Data))
		})

		It("returns the decoded waveform at the target rate", func() {
			wave, result, cleanup, err := ingestor.Ingest(context.Background(), upload)
			Expect(err).NotTo(HaveOccurred())
			defer cleanup()

			Expect(wave.SampleRate).To(Equal(sampleRate))
			Expect(wave.NumChannels()).To(Equal(2))
			Expect(result.Resampled).To(BeFalse())
			Expect(result.SourceSampleRate).To(Equal(sampleRate))
		})

		It("removes the temp file when cleanup runs", func() {
			cleanup, err := ingestUpload()
			Expect(err).NotTo(HaveOccurred())

			tempPath := loader.LoadedPaths()[0]
			_, statErr := os.Stat(tempPath)
			Expect(statErr).NotTo(HaveOccurred())

			cleanup()

			_, statErr = os.Stat(tempPath)
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})

		It("uses a fresh temp location per ingest", func() {
			firstCleanup := shared_testing.ExpectSuccess(ingestUpload())
			defer firstCleanup()
			secondCleanup := shared_testing.ExpectSuccess(ingestUpload())
			defer secondCleanup()

			loadedPaths := loader.LoadedPaths()
			Expect(loadedPaths).To(HaveLen(2))
			Expect(loadedPaths[0]).NotTo(Equal(loadedPaths[1]))
		})
	})

	Describe("A source at a different native rate", func() {
		BeforeEach(func() {
			loader.SourceRate = 22050
		})

		It("flags the resample", func() {
			_, result, cleanup, err := ingestor.Ingest(context.Background(), upload)
			Expect(err).NotTo(HaveOccurred())
			defer cleanup()

			Expect(result.Resampled).To(BeTrue())
			Expect(result.SourceSampleRate).To(Equal(22050))
		})
	})

	Describe("An undecodable upload", func() {
		BeforeEach(func() {
			loader.Unparseable = true
		})

		It("fails with a decode error", func() {
			_, err := ingestUpload()
			Expect(err).To(HaveOccurred())
			Expect(markers.Is(err, ingest.DecodeMark)).To(BeTrue())
		})

		It("cleans up the temp file itself", func() {
			_, err := ingestUpload()
			Expect(err).To(HaveOccurred())

			tempPath := loader.LoadedPaths()[0]
			_, statErr := os.Stat(tempPath)
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})
	})
})
