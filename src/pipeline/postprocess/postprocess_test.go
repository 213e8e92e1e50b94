package postprocess_test

import (
	"context"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stemsplit/stemsplit-be/src/pipeline/artifact"
	"github.com/stemsplit/stemsplit-be/src/pipeline/denoise"
	"github.com/stemsplit/stemsplit-be/src/pipeline/dummy"
	"github.com/stemsplit/stemsplit-be/src/pipeline/postprocess"
	"github.com/stemsplit/stemsplit-be/src/pipeline/progress"
	"github.com/stemsplit/stemsplit-be/src/pipeline/separation"
	"github.com/stemsplit/stemsplit-be/src/pipeline/stem"
	"github.com/stemsplit/stemsplit-be/src/pipeline/waveform"
	shared_testing "github.com/stemsplit/stemsplit-be/src/shared/testing"
)

var _ = Describe("Processor", func() {
	var (
		denoiser  *dummy.Denoiser
		processor postprocess.Processor
		collector *progress.Collector
		outputDir string

		prediction separation.Prediction
	)

	const (
		baseName   = "mixtape"
		sampleRate = 44100
		frames     = 64
	)

	fullPrediction := func() separation.Prediction {
		prediction := separation.Prediction{}
		for _, stemName := range stem.AllInOrder() {
			prediction[stemName] = shared_testing.StereoWaveform(frames, 0.6, 0.2, sampleRate)
		}
		return prediction
	}

	process := func() artifact.StemPaths {
		return processor.ProcessAll(context.Background(), prediction, baseName, outputDir, collector)
	}

	BeforeEach(func() {
		denoiser = dummy.NewDummyDenoiser()
		processor = postprocess.NewProcessor(denoiser, artifact.NewWriter(), denoise.DefaultParams())
		collector = progress.NewCollector()
		outputDir = GinkgoT().TempDir()

		prediction = fullPrediction()
	})

	Describe("A full five stem prediction", func() {
		It("writes one mono artifact per stem", func() {
			paths := process()
			Expect(paths).To(HaveLen(stem.Count()))

			for _, stemName := range stem.AllInOrder() {
				path, ok := paths[stemName]
				Expect(ok).To(BeTrue(), "missing artifact for %s", stemName)
				Expect(path).To(HaveSuffix(string("mixtape_" + stemName + ".wav")))
				shared_testing.ExpectMonoPCM16WAV(path, sampleRate)
			}
		})

		It("downmixes stereo stems by channel averaging", func() {
			paths := process()

			drums := shared_testing.ExpectMonoPCM16WAV(paths[stem.Drums], sampleRate)
			Expect(drums.Samples).To(HaveLen(frames))
			for _, sample := range drums.Samples {
				Expect(sample).To(BeNumerically("~", 0.4, 1e-3))
			}
		})

		It("denoises the vocal stem and only the vocal stem", func() {
			paths := process()
			Expect(denoiser.CallCount()).To(Equal(1))

			By("checking the vocal artifact carries the denoised signal")
			vocals := shared_testing.ExpectMonoPCM16WAV(paths[stem.Vocals], sampleRate)
			for _, sample := range vocals.Samples {
				Expect(sample).To(BeNumerically("~", 0.4*dummy.Attenuation, 1e-3))
			}

			By("checking a non-vocal artifact was left alone")
			bass := shared_testing.ExpectMonoPCM16WAV(paths[stem.Bass], sampleRate)
			for _, sample := range bass.Samples {
				Expect(sample).To(BeNumerically("~", 0.4, 1e-3))
			}
		})

		It("passes the configured parameters to the denoiser", func() {
			process()

			params := denoiser.LastParams()
			Expect(params.Stationary).To(BeFalse())
			Expect(params.PropDecrease).To(Equal(0.6))
		})

		It("reports per stem progress as a growing fraction", func() {
			process()

			events := collector.Events()
			Expect(events).To(HaveLen(2 * stem.Count()))

			finished := []progress.Event{}
			for _, event := range events {
				Expect(event.Stage).To(Equal(progress.StagePostProcessing))
				if event.Level == progress.Info && event.Fraction > 0 {
					finished = append(finished, event)
				}
			}

			lastFraction := 0.0
			for _, event := range finished {
				Expect(event.Fraction).To(BeNumerically(">", lastFraction))
				lastFraction = event.Fraction
			}
			Expect(lastFraction).To(Equal(1.0))
		})
	})

	Describe("A prediction with a missing stem", func() {
		BeforeEach(func() {
			delete(prediction, stem.Piano)
		})

		It("skips the missing stem and writes the rest", func() {
			paths := process()
			Expect(paths).To(HaveLen(stem.Count() - 1))
			Expect(paths).NotTo(HaveKey(stem.Piano))
		})

		It("emits a warning for the skipped stem", func() {
			process()

			warnings := eventsAtLevel(collector, progress.Warning)
			Expect(warnings).To(HaveLen(1))
			Expect(warnings[0].Stem).To(Equal(stem.Piano))
		})
	})

	Describe("A prediction with an empty stem buffer", func() {
		BeforeEach(func() {
			prediction[stem.Other] = waveform.Waveform{SampleRate: sampleRate}
		})

		It("skips the empty stem with a warning", func() {
			paths := process()
			Expect(paths).NotTo(HaveKey(stem.Other))

			warnings := eventsAtLevel(collector, progress.Warning)
			Expect(warnings).To(HaveLen(1))
			Expect(warnings[0].Stem).To(Equal(stem.Other))
		})
	})

	Describe("A denoiser failure", func() {
		BeforeEach(func() {
			denoiser.DenoiseErr = errDenoiserBroke
		})

		It("drops only the vocal stem", func() {
			paths := process()
			Expect(paths).To(HaveLen(stem.Count() - 1))
			Expect(paths).NotTo(HaveKey(stem.Vocals))
		})

		It("reports the failure as an error event and keeps going", func() {
			process()

			errorEvents := eventsAtLevel(collector, progress.Error)
			Expect(errorEvents).To(HaveLen(1))
			Expect(errorEvents[0].Stem).To(Equal(stem.Vocals))

			infoEvents := eventsAtLevel(collector, progress.Info)
			// 5 "processing" plus 4 "finished"
			Expect(infoEvents).To(HaveLen(2*stem.Count() - 1))
		})
	})

	Describe("An unwritable output directory", func() {
		BeforeEach(func() {
			outputDir = "/nonexistent/output/dir"
		})

		It("returns no artifacts and an error event per stem", func() {
			paths := process()
			Expect(paths).To(BeEmpty())

			errorEvents := eventsAtLevel(collector, progress.Error)
			Expect(errorEvents).To(HaveLen(stem.Count()))
		})
	})
})

var errDenoiserBroke = errors.New("denoiser broke")

func eventsAtLevel(collector *progress.Collector, level progress.Level) []progress.Event {
	matched := []progress.Event{}
	for _, event := range collector.Events() {
		if event.Level == level {
			matched = append(matched, event)
		}
	}
	return matched
}
