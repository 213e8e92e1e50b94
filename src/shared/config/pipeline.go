package config

// Pipeline holds the static pipeline configuration. Nothing here is
// negotiated at runtime.
type Pipeline struct {
	// TargetSampleRate is the working rate every input is resampled
	// to. The pretrained model was trained at 44.1kHz.
	TargetSampleRate int

	// MaxUploadBytes bounds the upload size. Enforced before the
	// pipeline ever runs.
	MaxUploadBytes int64

	// DenoiseStrength is the vocal noise suppression strength.
	DenoiseStrength float64
}

func DefaultPipeline() Pipeline {
	return Pipeline{
		TargetSampleRate: 44100,
		MaxUploadBytes:   100 * 1024 * 1024,
		DenoiseStrength:  0.6,
	}
}

// AllowedExtensions is the upload allow list. The loader can decode
// all of these.
var AllowedExtensions = []string{".mp3", ".wav", ".flac", ".m4a", ".ogg", ".aac"}
