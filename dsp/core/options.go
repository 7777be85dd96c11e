package core

// ProcessorConfig defines common analysis settings.
type ProcessorConfig struct {
	SampleRate float64
	WindowSize int
}

// ProcessorOption mutates a ProcessorConfig.
type ProcessorOption func(*ProcessorConfig)

// DefaultProcessorConfig returns sensible defaults for voice analysis.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		SampleRate: 44100,
		WindowSize: 4096,
	}
}

// WithSampleRate sets the capture sample rate.
func WithSampleRate(sampleRate float64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithWindowSize sets the analysis window length in samples.
func WithWindowSize(windowSize int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if windowSize > 0 {
			cfg.WindowSize = windowSize
		}
	}
}

// ApplyProcessorOptions applies zero or more options to the default config.
func ApplyProcessorOptions(opts ...ProcessorOption) ProcessorConfig {
	cfg := DefaultProcessorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
