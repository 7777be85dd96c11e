package pitch

import "github.com/elobachev/vocal-couch/dsp/core"

const (
	defaultMinFreq   = 80.0
	defaultMaxFreq   = 2000.0
	defaultThreshold = 0.15

	// Subharmonic-correction margins. Hand-tuned; kept configurable for
	// empirical re-validation.
	defaultSubharmonicMargin2 = 0.015
	defaultSubharmonicMargin3 = 0.02
)

// Config holds estimator parameters.
type Config struct {
	core.ProcessorConfig

	// MinFreq and MaxFreq bound the frequency search range in Hz.
	MinFreq float64
	MaxFreq float64

	// Threshold is the CMNDF level below which a lag qualifies as a pitch
	// candidate.
	Threshold float64

	// SubharmonicMargin2 and SubharmonicMargin3 are the CMNDF improvements
	// required to prefer the doubled and tripled lag respectively.
	SubharmonicMargin2 float64
	SubharmonicMargin3 float64
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the default estimator configuration.
func DefaultConfig() Config {
	return Config{
		ProcessorConfig:    core.DefaultProcessorConfig(),
		MinFreq:            defaultMinFreq,
		MaxFreq:            defaultMaxFreq,
		Threshold:          defaultThreshold,
		SubharmonicMargin2: defaultSubharmonicMargin2,
		SubharmonicMargin3: defaultSubharmonicMargin3,
	}
}

// WithSampleRate sets the capture sample rate.
func WithSampleRate(sampleRate float64) Option {
	return func(cfg *Config) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithWindowSize sets the analysis window length in samples.
func WithWindowSize(windowSize int) Option {
	return func(cfg *Config) {
		if windowSize > 0 {
			cfg.WindowSize = windowSize
		}
	}
}

// WithFreqRange sets the frequency search range in Hz.
func WithFreqRange(minFreq, maxFreq float64) Option {
	return func(cfg *Config) {
		if minFreq > 0 && maxFreq > minFreq {
			cfg.MinFreq = minFreq
			cfg.MaxFreq = maxFreq
		}
	}
}

// WithThreshold sets the CMNDF candidate threshold.
func WithThreshold(threshold float64) Option {
	return func(cfg *Config) {
		if threshold > 0 && threshold < 1 {
			cfg.Threshold = threshold
		}
	}
}

// WithSubharmonicMargins sets the CMNDF margins for the doubled and tripled
// lag checks. Zero disables the respective check.
func WithSubharmonicMargins(margin2, margin3 float64) Option {
	return func(cfg *Config) {
		if margin2 >= 0 {
			cfg.SubharmonicMargin2 = margin2
		}
		if margin3 >= 0 {
			cfg.SubharmonicMargin3 = margin3
		}
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
