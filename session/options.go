package session

import (
	"time"

	"github.com/elobachev/vocal-couch/dsp/core"
)

const (
	defaultTickInterval     = 80 * time.Millisecond
	defaultSnapshotInterval = 66 * time.Millisecond
	defaultHistoryInterval  = 100 * time.Millisecond

	defaultAcquireAttempts = 3
	defaultAcquireBackoff  = 100 * time.Millisecond
)

// Config holds analyzer parameters.
type Config struct {
	core.ProcessorConfig

	// TickInterval is the fixed analysis period.
	TickInterval time.Duration

	// SnapshotInterval and HistoryInterval bound how often the two output
	// channels publish.
	SnapshotInterval time.Duration
	HistoryInterval  time.Duration

	// AcquireAttempts bounds capture acquisition retries; AcquireBackoff is
	// the base inter-attempt delay, scaled by the attempt number.
	AcquireAttempts int
	AcquireBackoff  time.Duration

	// MinFreq and MaxFreq bound the estimator's search range in Hz; zero
	// keeps the estimator defaults.
	MinFreq float64
	MaxFreq float64

	// VADThreshold is the gate's RMS floor; zero keeps the gate default.
	VADThreshold float64

	// OnPitchCents is the classification tolerance; zero keeps the default.
	OnPitchCents float64
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the default analyzer configuration.
func DefaultConfig() Config {
	return Config{
		ProcessorConfig:  core.DefaultProcessorConfig(),
		TickInterval:     defaultTickInterval,
		SnapshotInterval: defaultSnapshotInterval,
		HistoryInterval:  defaultHistoryInterval,
		AcquireAttempts:  defaultAcquireAttempts,
		AcquireBackoff:   defaultAcquireBackoff,
	}
}

// WithSampleRate sets the expected capture sample rate.
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

// WithTickInterval sets the analysis period.
func WithTickInterval(interval time.Duration) Option {
	return func(cfg *Config) {
		if interval > 0 {
			cfg.TickInterval = interval
		}
	}
}

// WithThrottle sets the minimum spacing of snapshot and history publishes.
func WithThrottle(snapshot, history time.Duration) Option {
	return func(cfg *Config) {
		if snapshot > 0 {
			cfg.SnapshotInterval = snapshot
		}
		if history > 0 {
			cfg.HistoryInterval = history
		}
	}
}

// WithAcquireRetry sets the acquisition attempt budget and base backoff.
func WithAcquireRetry(attempts int, backoff time.Duration) Option {
	return func(cfg *Config) {
		if attempts > 0 {
			cfg.AcquireAttempts = attempts
		}
		if backoff >= 0 {
			cfg.AcquireBackoff = backoff
		}
	}
}

// WithFreqRange sets the estimator's frequency search range.
func WithFreqRange(minFreq, maxFreq float64) Option {
	return func(cfg *Config) {
		if minFreq > 0 && maxFreq > minFreq {
			cfg.MinFreq = minFreq
			cfg.MaxFreq = maxFreq
		}
	}
}

// WithVADThreshold sets the voice activity gate's RMS floor.
func WithVADThreshold(threshold float64) Option {
	return func(cfg *Config) {
		if threshold > 0 {
			cfg.VADThreshold = threshold
		}
	}
}

// WithOnPitchCents sets the on-pitch deviation tolerance.
func WithOnPitchCents(cents float64) Option {
	return func(cfg *Config) {
		if cents > 0 {
			cfg.OnPitchCents = cents
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
