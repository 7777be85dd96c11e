// Package vad implements a simple energy-threshold voice activity gate.
//
// The gate rejects analysis windows whose root-mean-square energy is below a
// configurable floor, so that downstream pitch estimation never runs on
// silence or low-level background noise.
package vad

import (
	"math"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/elobachev/vocal-couch/dsp/core"
)

// defaultThreshold is the RMS floor on a [-1, 1] amplitude scale. Hand-tuned;
// kept configurable for empirical re-validation.
const defaultThreshold = 0.01

// Config holds gate parameters.
type Config struct {
	// Threshold is the minimum RMS energy for a window to count as voiced.
	Threshold float64
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the default gate configuration.
func DefaultConfig() Config {
	return Config{Threshold: defaultThreshold}
}

// WithThreshold sets the RMS floor.
func WithThreshold(threshold float64) Option {
	return func(cfg *Config) {
		if threshold > 0 {
			cfg.Threshold = threshold
		}
	}
}

// Gate measures window energy and decides whether a window is worth analyzing.
//
// The gate is stateful only in that it owns a scratch buffer reused across
// calls; it is not safe for concurrent use.
type Gate struct {
	threshold float64
	squares   []float64
}

// NewGate creates a gate with the given options.
func NewGate(opts ...Option) *Gate {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return &Gate{threshold: cfg.Threshold}
}

// Threshold returns the configured RMS floor.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// Measure computes the RMS energy of samples and reports whether the window
// passes the gate. Windows with non-finite energy never pass.
func (g *Gate) Measure(samples []float64) (rms float64, voiced bool) {
	if len(samples) == 0 {
		return 0, false
	}

	g.squares = core.EnsureLen(g.squares, len(samples))
	vecmath.MulBlock(g.squares, samples, samples)

	sum := 0.0
	for _, sq := range g.squares {
		sum += sq
	}

	rms = math.Sqrt(sum / float64(len(samples)))
	if !core.IsFinite(rms) {
		return rms, false
	}

	return rms, rms >= g.threshold
}
