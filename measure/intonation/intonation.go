// Package intonation measures how closely a detected pitch matches a target
// pitch, in musical cents.
//
// Deviations are wrapped to the nearest octave so that octave-detection
// errors, common in low voices, are not penalized asymmetrically.
package intonation

import (
	"math"

	"github.com/elobachev/vocal-couch/dsp/core"
	"github.com/elobachev/vocal-couch/dsp/pitch"
)

// CentsPerOctave is the number of cents in one octave.
const CentsPerOctave = 1200

// defaultOnPitchCents is the deviation within which a note counts as sung on
// pitch. Hand-tuned; kept configurable for empirical re-validation.
const defaultOnPitchCents = 50.0

// Config holds classification parameters.
type Config struct {
	// OnPitchCents is the maximum absolute wrapped deviation, in cents, that
	// still counts as on pitch.
	OnPitchCents float64
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the default classification configuration.
func DefaultConfig() Config {
	return Config{OnPitchCents: defaultOnPitchCents}
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

// Result describes one detected-versus-target comparison.
type Result struct {
	// Cents is the deviation wrapped to [-600, 600].
	Cents float64

	// Accuracy is a linear score in [0, 1]; 1 at zero deviation, 0 at a full
	// octave.
	Accuracy float64

	// OnPitch reports whether the deviation is within tolerance, or the
	// pitches are octave-equivalent in different octaves (an octave-detection
	// error, forgiven).
	OnPitch bool

	// OctaveEquivalent reports whether the rounded pitches share a pitch
	// class.
	OctaveEquivalent bool
}

// Cents returns the raw deviation of detected from target in cents.
// Returns NaN when either frequency is invalid.
func Cents(detected, target float64) float64 {
	if detected <= 0 || target <= 0 || !core.IsFinite(detected) || !core.IsFinite(target) {
		return math.NaN()
	}

	return CentsPerOctave * math.Log2(detected/target)
}

// WrapToOctave folds a cents deviation into [-600, 600].
func WrapToOctave(cents float64) float64 {
	if !core.IsFinite(cents) {
		return math.NaN()
	}

	for cents > CentsPerOctave/2 {
		cents -= CentsPerOctave
	}
	for cents < -CentsPerOctave/2 {
		cents += CentsPerOctave
	}

	return cents
}

// CentsToNearestOctave returns the octave-wrapped deviation of detected from
// target.
func CentsToNearestOctave(detected, target float64) float64 {
	return WrapToOctave(Cents(detected, target))
}

// OctaveEquivalent reports whether two MIDI pitches share a pitch class.
func OctaveEquivalent(midi1, midi2 int) bool {
	d := (midi1 - midi2) % 12
	return d == 0
}

// Accuracy maps an absolute cents deviation to a linear score in [0, 1],
// reaching zero at a full-octave deviation.
func Accuracy(cents float64) float64 {
	if !core.IsFinite(cents) {
		return 0
	}

	return math.Max(0, 1-math.Abs(cents)/CentsPerOctave)
}

// Classify compares a detected frequency against a target frequency.
func (cfg Config) Classify(detected, target float64) Result {
	cents := CentsToNearestOctave(detected, target)
	if math.IsNaN(cents) {
		return Result{}
	}

	detectedMIDI := int(math.Round(pitch.MIDIFromFrequency(detected)))
	targetMIDI := int(math.Round(pitch.MIDIFromFrequency(target)))
	equivalent := OctaveEquivalent(detectedMIDI, targetMIDI)

	// Octave forgiveness applies only to actual octave errors; within a
	// single octave the configured tolerance alone decides.
	octaveError := equivalent && detectedMIDI != targetMIDI

	return Result{
		Cents:            cents,
		Accuracy:         Accuracy(cents),
		OnPitch:          math.Abs(cents) <= cfg.OnPitchCents || octaveError,
		OctaveEquivalent: equivalent,
	}
}
