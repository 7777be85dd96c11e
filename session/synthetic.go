package session

import (
	"context"
	"errors"
	"math"
)

// SineCapture is a synthetic capture source producing a steady sine tone.
// It backs the demo command and makes full-pipeline runs reproducible
// without a microphone.
type SineCapture struct {
	freq      float64
	amplitude float64
	rate      float64
}

// NewSineCapture creates a synthetic source for the given tone.
func NewSineCapture(freqHz, amplitude, sampleRate float64) *SineCapture {
	return &SineCapture{freq: freqHz, amplitude: amplitude, rate: sampleRate}
}

// Start implements Capture. It never fails.
func (c *SineCapture) Start(_ context.Context) (CaptureSession, error) {
	return &sineSession{freq: c.freq, amplitude: c.amplitude, rate: c.rate}, nil
}

type sineSession struct {
	freq      float64
	amplitude float64
	rate      float64
	phase     float64
	stopped   bool
}

func (s *sineSession) ReadWindow(dst []float64) error {
	if s.stopped {
		return errors.New("session: synthetic capture stopped")
	}

	step := 2 * math.Pi * s.freq / s.rate
	for i := range dst {
		dst[i] = s.amplitude * math.Sin(s.phase)
		s.phase += step
	}
	s.phase = math.Mod(s.phase, 2*math.Pi)

	return nil
}

func (s *sineSession) SampleRate() float64 {
	return s.rate
}

func (s *sineSession) Stop() error {
	s.stopped = true
	return nil
}
