package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// HarmonicTone generates a tone at freqHz with the given partial amplitudes.
// partials[0] scales the fundamental, partials[1] the second harmonic, and so
// on. Useful for exercising octave-error handling in pitch estimators.
func HarmonicTone(freqHz, sampleRate float64, partials []float64, length int) []float64 {
	out := make([]float64, length)
	for h, amp := range partials {
		if amp == 0 {
			continue
		}
		step := 2 * math.Pi * freqHz * float64(h+1) / sampleRate
		for i := range out {
			out[i] += amp * math.Sin(step*float64(i))
		}
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}
