package pitch

import (
	"fmt"
	"math"
)

// referenceFreq is the tuning reference: MIDI 69 (A4) at 440 Hz.
const (
	referenceFreq = 440.0
	referenceMIDI = 69.0
)

// chromatic is the pitch-class name table indexed by midi mod 12.
var chromatic = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// MIDIFromFrequency converts a frequency in Hz to a continuous MIDI-style
// pitch number. Returns NaN for non-positive frequencies.
func MIDIFromFrequency(freq float64) float64 {
	if freq <= 0 {
		return math.NaN()
	}

	return referenceMIDI + 12*math.Log2(freq/referenceFreq)
}

// FrequencyFromMIDI converts a MIDI pitch number to a frequency in Hz.
func FrequencyFromMIDI(midi float64) float64 {
	return referenceFreq * math.Pow(2, (midi-referenceMIDI)/12)
}

// PitchClass returns the octave-free note name of a MIDI pitch, e.g. "A".
func PitchClass(midi int) string {
	idx := midi % 12
	if idx < 0 {
		idx += 12
	}

	return chromatic[idx]
}

// Octave returns the scientific-pitch octave of a MIDI pitch; MIDI 60 is C4.
func Octave(midi int) int {
	return int(math.Floor(float64(midi)/12)) - 1
}

// NoteName returns the note name with octave of a MIDI pitch, e.g. "A4".
func NoteName(midi int) string {
	return fmt.Sprintf("%s%d", PitchClass(midi), Octave(midi))
}
