package pitch

import (
	"math"
	"testing"
)

func TestMIDIFromFrequency(t *testing.T) {
	if got := MIDIFromFrequency(440); math.Abs(got-69) > 1e-9 {
		t.Fatalf("A4: got %v", got)
	}
	if got := MIDIFromFrequency(220); math.Abs(got-57) > 1e-9 {
		t.Fatalf("A3: got %v", got)
	}
	if got := MIDIFromFrequency(261.6255653); math.Abs(got-60) > 1e-6 {
		t.Fatalf("C4: got %v", got)
	}
	if !math.IsNaN(MIDIFromFrequency(0)) || !math.IsNaN(MIDIFromFrequency(-5)) {
		t.Fatalf("non-positive frequencies must map to NaN")
	}
}

func TestFrequencyFromMIDIRoundTrip(t *testing.T) {
	for midi := 40.0; midi <= 90; midi++ {
		freq := FrequencyFromMIDI(midi)
		back := MIDIFromFrequency(freq)
		if math.Abs(back-midi) > 1e-9 {
			t.Fatalf("round trip failed at midi %v: got %v", midi, back)
		}
	}
}

func TestNoteNames(t *testing.T) {
	cases := []struct {
		midi int
		name string
	}{
		{60, "C4"},
		{69, "A4"},
		{61, "C#4"},
		{59, "B3"},
		{21, "A0"},
		{108, "C8"},
	}

	for _, c := range cases {
		if got := NoteName(c.midi); got != c.name {
			t.Fatalf("NoteName(%d): got %q, want %q", c.midi, got, c.name)
		}
	}
}

func TestPitchClassNegative(t *testing.T) {
	if got := PitchClass(-3); got != "A" {
		t.Fatalf("PitchClass(-3): got %q", got)
	}
	if got := Octave(0); got != -1 {
		t.Fatalf("Octave(0): got %d", got)
	}
}
