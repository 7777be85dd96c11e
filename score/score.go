// Package score holds the reference melody a singer is matched against and
// tracks which of its notes is due at a given playback time.
package score

import (
	"fmt"
	"math"

	"github.com/elobachev/vocal-couch/dsp/core"
	"github.com/elobachev/vocal-couch/dsp/pitch"
)

// TransposeLimit bounds the transposition offset in semitones.
const TransposeLimit = 12

// Note is one reference note of the melody. Notes are immutable; the tracker
// only ever hands out copies.
type Note struct {
	// ID identifies the note instance. Transposition never changes it, so
	// note-hit identity survives pitch shifts.
	ID string

	// Start and Duration are in playback seconds.
	Start    float64
	Duration float64

	// MIDI and Frequency describe the reference pitch; Name is the display
	// name, e.g. "A4".
	MIDI      int
	Frequency float64
	Name      string

	// Lyric is the optional syllable sung on this note.
	Lyric string
}

// End returns the end time of the note interval.
func (n Note) End() float64 {
	return n.Start + n.Duration
}

// Contains reports whether t falls within [Start, End].
func (n Note) Contains(t float64) bool {
	return t >= n.Start && t <= n.End()
}

// Transposed returns a copy shifted by the given number of semitones. Pitch,
// frequency and display name are recomputed; the id is unchanged.
func (n Note) Transposed(semitones int) Note {
	if semitones == 0 {
		return n
	}

	out := n
	out.MIDI = n.MIDI + semitones
	out.Frequency = n.Frequency * math.Pow(2, float64(semitones)/12)
	out.Name = pitch.NoteName(out.MIDI)

	return out
}

// Tracker maintains a cursor into an ordered note sequence.
//
// Under monotonic playback the lookup is amortized O(1); backward seeks are
// handled by retreating the cursor, at O(distance) cost for large jumps.
type Tracker struct {
	notes     []Note
	cursor    int
	transpose int
}

// NewTracker creates a tracker over notes ordered by start time.
func NewTracker(notes []Note) (*Tracker, error) {
	if len(notes) == 0 {
		return nil, fmt.Errorf("score: empty melody")
	}

	for i, n := range notes {
		if n.ID == "" {
			return nil, fmt.Errorf("score: note %d has no id", i)
		}
		if n.Start < 0 || !core.IsFinite(n.Start) {
			return nil, fmt.Errorf("score: note %q has invalid start %v", n.ID, n.Start)
		}
		if n.Duration <= 0 || !core.IsFinite(n.Duration) {
			return nil, fmt.Errorf("score: note %q has invalid duration %v", n.ID, n.Duration)
		}
		if n.Frequency <= 0 || !core.IsFinite(n.Frequency) {
			return nil, fmt.Errorf("score: note %q has invalid frequency %v", n.ID, n.Frequency)
		}
		if i > 0 && n.Start < notes[i-1].Start {
			return nil, fmt.Errorf("score: note %q starts before its predecessor", n.ID)
		}
	}

	owned := make([]Note, len(notes))
	copy(owned, notes)

	return &Tracker{notes: owned}, nil
}

// Len returns the number of notes in the melody.
func (t *Tracker) Len() int {
	return len(t.notes)
}

// SetTranspose sets the transposition offset in semitones, in
// [-TransposeLimit, TransposeLimit].
func (t *Tracker) SetTranspose(semitones int) error {
	if semitones < -TransposeLimit || semitones > TransposeLimit {
		return fmt.Errorf("score: transpose %d out of [-%d, %d]", semitones, TransposeLimit, TransposeLimit)
	}

	t.transpose = semitones

	return nil
}

// Transpose returns the current transposition offset.
func (t *Tracker) Transpose() int {
	return t.transpose
}

// Reset rewinds the cursor to the first note.
func (t *Tracker) Reset() {
	t.cursor = 0
}

// Candidate moves the cursor for playback time at and returns the note it
// lands on, whether or not the note's interval covers at.
func (t *Tracker) Candidate(at float64) (Note, bool) {
	if !core.IsFinite(at) {
		return Note{}, false
	}

	for t.cursor < len(t.notes)-1 && at > t.notes[t.cursor].End() {
		t.cursor++
	}

	for t.cursor > 0 && at < t.notes[t.cursor].Start {
		t.cursor--
	}

	return t.notes[t.cursor], true
}

// Active returns the note due at playback time at, transposed by the current
// offset. It reports false when no note interval covers at.
func (t *Tracker) Active(at float64) (Note, bool) {
	candidate, ok := t.Candidate(at)
	if !ok || !candidate.Contains(at) {
		return Note{}, false
	}

	return candidate.Transposed(t.transpose), true
}
