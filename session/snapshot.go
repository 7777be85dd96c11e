package session

import "github.com/elobachev/vocal-couch/score"

// PitchSample is a normalized pitch estimate.
type PitchSample struct {
	// Frequency is the detected fundamental in Hz.
	Frequency float64

	// Clarity and Confidence are estimator outputs in [0, 1].
	Clarity    float64
	Confidence float64

	// CapturedAtMs is the wall-clock capture timestamp in Unix milliseconds.
	CapturedAtMs int64

	// MIDI is the rounded MIDI pitch; Note and PitchClass are its display
	// names with and without octave, e.g. "A4" and "A".
	MIDI       int
	Note       string
	PitchClass string
}

// Snapshot is one tick's analysis result. Only the throttled subset of
// snapshots is published.
type Snapshot struct {
	// Time is the playback time of the tick in seconds.
	Time float64

	// Pitch is the detected pitch, nil when the tick was gated out or no
	// fundamental was found.
	Pitch *PitchSample

	// Target is the reference note due at Time, nil when no note interval
	// covers it.
	Target *score.Note

	// Cents is the octave-wrapped deviation in [-600, 600]; zero when either
	// side is missing.
	Cents float64

	// Accuracy is the linear score in [0, 1]; zero when either side is
	// missing.
	Accuracy float64

	// OnPitch reports whether the singer matched the target this tick.
	OnPitch bool

	// OctaveAdjusted reports whether the match was forgiven across an
	// octave: same pitch class, different octave.
	OctaveAdjusted bool
}

// HistoryPoint is one voiced tick recorded for the pitch trail.
type HistoryPoint struct {
	// Time is the playback time in seconds.
	Time float64

	// MIDI is the continuous (unrounded) MIDI pitch.
	MIDI float64

	// OnPitch mirrors the snapshot's classification at that tick.
	OnPitch bool
}

// Stats aggregates a session's take.
type Stats struct {
	// Ticks counts pipeline runs; VoicedTicks those with a detected pitch.
	Ticks       int
	VoicedTicks int

	// NoteHits counts one-shot note-hit events.
	NoteHits int

	// MeanAccuracy is the average accuracy over voiced ticks, 0 when none.
	MeanAccuracy float64
}
