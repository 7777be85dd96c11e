// Command pitchtrack runs the singing analysis pipeline against a synthetic
// tone and prints the throttled snapshot stream.
//
// Usage:
//
//	pitchtrack [flags]
//
// The reference melody is a one-octave major scale starting at -root. Each
// row is one published snapshot: playback time, detected note, target note,
// deviation in cents, accuracy, and whether the tick counted as on-pitch.
//
// Examples:
//
//	pitchtrack
//	pitchtrack -freq 261.63 -root C4
//	pitchtrack -freq 220 -duration 2s -transpose -12
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/elobachev/vocal-couch/dsp/pitch"
	"github.com/elobachev/vocal-couch/score"
	"github.com/elobachev/vocal-couch/session"
)

var noteOffsets = map[string]int{
	"C": 0, "C#": 1, "D": 2, "D#": 3, "E": 4, "F": 5,
	"F#": 6, "G": 7, "G#": 8, "A": 9, "A#": 10, "B": 11,
}

func main() {
	freq := flag.Float64("freq", 440, "synthetic tone frequency in Hz")
	amplitude := flag.Float64("amplitude", 0.5, "synthetic tone amplitude")
	rate := flag.Float64("rate", 44100, "sample rate in Hz")
	windowSize := flag.Int("window", 4096, "analysis window length in samples")
	duration := flag.Duration("duration", 4*time.Second, "how long to run")
	root := flag.String("root", "A4", "root note of the reference scale, e.g. C4 or F#3")
	noteLen := flag.Float64("notelen", 0.5, "duration of each scale note in seconds")
	transpose := flag.Int("transpose", 0, "melody transposition in semitones [-12, 12]")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pitchtrack [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Runs the pitch-tracking pipeline on a synthetic tone against a major scale.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pitchtrack -freq 261.63 -root C4\n")
		fmt.Fprintf(os.Stderr, "  pitchtrack -freq 220 -duration 2s -transpose -12\n")
	}
	flag.Parse()

	rootMIDI, err := parseNote(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	tracker, err := score.NewTracker(majorScale(rootMIDI, *noteLen))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: building melody: %v\n", err)
		os.Exit(1)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	sink := &consoleSink{tw: tw}

	start := time.Now()
	clock := func() float64 { return time.Since(start).Seconds() }

	analyzer, err := session.NewAnalyzer(
		session.NewSineCapture(*freq, *amplitude, *rate),
		tracker,
		clock,
		sink,
		session.WithSampleRate(*rate),
		session.WithWindowSize(*windowSize),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *transpose != 0 {
		if err := analyzer.SetTranspose(*transpose); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Fprintf(tw, "Time [s]\tDetected\tTarget\tCents\tAccuracy\tOn pitch\n")
	fmt.Fprintf(tw, "--------\t--------\t------\t-----\t--------\t--------\n")

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	if err := analyzer.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	<-ctx.Done()
	analyzer.Stop()

	if err := tw.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to flush output: %v\n", err)
	}

	if st := analyzer.Status(); st.Err != nil {
		fmt.Fprintf(os.Stderr, "error: session failed: %v\n", st.Err)
		os.Exit(1)
	}

	stats := analyzer.Stats()
	fmt.Printf("\nticks: %d  voiced: %d  note hits: %d  mean accuracy: %.3f\n",
		stats.Ticks, stats.VoicedTicks, stats.NoteHits, stats.MeanAccuracy)
}

// parseNote resolves names like "A4", "C#3" or "db5" to a MIDI pitch.
func parseNote(name string) (int, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid note name %q", name)
	}

	split := 1
	if len(s) > 2 && (s[1] == '#' || s[1] == 'B') {
		if s[1] == 'B' {
			s = flatToSharp(s)
		}
		split = 2
	}

	offset, ok := noteOffsets[s[:split]]
	if !ok {
		return 0, fmt.Errorf("invalid note name %q", name)
	}

	var octave int
	if _, err := fmt.Sscanf(s[split:], "%d", &octave); err != nil {
		return 0, fmt.Errorf("invalid octave in %q", name)
	}

	midi := (octave+1)*12 + offset
	if midi < 0 || midi > 127 {
		return 0, fmt.Errorf("note %q outside the MIDI range", name)
	}
	return midi, nil
}

func flatToSharp(s string) string {
	// Rewrite e.g. DB4 as C#4.
	offset := noteOffsets[s[:1]] - 1
	if offset < 0 {
		offset += 12
	}
	for n, o := range noteOffsets {
		if o == offset {
			return n + s[2:]
		}
	}
	return s
}

// majorScale builds an ascending one-octave major scale as a note sequence.
func majorScale(rootMIDI int, noteLen float64) []score.Note {
	steps := []int{0, 2, 4, 5, 7, 9, 11, 12}

	notes := make([]score.Note, len(steps))
	for i, step := range steps {
		midi := rootMIDI + step
		notes[i] = score.Note{
			ID:        fmt.Sprintf("n%d", i+1),
			Start:     float64(i) * noteLen,
			Duration:  noteLen,
			MIDI:      midi,
			Frequency: pitch.FrequencyFromMIDI(float64(midi)),
			Name:      pitch.NoteName(midi),
		}
	}
	return notes
}

type consoleSink struct {
	tw *tabwriter.Writer
}

func (s *consoleSink) Snapshot(snap session.Snapshot) {
	detected, target := "-", "-"
	cents, accuracy := "-", "-"

	if snap.Pitch != nil {
		detected = fmt.Sprintf("%s (%.1f Hz)", snap.Pitch.Note, snap.Pitch.Frequency)
	}
	if snap.Target != nil {
		target = snap.Target.Name
	}
	if snap.Pitch != nil && snap.Target != nil {
		cents = fmt.Sprintf("%+.1f", snap.Cents)
		accuracy = fmt.Sprintf("%.3f", snap.Accuracy)
	}

	onPitch := ""
	if snap.OnPitch {
		onPitch = "yes"
		if snap.OctaveAdjusted {
			onPitch = "yes (octave)"
		}
	}

	fmt.Fprintf(s.tw, "%.2f\t%s\t%s\t%s\t%s\t%s\n",
		snap.Time, detected, target, cents, accuracy, onPitch)
}

func (s *consoleSink) History(points []session.HistoryPoint) {}

func (s *consoleSink) NoteHit(noteID string) {
	fmt.Fprintf(s.tw, "\t*** hit %s ***\t\t\t\t\n", noteID)
}

func (s *consoleSink) StateChanged(status session.Status) {
	if status.Err != nil {
		fmt.Fprintf(os.Stderr, "state: %s: %v\n", status.State, status.Err)
		return
	}
	fmt.Fprintf(os.Stderr, "state: %s\n", status.State)
}
