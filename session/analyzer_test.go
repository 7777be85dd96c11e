package session

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/elobachev/vocal-couch/internal/testutil"
	"github.com/elobachev/vocal-couch/score"
)

type recordSink struct {
	mu      sync.Mutex
	snaps   []Snapshot
	batches [][]HistoryPoint
	hits    []string
	states  []Status
}

func (s *recordSink) Snapshot(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
}

func (s *recordSink) History(points []HistoryPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, points)
}

func (s *recordSink) NoteHit(noteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = append(s.hits, noteID)
}

func (s *recordSink) StateChanged(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, status)
}

func (s *recordSink) hitIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.hits...)
}

func melodyAB(freq float64, midi int) *score.Tracker {
	tr, err := score.NewTracker([]score.Note{
		{ID: "a", Start: 0, Duration: 1, MIDI: midi, Frequency: freq, Name: "A4"},
		{ID: "b", Start: 1, Duration: 1, MIDI: midi, Frequency: freq, Name: "A4"},
	})
	if err != nil {
		panic(err)
	}
	return tr
}

func newTestAnalyzer(t *testing.T, tracker *score.Tracker, sink Sink, opts ...Option) *Analyzer {
	t.Helper()

	a, err := NewAnalyzer(NewSineCapture(440, 0.5, 44100), tracker, func() float64 { return 0 }, sink, opts...)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return a
}

func TestStepDetectsPitchAgainstTarget(t *testing.T) {
	sink := &recordSink{}
	a := newTestAnalyzer(t, melodyAB(440, 69), sink)

	window := testutil.DeterministicSine(440, 44100, 0.5, 4096)
	snap := a.step(window, 0.5, time.Now())

	if snap.Pitch == nil {
		t.Fatalf("expected a detected pitch")
	}
	if snap.Pitch.Note != "A4" || snap.Pitch.MIDI != 69 {
		t.Fatalf("unexpected pitch sample: %+v", snap.Pitch)
	}
	if snap.Target == nil || snap.Target.ID != "a" {
		t.Fatalf("expected target a, got %+v", snap.Target)
	}
	if !snap.OnPitch || snap.Accuracy < 0.95 {
		t.Fatalf("expected on-pitch with high accuracy: %+v", snap)
	}
	if math.Abs(snap.Cents) > 20 {
		t.Fatalf("expected small deviation, got %v cents", snap.Cents)
	}
}

func TestStepZeroWindowNeverDetects(t *testing.T) {
	sink := &recordSink{}
	a := newTestAnalyzer(t, melodyAB(440, 69), sink)

	snap := a.step(make([]float64, 4096), 0.5, time.Now())

	if snap.Pitch != nil {
		t.Fatalf("all-zero window must yield no pitch, got %+v", snap.Pitch)
	}
	if snap.OnPitch || snap.Accuracy != 0 {
		t.Fatalf("expected neutral classification: %+v", snap)
	}
}

func TestStepNoTargetIsNeutral(t *testing.T) {
	sink := &recordSink{}
	a := newTestAnalyzer(t, melodyAB(440, 69), sink)

	window := testutil.DeterministicSine(440, 44100, 0.5, 4096)
	snap := a.step(window, 5.0, time.Now())

	if snap.Pitch == nil {
		t.Fatalf("pitch should still be reported without a target")
	}
	if snap.Target != nil || snap.OnPitch || snap.Accuracy != 0 || snap.Cents != 0 {
		t.Fatalf("expected neutral result: %+v", snap)
	}
}

func TestStepOctaveForgiveness(t *testing.T) {
	sink := &recordSink{}
	a := newTestAnalyzer(t, melodyAB(440, 69), sink)

	// Singing an octave below the A4 target.
	window := testutil.DeterministicSine(220, 44100, 0.5, 4096)
	snap := a.step(window, 0.5, time.Now())

	if snap.Pitch == nil || snap.Pitch.MIDI != 57 {
		t.Fatalf("expected A3 detection, got %+v", snap.Pitch)
	}
	if !snap.OnPitch || !snap.OctaveAdjusted {
		t.Fatalf("octave-down should be forgiven and flagged: %+v", snap)
	}
}

func TestNoteHitOneShotPerOccupancy(t *testing.T) {
	sink := &recordSink{}
	a := newTestAnalyzer(t, melodyAB(440, 69), sink)

	window := testutil.DeterministicSine(440, 44100, 0.5, 4096)
	wall := time.Now()

	// Ten consecutive on-pitch ticks on note a: exactly one hit.
	for i := 0; i < 10; i++ {
		wall = wall.Add(80 * time.Millisecond)
		a.step(window, 0.05+float64(i)*0.05, wall)
	}
	if got := sink.hitIDs(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected exactly one hit for a, got %v", got)
	}

	// Move to b, then back to a: both fire again.
	a.step(window, 1.5, wall.Add(80*time.Millisecond))
	a.step(window, 0.5, wall.Add(160*time.Millisecond))

	want := []string{"a", "b", "a"}
	got := sink.hitIDs()
	if len(got) != len(want) {
		t.Fatalf("expected hits %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected hits %v, got %v", want, got)
		}
	}
}

func TestNoteHitGuardClearsOnGap(t *testing.T) {
	tr, err := score.NewTracker([]score.Note{
		{ID: "a", Start: 0, Duration: 1, MIDI: 69, Frequency: 440, Name: "A4"},
	})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	sink := &recordSink{}
	a := newTestAnalyzer(t, tr, sink)

	window := testutil.DeterministicSine(440, 44100, 0.5, 4096)
	wall := time.Now()

	a.step(window, 0.5, wall)
	// Leave the note: guard clears.
	a.step(window, 2.0, wall.Add(80*time.Millisecond))
	// Re-enter: a may be hit again.
	a.step(window, 0.5, wall.Add(160*time.Millisecond))

	if got := sink.hitIDs(); len(got) != 2 || got[0] != "a" || got[1] != "a" {
		t.Fatalf("expected a to be hit twice across occupancies, got %v", got)
	}
}

func TestThrottleBoundsOverManyTicks(t *testing.T) {
	tr, err := score.NewTracker([]score.Note{
		{ID: "long", Start: 0, Duration: 60, MIDI: 69, Frequency: 440, Name: "A4"},
	})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	sink := &recordSink{}
	a := newTestAnalyzer(t, tr, sink)

	window := testutil.DeterministicSine(440, 44100, 0.5, 4096)
	base := time.Now()

	const ticks = 200
	tickSpacing := 80 * time.Millisecond

	for i := 0; i < ticks; i++ {
		a.step(window, float64(i)*0.08, base.Add(time.Duration(i)*tickSpacing))
	}

	maxSnaps := int(math.Ceil(float64(ticks) * 80 / 66))
	maxBatches := int(math.Ceil(float64(ticks) * 80 / 100))

	sink.mu.Lock()
	snaps, batches := len(sink.snaps), len(sink.batches)
	sink.mu.Unlock()

	if snaps == 0 || snaps > maxSnaps {
		t.Fatalf("snapshot count %d outside (0, %d]", snaps, maxSnaps)
	}
	if batches == 0 || batches > maxBatches {
		t.Fatalf("history flush count %d outside (0, %d]", batches, maxBatches)
	}
}

func TestHistoryFlushClearsBuffer(t *testing.T) {
	sink := &recordSink{}
	a := newTestAnalyzer(t, melodyAB(440, 69), sink)

	window := testutil.DeterministicSine(440, 44100, 0.5, 4096)
	base := time.Now()

	a.step(window, 0.1, base)                           // flushes [0.1]
	a.step(window, 0.2, base.Add(50*time.Millisecond))  // buffered
	a.step(window, 0.3, base.Add(120*time.Millisecond)) // flushes [0.2, 0.3]

	sink.mu.Lock()
	defer sink.mu.Unlock()

	if len(sink.batches) != 2 {
		t.Fatalf("expected 2 flushes, got %d", len(sink.batches))
	}
	if len(sink.batches[0]) != 1 || len(sink.batches[1]) != 2 {
		t.Fatalf("unexpected batch sizes: %d, %d", len(sink.batches[0]), len(sink.batches[1]))
	}
	if sink.batches[1][0].Time <= sink.batches[0][0].Time {
		t.Fatalf("history must be ordered across flushes")
	}
}

func TestStepFiltersNonFiniteTime(t *testing.T) {
	sink := &recordSink{}
	a := newTestAnalyzer(t, melodyAB(440, 69), sink)

	window := testutil.DeterministicSine(440, 44100, 0.5, 4096)
	a.step(window, math.NaN(), time.Now())

	sink.mu.Lock()
	defer sink.mu.Unlock()

	if len(sink.snaps) != 0 {
		t.Fatalf("non-finite playback time must not be published")
	}
	if len(sink.batches) != 0 {
		t.Fatalf("non-finite playback time must not reach history")
	}
}

func TestStatsAggregation(t *testing.T) {
	sink := &recordSink{}
	a := newTestAnalyzer(t, melodyAB(440, 69), sink)

	window := testutil.DeterministicSine(440, 44100, 0.5, 4096)
	wall := time.Now()

	for i := 0; i < 4; i++ {
		wall = wall.Add(80 * time.Millisecond)
		a.step(window, 0.1+float64(i)*0.1, wall)
	}
	a.step(make([]float64, 4096), 0.6, wall.Add(80*time.Millisecond))

	stats := a.Stats()
	if stats.Ticks != 5 || stats.VoicedTicks != 4 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	if stats.NoteHits != 1 {
		t.Fatalf("expected one note hit, got %d", stats.NoteHits)
	}
	if stats.MeanAccuracy < 0.95 || stats.MeanAccuracy > 1 {
		t.Fatalf("unexpected mean accuracy: %v", stats.MeanAccuracy)
	}
}

func TestSetTransposeApplied(t *testing.T) {
	sink := &recordSink{}
	a := newTestAnalyzer(t, melodyAB(440, 69), sink)

	if err := a.SetTranspose(-12); err != nil {
		t.Fatalf("SetTranspose: %v", err)
	}
	a.applyPendingTranspose()

	// Singing A3 against the transposed-down target is now a perfect match.
	window := testutil.DeterministicSine(220, 44100, 0.5, 4096)
	snap := a.step(window, 0.5, time.Now())

	if snap.Target == nil || snap.Target.MIDI != 57 {
		t.Fatalf("expected transposed target A3, got %+v", snap.Target)
	}
	if !snap.OnPitch || snap.OctaveAdjusted {
		t.Fatalf("expected direct match after transposition: %+v", snap)
	}

	if err := a.SetTranspose(13); err == nil {
		t.Fatalf("expected error for out-of-range transpose")
	}
}

func TestStepNilWindowReportsNoPitch(t *testing.T) {
	sink := &recordSink{}
	a := newTestAnalyzer(t, melodyAB(440, 69), sink)

	snap := a.step(nil, 0.5, time.Now())
	if snap.Pitch != nil {
		t.Fatalf("failed read must yield a no-pitch tick")
	}
	if snap.Target == nil {
		t.Fatalf("target tracking must continue on failed reads")
	}
}

func TestNewAnalyzerValidation(t *testing.T) {
	sink := &recordSink{}
	tr := melodyAB(440, 69)
	clock := func() float64 { return 0 }
	capture := NewSineCapture(440, 0.5, 44100)

	if _, err := NewAnalyzer(nil, tr, clock, sink); err == nil {
		t.Fatalf("expected error for nil capture")
	}
	if _, err := NewAnalyzer(capture, nil, clock, sink); err == nil {
		t.Fatalf("expected error for nil tracker")
	}
	if _, err := NewAnalyzer(capture, tr, nil, sink); err == nil {
		t.Fatalf("expected error for nil clock")
	}
	if _, err := NewAnalyzer(capture, tr, clock, nil); err == nil {
		t.Fatalf("expected error for nil sink")
	}
}

func TestThrottleReady(t *testing.T) {
	th := throttle{interval: 100 * time.Millisecond}
	base := time.Now()

	if !th.ready(base) {
		t.Fatalf("first call must pass")
	}
	if th.ready(base.Add(50 * time.Millisecond)) {
		t.Fatalf("call inside the interval must be dropped")
	}
	if !th.ready(base.Add(150 * time.Millisecond)) {
		t.Fatalf("call after the interval must pass")
	}

	th.reset()
	if !th.ready(base) {
		t.Fatalf("reset must reopen the throttle")
	}
}
