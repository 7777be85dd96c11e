package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/elobachev/vocal-couch/dsp/core"
	"github.com/elobachev/vocal-couch/dsp/pitch"
	"github.com/elobachev/vocal-couch/dsp/vad"
	"github.com/elobachev/vocal-couch/measure/intonation"
	"github.com/elobachev/vocal-couch/score"
)

// ErrAlreadyRunning is returned by Start while a session is live.
var ErrAlreadyRunning = errors.New("session: analyzer already running")

// Analyzer drives the full pitch-tracking pipeline for one capture session.
type Analyzer struct {
	cfg       Config
	capture   Capture
	tracker   *score.Tracker
	clock     Clock
	sink      Sink
	gate      *vad.Gate
	estimator *pitch.Estimator
	classify  intonation.Config

	// timeNow is the wall clock used for throttling and capture timestamps;
	// overridden in tests.
	timeNow func() time.Time

	// Tick-goroutine-owned pipeline state. The run loop is the only writer,
	// so none of it needs locking.
	window       []float64
	lastHitID    string
	history      []HistoryPoint
	snapshotGate throttle
	historyGate  throttle

	mu           sync.Mutex
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
	status       Status
	stats        Stats
	accuracySum  float64
	transpose    int
	transposeSet bool
}

// NewAnalyzer creates an analyzer over the given collaborators.
func NewAnalyzer(capture Capture, tracker *score.Tracker, clock Clock, sink Sink, opts ...Option) (*Analyzer, error) {
	if capture == nil {
		return nil, fmt.Errorf("session: capture must not be nil")
	}
	if tracker == nil {
		return nil, fmt.Errorf("session: tracker must not be nil")
	}
	if clock == nil {
		return nil, fmt.Errorf("session: clock must not be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("session: sink must not be nil")
	}

	cfg := ApplyOptions(opts...)

	var gateOpts []vad.Option
	if cfg.VADThreshold > 0 {
		gateOpts = append(gateOpts, vad.WithThreshold(cfg.VADThreshold))
	}

	estOpts := []pitch.Option{
		pitch.WithSampleRate(cfg.SampleRate),
		pitch.WithWindowSize(cfg.WindowSize),
	}
	if cfg.MinFreq > 0 && cfg.MaxFreq > cfg.MinFreq {
		estOpts = append(estOpts, pitch.WithFreqRange(cfg.MinFreq, cfg.MaxFreq))
	}

	estimator, err := pitch.NewEstimator(estOpts...)
	if err != nil {
		return nil, err
	}

	var classifyOpts []intonation.Option
	if cfg.OnPitchCents > 0 {
		classifyOpts = append(classifyOpts, intonation.WithOnPitchCents(cfg.OnPitchCents))
	}

	return &Analyzer{
		cfg:          cfg,
		capture:      capture,
		tracker:      tracker,
		clock:        clock,
		sink:         sink,
		gate:         vad.NewGate(gateOpts...),
		estimator:    estimator,
		classify:     intonation.ApplyOptions(classifyOpts...),
		timeNow:      time.Now,
		window:       make([]float64, cfg.WindowSize),
		snapshotGate: throttle{interval: cfg.SnapshotInterval},
		historyGate:  throttle{interval: cfg.HistoryInterval},
		status:       Status{State: StateIdle},
	}, nil
}

// Config returns the configuration in effect.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Status returns the current lifecycle status.
func (a *Analyzer) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Stats returns the counters of the current (or last) take.
func (a *Analyzer) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := a.stats
	if stats.VoicedTicks > 0 {
		stats.MeanAccuracy = a.accuracySum / float64(stats.VoicedTicks)
	}

	return stats
}

// SetTranspose requests a transposition offset; the tick loop applies it
// before the next pipeline run.
func (a *Analyzer) SetTranspose(semitones int) error {
	if semitones < -score.TransposeLimit || semitones > score.TransposeLimit {
		return fmt.Errorf("session: transpose %d out of range", semitones)
	}

	a.mu.Lock()
	a.transpose = semitones
	a.transposeSet = true
	a.mu.Unlock()

	return nil
}

// Start acquires the capture source and begins the analysis tick. It returns
// immediately; acquisition progress is reported through the sink.
func (a *Analyzer) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	a.running = true
	a.cancel = cancel
	a.done = done
	a.stats = Stats{}
	a.accuracySum = 0

	go a.run(runCtx, done)

	return nil
}

// Stop cancels the session and waits for the in-flight tick to complete and
// the capture device to be released.
func (a *Analyzer) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

func (a *Analyzer) run(ctx context.Context, done chan struct{}) {
	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		close(done)
	}()

	// Fresh take: rewind the melody and clear per-run pipeline state.
	a.tracker.Reset()
	a.lastHitID = ""
	a.history = a.history[:0]
	a.snapshotGate = throttle{interval: a.cfg.SnapshotInterval}
	a.historyGate = throttle{interval: a.cfg.HistoryInterval}

	// Capture.Start covers both the permission prompt and the device open,
	// so the retried acquisition runs under RequestingPermission and
	// Initializing covers post-acquire setup. Failed is reachable from both.
	a.setStatus(Status{State: StateRequestingPermission})

	sess, err := a.acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			a.setStatus(Status{State: StateStopped})
		} else {
			a.setStatus(Status{State: StateFailed, Err: err})
		}
		return
	}

	// Release is unconditional on every exit path from here on.
	defer func() { _ = sess.Stop() }()

	a.setStatus(Status{State: StateInitializing})

	if sr := sess.SampleRate(); sr != a.cfg.SampleRate {
		a.setStatus(Status{State: StateFailed, Err: fmt.Errorf(
			"session: capture delivers %v Hz, analyzer configured for %v Hz", sr, a.cfg.SampleRate)})
		return
	}

	a.setStatus(Status{State: StateActive})

	ticker := time.NewTicker(a.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.setStatus(Status{State: StateStopped})
			return
		case <-ticker.C:
			a.tick(sess)
		}
	}
}

// acquire attempts capture acquisition up to the configured budget, with a
// linear inter-attempt backoff.
func (a *Analyzer) acquire(ctx context.Context) (CaptureSession, error) {
	var lastErr error

	for attempt := 1; attempt <= a.cfg.AcquireAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * a.cfg.AcquireBackoff
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		sess, err := a.capture.Start(ctx)
		if err == nil {
			return sess, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("session: capture acquisition failed after %d attempts: %w",
		a.cfg.AcquireAttempts, lastErr)
}

func (a *Analyzer) setStatus(status Status) {
	a.mu.Lock()
	a.status = status
	a.mu.Unlock()

	a.sink.StateChanged(status)
}

func (a *Analyzer) tick(sess CaptureSession) {
	a.applyPendingTranspose()

	window := a.window
	if err := sess.ReadWindow(window); err != nil {
		// Per-tick failure: this tick reports no pitch, the loop continues.
		window = nil
	}

	a.step(window, a.clock(), a.timeNow())
}

func (a *Analyzer) applyPendingTranspose() {
	a.mu.Lock()
	pending, offset := a.transposeSet, a.transpose
	a.transposeSet = false
	a.mu.Unlock()

	if pending {
		_ = a.tracker.SetTranspose(offset)
	}
}

// step runs one pipeline pass. It is the single-flight core of the tick loop
// and is only ever called from the run goroutine (tests call it directly).
func (a *Analyzer) step(window []float64, now float64, wall time.Time) Snapshot {
	snap := Snapshot{Time: now}

	var sample *PitchSample
	midiF := math.NaN()

	if window != nil {
		if rms, voiced := a.gate.Measure(window); voiced {
			if est, ok := a.estimator.Process(window, rms); ok {
				midiF = pitch.MIDIFromFrequency(est.Frequency)
				midi := int(math.Round(midiF))
				sample = &PitchSample{
					Frequency:    est.Frequency,
					Clarity:      est.Clarity,
					Confidence:   est.Confidence,
					CapturedAtMs: wall.UnixMilli(),
					MIDI:         midi,
					Note:         pitch.NoteName(midi),
					PitchClass:   pitch.PitchClass(midi),
				}
			}
		}
	}
	snap.Pitch = sample

	target, hasTarget := a.tracker.Active(now)
	if hasTarget {
		t := target
		snap.Target = &t

		if sample != nil {
			res := a.classify.Classify(sample.Frequency, target.Frequency)
			snap.Cents = res.Cents
			snap.Accuracy = res.Accuracy
			snap.OnPitch = res.OnPitch
			snap.OctaveAdjusted = res.OctaveEquivalent && sample.MIDI != target.MIDI
		}
	}

	a.arbitrateHit(snap.OnPitch, target, hasTarget)
	a.recordStats(snap, sample != nil)

	// Non-finite values never reach the history buffer.
	if sample != nil && core.IsFinite(now) && core.IsFinite(midiF) {
		a.history = append(a.history, HistoryPoint{Time: now, MIDI: midiF, OnPitch: snap.OnPitch})
	}

	if core.IsFinite(now) && a.snapshotGate.ready(wall) {
		a.sink.Snapshot(snap)
	}

	if len(a.history) > 0 && a.historyGate.ready(wall) {
		batch := make([]HistoryPoint, len(a.history))
		copy(batch, a.history)
		a.history = a.history[:0]
		a.sink.History(batch)
	}

	return snap
}

// arbitrateHit fires at most one hit event per continuous occupancy of a
// note id; the guard clears whenever no target is active.
func (a *Analyzer) arbitrateHit(onPitch bool, target score.Note, hasTarget bool) {
	if !hasTarget {
		a.lastHitID = ""
		return
	}

	if onPitch && target.ID != a.lastHitID {
		a.lastHitID = target.ID
		a.sink.NoteHit(target.ID)

		a.mu.Lock()
		a.stats.NoteHits++
		a.mu.Unlock()
	}
}

func (a *Analyzer) recordStats(snap Snapshot, voiced bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.Ticks++
	if voiced {
		a.stats.VoicedTicks++
		a.accuracySum += snap.Accuracy
	}
}
