package session

import "context"

// Clock reports the current playback time in seconds. It is externally
// driven and monotonically increasing except across explicit seeks.
type Clock func() float64

// CaptureSession is a live audio capture delivering fixed-size windows.
type CaptureSession interface {
	// ReadWindow fills dst with the most recent len(dst) samples, normalized
	// to [-1, 1].
	ReadWindow(dst []float64) error

	// SampleRate returns the capture sample rate in Hz.
	SampleRate() float64

	// Stop releases the underlying device. It must be safe to call once on
	// every exit path.
	Stop() error
}

// Capture acquires capture sessions. Acquisition may fail (device busy,
// permission denied); the analyzer retries with bounded backoff.
type Capture interface {
	Start(ctx context.Context) (CaptureSession, error)
}

// Sink receives the analyzer's outputs. All methods are called from the
// analyzer's single tick goroutine and must not block for long.
type Sink interface {
	// Snapshot delivers the latest analysis snapshot, throttled.
	Snapshot(snap Snapshot)

	// History delivers the history points accumulated since the last flush,
	// in tick order.
	History(points []HistoryPoint)

	// NoteHit fires at most once per continuous occupancy of a note id.
	NoteHit(noteID string)

	// StateChanged reports lifecycle transitions.
	StateChanged(status Status)
}
