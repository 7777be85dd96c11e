// Package session runs the real-time voice analysis pipeline.
//
// An Analyzer owns a capture lifecycle state machine (acquire with bounded
// retries, guaranteed release), drives the gate, estimator, tracker and
// classification stages on a fixed tick, arbitrates one-shot note-hit
// events, and publishes throttled snapshots and history batches to a sink.
//
// Scheduling is single-threaded cooperative: one goroutine owns the tick
// loop, so no two pipeline runs ever execute concurrently and the pipeline
// needs no internal locking. Stopping lets an in-flight tick complete before
// the capture session is released.
package session
