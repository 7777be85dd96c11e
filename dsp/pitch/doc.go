// Package pitch implements time-domain fundamental-frequency estimation
// based on the YIN algorithm, together with helpers for converting detected
// frequencies into MIDI pitch numbers and note names.
//
// The estimator searches the cumulative mean normalized difference function
// (CMNDF) of an analysis window for its first qualified minimum, refines the
// lag by parabolic interpolation, and corrects YIN's known tendency to lock
// onto the first harmonic above the true fundamental by probing subharmonic
// lags. For windows at or above a crossover size the squared-difference
// function is evaluated through an FFT-based autocorrelation; a direct
// evaluation path remains for short windows.
package pitch
