package pitch

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/elobachev/vocal-couch/dsp/core"
)

// fftCrossoverSize is the window length from which the FFT autocorrelation
// path outperforms the direct O(N·tau) difference evaluation.
const fftCrossoverSize = 512

const cmndfEpsilon = 1e-12

// Estimate is the result of one successful analysis window.
type Estimate struct {
	// Frequency is the detected fundamental in Hz.
	Frequency float64

	// Clarity reflects how deep the CMNDF minimum was, in [0, 1].
	Clarity float64

	// Confidence blends clarity with normalized window energy, in [0, 1].
	// The blend is heuristic, not statistically calibrated.
	Confidence float64
}

// Estimator detects the fundamental frequency of voice analysis windows
// using the YIN algorithm.
//
// The estimator owns scratch buffers that are reused across calls; it is not
// safe for concurrent use. Raw squared differences and normalized differences
// are kept in two separate buffers (diff, cmndf) rather than overwriting one
// in place.
type Estimator struct {
	cfg Config

	minTau int // lag of MaxFreq
	maxTau int // lag of MinFreq
	tauTop int // highest lag with a valid CMNDF value (covers subharmonic probes)

	// FFT autocorrelation state; nil when the direct path is in use.
	plan    *algofft.Plan[complex128]
	fftSize int
	padded  []complex128
	freqBuf []complex128
	acorr   []complex128

	squares []float64
	prefix  []float64
	diff    []float64
	cmndf   []float64
}

// NewEstimator creates an estimator with the given options.
func NewEstimator(opts ...Option) (*Estimator, error) {
	cfg := ApplyOptions(opts...)

	if cfg.SampleRate <= 0 || !core.IsFinite(cfg.SampleRate) {
		return nil, fmt.Errorf("pitch: sample rate must be > 0: %v", cfg.SampleRate)
	}

	if cfg.WindowSize < 8 {
		return nil, fmt.Errorf("pitch: window size too small: %d", cfg.WindowSize)
	}

	if cfg.MinFreq <= 0 || cfg.MaxFreq <= cfg.MinFreq {
		return nil, fmt.Errorf("pitch: invalid frequency range [%v, %v]", cfg.MinFreq, cfg.MaxFreq)
	}

	// Lag is inversely proportional to frequency.
	minTau := int(cfg.SampleRate / cfg.MaxFreq)
	maxTau := int(cfg.SampleRate / cfg.MinFreq)

	if maxTau > cfg.WindowSize/2 {
		maxTau = cfg.WindowSize / 2
	}

	if maxTau <= max(2, minTau)+1 {
		return nil, fmt.Errorf("pitch: window of %d samples at %v Hz cannot resolve %v Hz",
			cfg.WindowSize, cfg.SampleRate, cfg.MinFreq)
	}

	tauTop := 3*maxTau + 1
	if tauTop > cfg.WindowSize-2 {
		tauTop = cfg.WindowSize - 2
	}

	e := &Estimator{
		cfg:    cfg,
		minTau: minTau,
		maxTau: maxTau,
		tauTop: tauTop,
		diff:   make([]float64, tauTop+1),
		cmndf:  make([]float64, tauTop+2),
	}

	if cfg.WindowSize >= fftCrossoverSize {
		fftSize := nextPowerOf2(cfg.WindowSize + tauTop + 1)

		plan, err := algofft.NewPlan64(fftSize)
		if err != nil {
			return nil, fmt.Errorf("pitch: failed to create FFT plan: %w", err)
		}

		e.plan = plan
		e.fftSize = fftSize
		e.padded = make([]complex128, fftSize)
		e.freqBuf = make([]complex128, fftSize)
		e.acorr = make([]complex128, fftSize)
		e.squares = make([]float64, cfg.WindowSize)
		e.prefix = make([]float64, cfg.WindowSize+1)
	}

	return e, nil
}

// Config returns the normalized configuration in effect.
func (e *Estimator) Config() Config {
	return e.cfg
}

// Process analyzes one window of samples together with its RMS energy as
// measured by the voice activity gate. It reports false when no fundamental
// in the configured range could be detected.
func (e *Estimator) Process(samples []float64, rms float64) (Estimate, bool) {
	if len(samples) != e.cfg.WindowSize {
		return Estimate{}, false
	}

	if e.plan != nil {
		if err := e.differenceFFT(samples); err != nil {
			e.differenceDirect(samples)
		}
	} else {
		e.differenceDirect(samples)
	}

	e.normalize()

	tau, ok := e.bestLag()
	if !ok {
		return Estimate{}, false
	}

	lag := e.interpolate(tau)
	cmndfUsed := e.cmndf[tau]

	lag, cmndfUsed = e.correctSubharmonic(lag, cmndfUsed)

	if !core.IsFinite(lag) || lag <= 0 {
		return Estimate{}, false
	}

	freq := e.cfg.SampleRate / lag
	if !core.IsFinite(freq) || freq < e.cfg.MinFreq || freq > e.cfg.MaxFreq {
		return Estimate{}, false
	}

	clarity := core.Clamp(1-cmndfUsed, 0, 1)
	confidence := core.Clamp(0.5*clarity+0.5*math.Min(1, rms/0.1), 0, 1)

	return Estimate{
		Frequency:  freq,
		Clarity:    clarity,
		Confidence: confidence,
	}, true
}

// differenceDirect evaluates d(tau) over the valid overlap by definition.
func (e *Estimator) differenceDirect(samples []float64) {
	n := len(samples)

	e.diff[0] = 0
	for tau := 1; tau <= e.tauTop; tau++ {
		sum := 0.0
		for i := 0; i < n-tau; i++ {
			delta := samples[i] - samples[i+tau]
			sum += delta * delta
		}
		e.diff[tau] = sum
	}
}

// differenceFFT evaluates d(tau) through the identity
//
//	d(tau) = sum(x[0:n-tau]^2) + sum(x[tau:n]^2) - 2*r(tau)
//
// where r is the linear autocorrelation, computed with a zero-padded
// forward/inverse FFT pair.
func (e *Estimator) differenceFFT(samples []float64) error {
	n := len(samples)

	vecmath.MulBlock(e.squares, samples, samples)

	e.prefix[0] = 0
	for i, sq := range e.squares {
		e.prefix[i+1] = e.prefix[i] + sq
	}
	total := e.prefix[n]

	for i := range e.padded {
		e.padded[i] = 0
	}
	for i, v := range samples {
		e.padded[i] = complex(v, 0)
	}

	if err := e.plan.Forward(e.freqBuf, e.padded); err != nil {
		return fmt.Errorf("pitch: forward FFT failed: %w", err)
	}

	for i, v := range e.freqBuf {
		// v * conj(v) = |v|^2
		e.freqBuf[i] = complex(real(v)*real(v)+imag(v)*imag(v), 0)
	}

	if err := e.plan.Inverse(e.acorr, e.freqBuf); err != nil {
		return fmt.Errorf("pitch: inverse FFT failed: %w", err)
	}

	e.diff[0] = 0
	for tau := 1; tau <= e.tauTop; tau++ {
		r := real(e.acorr[tau])

		d := e.prefix[n-tau] + (total - e.prefix[tau]) - 2*r
		if d < 0 {
			d = 0
		}
		e.diff[tau] = d
	}

	return nil
}

// normalize computes the cumulative mean normalized difference function.
func (e *Estimator) normalize() {
	e.cmndf[0] = 1

	runningSum := 0.0
	for tau := 1; tau <= e.tauTop; tau++ {
		runningSum += e.diff[tau]
		if runningSum <= cmndfEpsilon {
			e.cmndf[tau] = 1
		} else {
			e.cmndf[tau] = e.diff[tau] * float64(tau) / runningSum
		}
	}

	// Sentinel so the local-minimum test at tauTop stays in bounds.
	e.cmndf[e.tauTop+1] = math.Inf(1)
}

// bestLag scans the search range for the first qualified threshold crossing,
// falling back to the global CMNDF minimum when nothing crosses.
func (e *Estimator) bestLag() (int, bool) {
	start := max(2, e.minTau)

	for tau := start; tau <= e.maxTau; tau++ {
		if e.cmndf[tau] < e.cfg.Threshold && e.cmndf[tau] <= e.cmndf[tau+1] {
			return tau, true
		}
	}

	bestTau := -1
	bestVal := math.Inf(1)
	for tau := start; tau <= e.maxTau; tau++ {
		if e.cmndf[tau] < bestVal {
			bestVal = e.cmndf[tau]
			bestTau = tau
		}
	}

	return bestTau, bestTau > 0
}

// interpolate refines an integer lag to a fractional one using the parabola
// through the three CMNDF samples around it.
func (e *Estimator) interpolate(tau int) float64 {
	if tau <= 0 || tau >= e.tauTop {
		return float64(tau)
	}

	s0 := e.cmndf[tau-1]
	s1 := e.cmndf[tau]
	s2 := e.cmndf[tau+1]

	denom := 2 * (2*s1 - s2 - s0)
	if math.Abs(denom) < cmndfEpsilon {
		return float64(tau)
	}

	return float64(tau) + (s2-s0)/denom
}

// correctSubharmonic probes the doubled and tripled lag and prefers the
// longer lag (lower frequency) when its CMNDF value is lower by at least the
// configured margin. This counters YIN locking onto the first harmonic above
// the true fundamental.
func (e *Estimator) correctSubharmonic(lag, cmndfUsed float64) (float64, float64) {
	type probe struct {
		mult   int
		margin float64
	}

	bestTau := -1
	bestVal := cmndfUsed

	for _, p := range []probe{{2, e.cfg.SubharmonicMargin2}, {3, e.cfg.SubharmonicMargin3}} {
		if p.margin <= 0 {
			continue
		}

		idx := int(math.Round(lag * float64(p.mult)))
		if idx < 2 || idx > e.tauTop {
			continue
		}

		if e.cmndf[idx] < cmndfUsed-p.margin && e.cmndf[idx] < bestVal {
			bestTau = idx
			bestVal = e.cmndf[idx]
		}
	}

	if bestTau < 0 {
		return lag, cmndfUsed
	}

	return e.interpolate(bestTau), bestVal
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}

	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
