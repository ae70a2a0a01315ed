package dynamics

import (
	"fmt"
	"math"

	"github.com/sastraxi/stemset-engine/dsp/core"
	"github.com/sastraxi/stemset-engine/dsp/delay"
)

const (
	// MaxLimiterChannels bounds the joint-detection channel count.
	MaxLimiterChannels = 8

	// maxLookaheadSeconds sizes the per-channel delay buffers; the attack
	// time (= audible lookahead) can never exceed it.
	maxLookaheadSeconds = 0.05

	defaultLimiterPreGainDB   = 0.0
	defaultLimiterThresholdDB = -1.0
	defaultLimiterAttackSec   = 0.003
	defaultLimiterHoldSec     = 0.010
	defaultLimiterReleaseSec  = 0.100
	defaultLimiterMakeupDB    = 0.0
	defaultMeterSmoothing     = 0.7

	minLimiterPreGainDB   = -120.0
	maxLimiterPreGainDB   = 24.0
	minLimiterThresholdDB = -60.0
	maxLimiterThresholdDB = 0.0
	minLimiterAttackSec   = 0.0
	maxLimiterAttackSec   = maxLookaheadSeconds
	minLimiterHoldSec     = 0.0
	maxLimiterHoldSec     = 1.0
	minLimiterReleaseSec  = 0.001
	maxLimiterReleaseSec  = 5.0
	minLimiterMakeupDB    = -24.0
	maxLimiterMakeupDB    = 24.0
	minMeterSmoothing     = 0.1
	maxMeterSmoothing     = 0.9
)

// LimiterMetrics holds metering information for visualization and analysis.
type LimiterMetrics struct {
	InputPeak       float64 // Maximum pre-gain input level since last reset
	OutputPeak      float64 // Maximum output level since last reset
	GainReductionDB float64 // Smoothed gain reduction in dB (<= 0)
}

// Limiter is a brick-wall peak limiter with lookahead, hold, and makeup gain.
//
// Peaks are detected jointly across all channels (max absolute sample) and
// the same scalar gain is applied to every channel, preserving the stereo
// image. The program path runs through a lookahead delay equal to the attack
// time, and the detector tracks the running maximum over exactly that
// window: the envelope has always seen every sample still inside the delay
// line, so the gain applied to an emerging sample accounts for it and the
// output cannot exceed the threshold.
//
// The envelope attacks instantly to the window maximum. Whenever an attack
// pushes the gain below unity the hold counter is re-armed; the envelope
// does not decay until the counter runs out, after which it releases
// exponentially. Holding the reduced gain prevents pumping on
// transient-dense material.
type Limiter struct {
	sampleRate float64
	channels   int

	preGainDB   float64
	thresholdDB float64
	attackSec   float64
	holdSec     float64
	releaseSec  float64
	makeupDB    float64
	autoMakeup  bool
	smoothing   float64

	preGainLin   float64
	thresholdLin float64
	makeupLin    float64
	releaseCoeff float64

	lines       []*delay.Line
	delaySample int
	holdSamples int
	holdCounter int
	envelope    float64

	// Monotonic deque holding the running maximum over the lookahead
	// window. Preallocated to the delay-line size; never grown.
	winVal   []float64
	winIdx   []int64
	winHead  int
	winCount int
	cursor   int64

	frame []float64

	smoothedGRDB float64
	metrics      LimiterMetrics
}

// NewLimiter creates a limiter for the given channel count (1..8).
func NewLimiter(sampleRate float64, channels int) (*Limiter, error) {
	if err := validateSampleRate(sampleRate); err != nil {
		return nil, fmt.Errorf("limiter %w", err)
	}

	if channels < 1 || channels > MaxLimiterChannels {
		return nil, fmt.Errorf("limiter channels must be in [1, %d]: %d", MaxLimiterChannels, channels)
	}

	size := int(math.Ceil(sampleRate*maxLookaheadSeconds)) + 1

	lines := make([]*delay.Line, channels)
	for i := range lines {
		line, err := delay.New(size)
		if err != nil {
			return nil, fmt.Errorf("limiter lookahead: %w", err)
		}

		lines[i] = line
	}

	l := &Limiter{
		sampleRate: sampleRate,
		channels:   channels,
		lines:      lines,
		winVal:     make([]float64, size),
		winIdx:     make([]int64, size),
		frame:      make([]float64, channels),
		smoothing:  defaultMeterSmoothing,
	}
	l.SetPreGain(defaultLimiterPreGainDB)
	l.SetThreshold(defaultLimiterThresholdDB)
	l.SetAttack(defaultLimiterAttackSec)
	l.SetHold(defaultLimiterHoldSec)
	l.SetRelease(defaultLimiterReleaseSec)
	l.SetMakeupGain(defaultLimiterMakeupDB)
	l.SetAutoMakeup(false)

	return l, nil
}

// SetPreGain sets input gain in dB, clamped to [-120, 24]. Values at or
// below -96 dB act as a hard mute (linear gain 0).
func (l *Limiter) SetPreGain(dB float64) {
	l.preGainDB = clampParam(dB, minLimiterPreGainDB, maxLimiterPreGainDB)
	l.preGainLin = core.DBToLinear(l.preGainDB)
}

// SetThreshold sets the limiting threshold in dB, clamped to [-60, 0].
func (l *Limiter) SetThreshold(dB float64) {
	l.thresholdDB = clampParam(dB, minLimiterThresholdDB, maxLimiterThresholdDB)
	l.thresholdLin = core.SafeThreshold(core.DBToLinear(l.thresholdDB))
	l.updateMakeup()
}

// SetAttack sets the attack time in seconds, clamped to [0, 0.05]. The
// lookahead delay and the detection window always equal the attack time in
// samples.
func (l *Limiter) SetAttack(sec float64) {
	l.attackSec = clampParam(sec, minLimiterAttackSec, maxLimiterAttackSec)
	l.delaySample = int(math.Round(l.attackSec * l.sampleRate))

	maxDelay := l.lines[0].Len() - 1
	if l.delaySample > maxDelay {
		l.delaySample = maxDelay
	}
}

// SetHold sets the hold time in seconds, clamped to [0, 1].
func (l *Limiter) SetHold(sec float64) {
	l.holdSec = clampParam(sec, minLimiterHoldSec, maxLimiterHoldSec)
	l.holdSamples = int(math.Round(l.holdSec * l.sampleRate))
}

// SetRelease sets the release time in seconds, clamped to [0.001, 5].
func (l *Limiter) SetRelease(sec float64) {
	l.releaseSec = clampParam(sec, minLimiterReleaseSec, maxLimiterReleaseSec)
	l.releaseCoeff = core.BallisticsCoeff(l.releaseSec, l.sampleRate)
}

// SetMakeupGain sets manual makeup gain in dB, clamped to [-24, 24], and
// disables auto makeup.
func (l *Limiter) SetMakeupGain(dB float64) {
	l.makeupDB = clampParam(dB, minLimiterMakeupDB, maxLimiterMakeupDB)
	l.autoMakeup = false
	l.updateMakeup()
}

// SetAutoMakeup toggles threshold-derived makeup gain: when enabled the
// makeup is -threshold dB, so a -6 dB ceiling automatically adds +6 dB.
func (l *Limiter) SetAutoMakeup(enable bool) {
	l.autoMakeup = enable
	l.updateMakeup()
}

// SetMeterSmoothing sets the gain-reduction meter smoothing factor,
// clamped to [0.1, 0.9]. Higher values smooth more.
func (l *Limiter) SetMeterSmoothing(v float64) {
	l.smoothing = clampParam(v, minMeterSmoothing, maxMeterSmoothing)
}

// PreGain returns the input gain in dB.
func (l *Limiter) PreGain() float64 { return l.preGainDB }

// Threshold returns the threshold in dB.
func (l *Limiter) Threshold() float64 { return l.thresholdDB }

// Attack returns the attack time in seconds.
func (l *Limiter) Attack() float64 { return l.attackSec }

// Hold returns the hold time in seconds.
func (l *Limiter) Hold() float64 { return l.holdSec }

// Release returns the release time in seconds.
func (l *Limiter) Release() float64 { return l.releaseSec }

// MakeupGain returns the effective makeup gain in dB.
func (l *Limiter) MakeupGain() float64 { return l.makeupDB }

// AutoMakeup reports whether threshold-derived makeup is active.
func (l *Limiter) AutoMakeup() bool { return l.autoMakeup }

// Channels returns the configured channel count.
func (l *Limiter) Channels() int { return l.channels }

// LookaheadSamples returns the current program-path delay in samples.
func (l *Limiter) LookaheadSamples() int { return l.delaySample }

// Envelope returns the current detector envelope (linear).
func (l *Limiter) Envelope() float64 { return l.envelope }

// GainReductionDB returns the smoothed gain reduction in dB (<= 0).
func (l *Limiter) GainReductionDB() float64 { return l.smoothedGRDB }

// Metrics returns a snapshot of metering state.
func (l *Limiter) Metrics() LimiterMetrics {
	m := l.metrics
	m.GainReductionDB = l.smoothedGRDB

	return m
}

// ResetMetrics clears peak tracking without touching audio state.
func (l *Limiter) ResetMetrics() {
	l.metrics = LimiterMetrics{}
}

// windowMax pushes one detector peak and returns the maximum over the
// lookahead window, which covers every sample still inside the delay line.
func (l *Limiter) windowMax(peak float64) float64 {
	size := len(l.winVal)

	// Entries older than the window expire off the front.
	oldest := l.cursor - int64(l.delaySample)
	for l.winCount > 0 && l.winIdx[l.winHead] < oldest {
		l.winHead++
		if l.winHead == size {
			l.winHead = 0
		}

		l.winCount--
	}

	// A new peak dominates every smaller entry behind it.
	for l.winCount > 0 {
		back := l.winHead + l.winCount - 1
		if back >= size {
			back -= size
		}

		if l.winVal[back] > peak {
			break
		}

		l.winCount--
	}

	pos := l.winHead + l.winCount
	if pos >= size {
		pos -= size
	}

	l.winVal[pos] = peak
	l.winIdx[pos] = l.cursor
	l.winCount++
	l.cursor++

	return l.winVal[l.winHead]
}

// ProcessFrame limits one frame of samples in place. The frame must hold
// exactly one sample per channel.
func (l *Limiter) ProcessFrame(frame []float64) {
	peak := 0.0

	for ch := 0; ch < l.channels && ch < len(frame); ch++ {
		s := frame[ch] * l.preGainLin
		l.lines[ch].Write(s)

		if a := math.Abs(s); a > peak {
			peak = a
		}
	}

	if !core.IsFinite(peak) {
		peak = 0
	}

	if peak > l.metrics.InputPeak {
		l.metrics.InputPeak = peak
	}

	// The envelope attacks instantly to the window maximum; an attack that
	// keeps the gain below unity re-arms the hold counter. The envelope
	// does not decay while held, and releases exponentially afterwards.
	wmax := l.windowMax(peak)

	switch {
	case wmax >= l.envelope:
		l.envelope = wmax
		if l.envelope > l.thresholdLin {
			l.holdCounter = l.holdSamples
		}
	case l.holdCounter > 0:
		l.holdCounter--
	default:
		l.envelope = core.FlushDenormals(wmax + l.releaseCoeff*(l.envelope-wmax))
	}

	gain := GainForEnvelope(l.envelope, l.thresholdLin)

	grDB := 0.0
	if gain < 1 {
		grDB = core.LinearToDB(gain)
	}

	l.smoothedGRDB = l.smoothedGRDB*l.smoothing + grDB*(1-l.smoothing)

	for ch := 0; ch < l.channels && ch < len(frame); ch++ {
		out := l.lines[ch].Read(l.delaySample+1) * gain * l.makeupLin
		frame[ch] = out

		if a := math.Abs(out); a > l.metrics.OutputPeak {
			l.metrics.OutputPeak = a
		}
	}
}

// ProcessBlock limits a block in place. Each element of channels is one
// channel's samples; all slices must have equal length. The block path does
// not allocate.
func (l *Limiter) ProcessBlock(channels [][]float64) error {
	if len(channels) == 0 {
		return nil
	}

	if len(channels) != l.channels {
		return fmt.Errorf("limiter: expected %d channels, got %d", l.channels, len(channels))
	}

	n := len(channels[0])
	for ch := 1; ch < len(channels); ch++ {
		if len(channels[ch]) != n {
			return fmt.Errorf("limiter: channel %d length %d != %d", ch, len(channels[ch]), n)
		}
	}

	for i := 0; i < n; i++ {
		for ch := range channels {
			l.frame[ch] = channels[ch][i]
		}

		l.ProcessFrame(l.frame)

		for ch := range channels {
			channels[ch][i] = l.frame[ch]
		}
	}

	return nil
}

// Reset clears envelope, window, hold, delay, and metering state.
func (l *Limiter) Reset() {
	l.envelope = 0
	l.holdCounter = 0
	l.winHead = 0
	l.winCount = 0
	l.cursor = 0
	l.smoothedGRDB = 0
	l.metrics = LimiterMetrics{}

	for _, line := range l.lines {
		line.Reset()
	}
}

func (l *Limiter) updateMakeup() {
	if l.autoMakeup {
		l.makeupDB = -l.thresholdDB
	}

	l.makeupLin = mathPower10(l.makeupDB / 20.0)
}
