package dynamics

import (
	"github.com/sastraxi/stemset-engine/dsp/core"
)

const (
	minBallisticsTimeSec = 0.0
	maxBallisticsTimeSec = 10.0

	log2Of10Div20 = 0.166096404744
)

// EnvelopeFollower tracks a signal envelope with asymmetric attack/release
// ballistics. The envelope is updated as
//
//	env = peak + coef * (env - peak)
//
// where coef is the attack coefficient while the instantaneous peak exceeds
// the current envelope and the release coefficient otherwise. This is the
// detector behind the soft-knee compressors.
type EnvelopeFollower struct {
	sampleRate float64
	attackSec  float64
	releaseSec float64

	attackCoeff  float64
	releaseCoeff float64
	envelope     float64
}

// NewEnvelopeFollower creates a follower with the given ballistics.
// Attack and release times are clamped to [0, 10] seconds; zero gives an
// instantaneous response on that edge.
func NewEnvelopeFollower(sampleRate, attackSec, releaseSec float64) (*EnvelopeFollower, error) {
	if err := validateSampleRate(sampleRate); err != nil {
		return nil, err
	}

	e := &EnvelopeFollower{sampleRate: sampleRate}
	e.SetAttack(attackSec)
	e.SetRelease(releaseSec)

	return e, nil
}

// SetAttack sets the attack time constant in seconds, clamped to valid range.
func (e *EnvelopeFollower) SetAttack(sec float64) {
	e.attackSec = clampParam(sec, minBallisticsTimeSec, maxBallisticsTimeSec)
	e.attackCoeff = core.BallisticsCoeff(e.attackSec, e.sampleRate)
}

// SetRelease sets the release time constant in seconds, clamped to valid range.
func (e *EnvelopeFollower) SetRelease(sec float64) {
	e.releaseSec = clampParam(sec, minBallisticsTimeSec, maxBallisticsTimeSec)
	e.releaseCoeff = core.BallisticsCoeff(e.releaseSec, e.sampleRate)
}

// Attack returns the attack time in seconds.
func (e *EnvelopeFollower) Attack() float64 { return e.attackSec }

// Release returns the release time in seconds.
func (e *EnvelopeFollower) Release() float64 { return e.releaseSec }

// SampleRate returns the sample rate in Hz.
func (e *EnvelopeFollower) SampleRate() float64 { return e.sampleRate }

// Envelope returns the current envelope value.
func (e *EnvelopeFollower) Envelope() float64 { return e.envelope }

// Step advances the follower by one rectified input sample and returns the
// updated envelope. Negative peaks are rectified; non-finite peaks are
// treated as zero so the state stays finite.
func (e *EnvelopeFollower) Step(peak float64) float64 {
	if peak < 0 {
		peak = -peak
	}

	if !core.IsFinite(peak) {
		peak = 0
	}

	coeff := e.releaseCoeff
	if peak > e.envelope {
		coeff = e.attackCoeff
	}

	e.envelope = core.FlushDenormals(peak + coeff*(e.envelope-peak))

	return e.envelope
}

// Reset clears the envelope state.
func (e *EnvelopeFollower) Reset() {
	e.envelope = 0
}

// GainForEnvelope computes the target gain for an envelope against a linear
// threshold: 1 when the envelope is at or below threshold, otherwise
// threshold/envelope so that envelope*gain == threshold. Thresholds at or
// below zero are floored to a small epsilon.
func GainForEnvelope(envelope, threshold float64) float64 {
	threshold = core.SafeThreshold(threshold)
	if envelope <= threshold {
		return 1.0
	}

	return threshold / envelope
}

func clampParam(v, min, max float64) float64 {
	if !core.IsFinite(v) {
		if v > 0 {
			return max
		}

		return min
	}

	return core.Clamp(v, min, max)
}

func validateSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return errInvalidSampleRate(sampleRate)
	}

	return nil
}
