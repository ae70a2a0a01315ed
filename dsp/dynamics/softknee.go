package dynamics

import (
	"github.com/sastraxi/stemset-engine/dsp/core"
)

const (
	defaultSoftKneeThresholdDB = -18.0
	defaultSoftKneeKneeDB      = 6.0
	defaultSoftKneeAttackSec   = 0.004
	defaultSoftKneeReleaseSec  = 0.120

	minSoftKneeThresholdDB = -60.0
	maxSoftKneeThresholdDB = 0.0
	minSoftKneeAmount      = 0.0
	maxSoftKneeAmount      = 1.0
)

// SoftKnee applies gentle soft-knee compression to a single channel.
//
// The gain computer works in the log2 domain: overshoot above threshold is
// scaled by the compression amount (0 = unity, 1 = full limiting at the
// threshold), with a quadratic knee spanning kneeDB around the threshold.
// The detector is an EnvelopeFollower, so two instances configured alike
// stay phase-coherent across a stereo pair.
type SoftKnee struct {
	follower *EnvelopeFollower

	thresholdDB float64
	kneeDB      float64
	amount      float64

	thresholdLog2    float64
	kneeWidthLog2    float64
	invKneeWidthLog2 float64
}

// NewSoftKnee creates a soft-knee gain stage with the given fixed knee width.
func NewSoftKnee(sampleRate, kneeDB float64) (*SoftKnee, error) {
	follower, err := NewEnvelopeFollower(sampleRate, defaultSoftKneeAttackSec, defaultSoftKneeReleaseSec)
	if err != nil {
		return nil, err
	}

	k := &SoftKnee{
		follower: follower,
		kneeDB:   core.Clamp(kneeDB, 0, 24),
		amount:   0,
	}
	k.SetThreshold(defaultSoftKneeThresholdDB)

	return k, nil
}

// SetThreshold sets the compression threshold in dB, clamped to [-60, 0].
func (k *SoftKnee) SetThreshold(dB float64) {
	k.thresholdDB = clampParam(dB, minSoftKneeThresholdDB, maxSoftKneeThresholdDB)
	k.thresholdLog2 = k.thresholdDB * log2Of10Div20
	k.kneeWidthLog2 = k.kneeDB * log2Of10Div20

	if k.kneeDB > 0 {
		k.invKneeWidthLog2 = 1.0 / k.kneeWidthLog2
	} else {
		k.invKneeWidthLog2 = 0
	}
}

// SetAmount sets the compression amount in [0, 1].
func (k *SoftKnee) SetAmount(v float64) {
	k.amount = clampParam(v, minSoftKneeAmount, maxSoftKneeAmount)
}

// SetAttack sets the detector attack time in seconds.
func (k *SoftKnee) SetAttack(sec float64) { k.follower.SetAttack(sec) }

// SetRelease sets the detector release time in seconds.
func (k *SoftKnee) SetRelease(sec float64) { k.follower.SetRelease(sec) }

// Threshold returns the threshold in dB.
func (k *SoftKnee) Threshold() float64 { return k.thresholdDB }

// Amount returns the compression amount in [0, 1].
func (k *SoftKnee) Amount() float64 { return k.amount }

// ProcessSample compresses one sample and returns the result.
func (k *SoftKnee) ProcessSample(input float64) float64 {
	return input * k.GainForSample(input)
}

// GainForSample advances the detector with input and returns the gain that
// ProcessSample would apply.
func (k *SoftKnee) GainForSample(input float64) float64 {
	env := k.follower.Step(input)
	if k.amount <= 0 || env <= 0 {
		return 1.0
	}

	overshoot := mathLog2(env) - k.thresholdLog2

	halfWidth := k.kneeWidthLog2 * 0.5
	if overshoot < -halfWidth {
		return 1.0
	}

	effectiveOvershoot := overshoot
	if overshoot <= halfWidth {
		scratch := overshoot + halfWidth
		effectiveOvershoot = scratch * scratch * 0.5 * k.invKneeWidthLog2
	}

	return mathPower2(-effectiveOvershoot * k.amount)
}

// Reset clears the detector state.
func (k *SoftKnee) Reset() {
	k.follower.Reset()
}
