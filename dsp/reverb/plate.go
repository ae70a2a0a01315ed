// Package reverb provides a plate-style reverberator with a saturating
// diffusion network.
package reverb

import (
	"fmt"
	"math"

	"github.com/sastraxi/stemset-engine/dsp/core"
	"github.com/sastraxi/stemset-engine/dsp/delay"
)

const (
	defaultReverbMix   = 0.25
	defaultReverbDecay = 0.75
	defaultSatAmount   = 0.5

	minReverbMix   = 0.0
	maxReverbMix   = 1.0
	minReverbDecay = 0.0
	maxReverbDecay = 0.98
	minSatAmount   = 0.0
	maxSatAmount   = 3.0

	numEarlyLines = 4
	numAllpasses  = 3

	allpassFeedback = 0.62
)

// Early-reflection and allpass delay times in seconds. The reflection times
// are mutually prime-ish in samples at common rates so the taps do not pile
// up on shared periods; the allpass times follow the classic short-cascade
// diffusor layout.
var (
	earlyTimesSec   = [numEarlyLines]float64{0.0297, 0.0371, 0.0411, 0.0437}
	allpassTimesSec = [numAllpasses]float64{0.0050, 0.0017, 0.0123}
)

// saturatingAllpass is a Schroeder allpass whose feedback sample passes
// through a tanh waveshaper and a decay scale before being written back.
//
// The shaping must happen inside the loop and before the decay scale; the
// saturator bounds the recirculating energy, so the filter stays stable for
// any saturation amount as long as decay < 1.
type saturatingAllpass struct {
	line *delay.Line
}

func (a *saturatingAllpass) process(x, decay, sat float64) float64 {
	buffered := a.line.Peek()
	out := buffered - allpassFeedback*x

	feedback := x + allpassFeedback*out
	a.line.Write(core.FlushDenormals(saturate(feedback, sat) * decay))

	return out
}

// saturate applies tanh shaping with unity slope at the origin. A zero
// amount is a linear pass-through.
func saturate(x, amount float64) float64 {
	if amount <= 0 {
		return x
	}

	return math.Tanh(x*amount) / amount
}

// PlateReverb synthesizes plate-like reverberation for stereo signals.
//
// Each channel runs 4 parallel early-reflection delay lines summed with
// equal weighting, then 3 cascaded saturating allpass diffusors. The
// saturation adds harmonic coloration that grows with the recirculating
// energy, which is what separates this from a clean linear plate model.
type PlateReverb struct {
	sampleRate float64

	mix   float64
	decay float64
	sat   float64

	early   [2][numEarlyLines]*delay.Line
	allpass [2][numAllpasses]saturatingAllpass
}

// NewPlateReverb creates a reverb with moderate defaults (25% wet,
// decay 0.75, light saturation).
func NewPlateReverb(sampleRate float64) (*PlateReverb, error) {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("reverb sample rate must be positive and finite: %f", sampleRate)
	}

	r := &PlateReverb{
		sampleRate: sampleRate,
		mix:        defaultReverbMix,
		decay:      defaultReverbDecay,
		sat:        defaultSatAmount,
	}

	for ch := 0; ch < 2; ch++ {
		for i := 0; i < numEarlyLines; i++ {
			line, err := delay.New(samplesFor(earlyTimesSec[i], sampleRate))
			if err != nil {
				return nil, fmt.Errorf("reverb early line %d: %w", i, err)
			}

			r.early[ch][i] = line
		}

		for i := 0; i < numAllpasses; i++ {
			line, err := delay.New(samplesFor(allpassTimesSec[i], sampleRate))
			if err != nil {
				return nil, fmt.Errorf("reverb allpass %d: %w", i, err)
			}

			r.allpass[ch][i] = saturatingAllpass{line: line}
		}
	}

	return r, nil
}

func samplesFor(sec, sampleRate float64) int {
	n := int(math.Round(sec * sampleRate))
	if n < 1 {
		n = 1
	}

	return n
}

// SetMix sets the dry/wet mix, clamped to [0, 1]. 0 is fully dry.
func (r *PlateReverb) SetMix(v float64) {
	r.mix = core.Clamp(v, minReverbMix, maxReverbMix)
}

// SetDecay sets the tail decay factor, clamped to [0, 0.98]. The bound stays
// strictly below 1 so the recirculating energy always dies out.
func (r *PlateReverb) SetDecay(v float64) {
	r.decay = core.Clamp(v, minReverbDecay, maxReverbDecay)
}

// SetSaturation sets the diffusion waveshaper amount, clamped to [0, 3].
func (r *PlateReverb) SetSaturation(v float64) {
	r.sat = core.Clamp(v, minSatAmount, maxSatAmount)
}

// Mix returns the dry/wet mix.
func (r *PlateReverb) Mix() float64 { return r.mix }

// Decay returns the decay factor.
func (r *PlateReverb) Decay() float64 { return r.decay }

// Saturation returns the waveshaper amount.
func (r *PlateReverb) Saturation() float64 { return r.sat }

// ProcessFrame reverberates one stereo frame and returns the processed pair.
func (r *PlateReverb) ProcessFrame(left, right float64) (float64, float64) {
	return r.processChannel(0, left), r.processChannel(1, right)
}

// ProcessBlock reverberates a stereo block in place. Both slices must have
// the same length.
func (r *PlateReverb) ProcessBlock(left, right []float64) error {
	if len(left) != len(right) {
		return fmt.Errorf("reverb: channel lengths differ: %d != %d", len(left), len(right))
	}

	for i := range left {
		left[i], right[i] = r.ProcessFrame(left[i], right[i])
	}

	return nil
}

// Reset clears all delay and diffusion state.
func (r *PlateReverb) Reset() {
	for ch := 0; ch < 2; ch++ {
		for i := 0; i < numEarlyLines; i++ {
			r.early[ch][i].Reset()
		}

		for i := 0; i < numAllpasses; i++ {
			r.allpass[ch][i].line.Reset()
		}
	}
}

func (r *PlateReverb) processChannel(ch int, dry float64) float64 {
	// Equal-weighted early reflections, read before write.
	var reflected float64

	for i := 0; i < numEarlyLines; i++ {
		line := r.early[ch][i]
		reflected += line.Peek()
		line.Write(dry)
	}

	wet := reflected * (1.0 / numEarlyLines)

	for i := 0; i < numAllpasses; i++ {
		wet = r.allpass[ch][i].process(wet, r.decay, r.sat)
	}

	return dry*(1.0-r.mix) + wet*r.mix
}
