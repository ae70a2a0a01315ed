// Package spatial provides stereo-field processors.
package spatial

import (
	"fmt"
	"math"

	"github.com/sastraxi/stemset-engine/dsp/core"
	"github.com/sastraxi/stemset-engine/dsp/dynamics"
)

// Band indices for the multiband expander.
const (
	BandLow = iota
	BandMid
	BandHigh
	NumBands
)

const (
	defaultLowMidCrossoverHz  = 220.0
	defaultMidHighCrossoverHz = 3200.0
	defaultBandWidth          = 1.0
	defaultExpanderKneeDB     = 6.0

	minCrossoverHz = 20.0
	minBandWidth   = 0.0
	maxBandWidth   = 2.0
	minBandComp    = 0.0
	maxBandComp    = 1.0
)

// onePole is a first-order lowpass whose previous output persists across
// blocks. The matching highpass is the input minus the lowpass output.
type onePole struct {
	coeff float64
	state float64
}

func (f *onePole) setCutoff(hz, sampleRate float64) {
	f.coeff = 1.0 - math.Exp(-2.0*math.Pi*hz/sampleRate)
}

func (f *onePole) process(x float64) float64 {
	f.state = core.FlushDenormals(f.state + f.coeff*(x-f.state))

	return f.state
}

func (f *onePole) reset() {
	f.state = 0
}

// MultibandStereoExpander splits a stereo signal into low/mid/high bands,
// widens each band independently in the mid/side domain, applies gentle
// per-band soft-knee compression, and resums.
//
// The split uses two cascaded first-order crossovers: the low band is a
// lowpass at the low/mid crossover, the high band a highpass at the mid/high
// crossover, and the mid band is the residual (input minus low minus high),
// so the three bands always sum back to the input when untouched.
//
// Whole-mix widening destabilizes low frequencies and is perceptually uneven
// across the spectrum; per-band width control avoids both problems.
type MultibandStereoExpander struct {
	sampleRate float64

	lowMidHz  float64
	midHighHz float64

	widths      [NumBands]float64
	compAmounts [NumBands]float64

	// index 0 = left, 1 = right
	lowFilter  [2]onePole
	highFilter [2]onePole

	// per band, per output channel (L', R')
	comps [NumBands][2]*dynamics.SoftKnee
}

// NewMultibandStereoExpander creates an expander with neutral defaults:
// all band widths at 1.0 and no compression.
func NewMultibandStereoExpander(sampleRate float64) (*MultibandStereoExpander, error) {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("expander sample rate must be positive and finite: %f", sampleRate)
	}

	e := &MultibandStereoExpander{sampleRate: sampleRate}

	for band := 0; band < NumBands; band++ {
		e.widths[band] = defaultBandWidth

		for ch := 0; ch < 2; ch++ {
			comp, err := dynamics.NewSoftKnee(sampleRate, defaultExpanderKneeDB)
			if err != nil {
				return nil, err
			}

			e.comps[band][ch] = comp
		}
	}

	e.SetCrossovers(defaultLowMidCrossoverHz, defaultMidHighCrossoverHz)

	return e, nil
}

// SetCrossovers sets the low/mid and mid/high crossover frequencies in Hz.
// Each is clamped to [20, 0.45*sampleRate], and the mid/high crossover is
// kept at or above the low/mid crossover.
func (e *MultibandStereoExpander) SetCrossovers(lowMidHz, midHighHz float64) {
	maxHz := 0.45 * e.sampleRate

	e.lowMidHz = core.Clamp(lowMidHz, minCrossoverHz, maxHz)
	e.midHighHz = core.Clamp(midHighHz, e.lowMidHz, maxHz)

	for ch := 0; ch < 2; ch++ {
		e.lowFilter[ch].setCutoff(e.lowMidHz, e.sampleRate)
		e.highFilter[ch].setCutoff(e.midHighHz, e.sampleRate)
	}
}

// SetBandWidth sets the stereo width for one band, clamped to [0, 2].
// Width 0 collapses the band to mono, 1 leaves it unchanged, 2 doubles the
// side signal. Out-of-range band indices are ignored.
func (e *MultibandStereoExpander) SetBandWidth(band int, width float64) {
	if band < 0 || band >= NumBands {
		return
	}

	e.widths[band] = core.Clamp(width, minBandWidth, maxBandWidth)
}

// SetBandCompression sets the soft-knee compression amount for one band,
// clamped to [0, 1]. Out-of-range band indices are ignored.
func (e *MultibandStereoExpander) SetBandCompression(band int, amount float64) {
	if band < 0 || band >= NumBands {
		return
	}

	e.compAmounts[band] = core.Clamp(amount, minBandComp, maxBandComp)

	for ch := 0; ch < 2; ch++ {
		e.comps[band][ch].SetAmount(e.compAmounts[band])
	}
}

// SetBandThreshold sets the per-band compression threshold in dB for both
// channels of one band.
func (e *MultibandStereoExpander) SetBandThreshold(band int, dB float64) {
	if band < 0 || band >= NumBands {
		return
	}

	for ch := 0; ch < 2; ch++ {
		e.comps[band][ch].SetThreshold(dB)
	}
}

// LowMidCrossover returns the low/mid crossover frequency in Hz.
func (e *MultibandStereoExpander) LowMidCrossover() float64 { return e.lowMidHz }

// MidHighCrossover returns the mid/high crossover frequency in Hz.
func (e *MultibandStereoExpander) MidHighCrossover() float64 { return e.midHighHz }

// BandWidth returns the stereo width of one band (0 for invalid indices).
func (e *MultibandStereoExpander) BandWidth(band int) float64 {
	if band < 0 || band >= NumBands {
		return 0
	}

	return e.widths[band]
}

// BandCompression returns the compression amount of one band.
func (e *MultibandStereoExpander) BandCompression(band int) float64 {
	if band < 0 || band >= NumBands {
		return 0
	}

	return e.compAmounts[band]
}

// ProcessFrame expands one stereo frame and returns the processed pair.
func (e *MultibandStereoExpander) ProcessFrame(left, right float64) (float64, float64) {
	var bandsL, bandsR [NumBands]float64

	bandsL[BandLow], bandsL[BandMid], bandsL[BandHigh] = e.split(0, left)
	bandsR[BandLow], bandsR[BandMid], bandsR[BandHigh] = e.split(1, right)

	var outL, outR float64

	for band := 0; band < NumBands; band++ {
		mid := (bandsL[band] + bandsR[band]) * 0.5
		side := (bandsL[band] - bandsR[band]) * 0.5
		side *= e.widths[band]

		l := e.comps[band][0].ProcessSample(mid + side)
		r := e.comps[band][1].ProcessSample(mid - side)

		outL += l
		outR += r
	}

	// Band summation can overshoot after widening; clamp the final output.
	return core.ClampUnit(outL), core.ClampUnit(outR)
}

// ProcessBlock expands a stereo block in place. Both slices must have the
// same length.
func (e *MultibandStereoExpander) ProcessBlock(left, right []float64) error {
	if len(left) != len(right) {
		return fmt.Errorf("expander: channel lengths differ: %d != %d", len(left), len(right))
	}

	for i := range left {
		left[i], right[i] = e.ProcessFrame(left[i], right[i])
	}

	return nil
}

// Reset clears all filter and detector state.
func (e *MultibandStereoExpander) Reset() {
	for ch := 0; ch < 2; ch++ {
		e.lowFilter[ch].reset()
		e.highFilter[ch].reset()
	}

	for band := 0; band < NumBands; band++ {
		for ch := 0; ch < 2; ch++ {
			e.comps[band][ch].Reset()
		}
	}
}

// split runs one channel's crossover filters and returns (low, mid, high).
// The mid band is the residual, so low+mid+high reconstructs the input.
func (e *MultibandStereoExpander) split(ch int, x float64) (low, mid, high float64) {
	low = e.lowFilter[ch].process(x)
	high = x - e.highFilter[ch].process(x)
	mid = x - low - high

	return low, mid, high
}
