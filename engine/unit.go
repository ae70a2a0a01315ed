package engine

import (
	"fmt"

	"github.com/sastraxi/stemset-engine/dsp/dynamics"
	"github.com/sastraxi/stemset-engine/dsp/effects"
	"github.com/sastraxi/stemset-engine/dsp/reverb"
	"github.com/sastraxi/stemset-engine/dsp/spatial"
)

// Unit is one stereo effect in a channel or master chain.
//
// SetParam is the flat parameter surface used by the control side: values
// outside a parameter's declared range are clamped by the underlying
// processor, never rejected; only unknown parameter names error.
type Unit interface {
	ID() string
	ProcessBlock(left, right []float64)
	Reset()
	SetParam(name string, value float64) error
}

func errUnknownParam(unitID, name string) error {
	return fmt.Errorf("unit %q: unknown parameter %q", unitID, name)
}

// LimiterUnit adapts the lookahead limiter to the Unit surface.
type LimiterUnit struct {
	id  string
	lim *dynamics.Limiter

	block [2][]float64
}

// NewLimiterUnit creates a stereo limiter unit.
func NewLimiterUnit(id string, sampleRate float64) (*LimiterUnit, error) {
	lim, err := dynamics.NewLimiter(sampleRate, 2)
	if err != nil {
		return nil, err
	}

	return &LimiterUnit{id: id, lim: lim}, nil
}

// ID returns the unit identifier.
func (u *LimiterUnit) ID() string { return u.id }

// Limiter exposes the wrapped processor for metering taps.
func (u *LimiterUnit) Limiter() *dynamics.Limiter { return u.lim }

// ProcessBlock limits the stereo pair in place.
func (u *LimiterUnit) ProcessBlock(left, right []float64) {
	u.block[0] = left
	u.block[1] = right

	// Lengths are guaranteed equal by the graph; an error here would mean
	// a programming bug upstream, and the limiter leaves audio untouched.
	_ = u.lim.ProcessBlock(u.block[:])
}

// Reset clears limiter state.
func (u *LimiterUnit) Reset() { u.lim.Reset() }

// SetParam routes a named parameter to the limiter's clamping setters.
func (u *LimiterUnit) SetParam(name string, value float64) error {
	switch name {
	case "preGain":
		u.lim.SetPreGain(value)
	case "threshold":
		u.lim.SetThreshold(value)
	case "attack":
		u.lim.SetAttack(value)
	case "hold":
		u.lim.SetHold(value)
	case "release":
		u.lim.SetRelease(value)
	case "makeup":
		u.lim.SetMakeupGain(value)
	case "autoMakeup":
		u.lim.SetAutoMakeup(value != 0)
	case "meterSmoothing":
		u.lim.SetMeterSmoothing(value)
	default:
		return errUnknownParam(u.id, name)
	}

	return nil
}

// ExpanderUnit adapts the multiband stereo expander to the Unit surface.
type ExpanderUnit struct {
	id  string
	exp *spatial.MultibandStereoExpander
}

// NewExpanderUnit creates a multiband expander unit.
func NewExpanderUnit(id string, sampleRate float64) (*ExpanderUnit, error) {
	exp, err := spatial.NewMultibandStereoExpander(sampleRate)
	if err != nil {
		return nil, err
	}

	return &ExpanderUnit{id: id, exp: exp}, nil
}

// ID returns the unit identifier.
func (u *ExpanderUnit) ID() string { return u.id }

// ProcessBlock expands the stereo pair in place.
func (u *ExpanderUnit) ProcessBlock(left, right []float64) {
	_ = u.exp.ProcessBlock(left, right)
}

// Reset clears expander state.
func (u *ExpanderUnit) Reset() { u.exp.Reset() }

// SetParam routes a named parameter to the expander's clamping setters.
func (u *ExpanderUnit) SetParam(name string, value float64) error {
	switch name {
	case "lowMidCrossover":
		u.exp.SetCrossovers(value, u.exp.MidHighCrossover())
	case "midHighCrossover":
		u.exp.SetCrossovers(u.exp.LowMidCrossover(), value)
	case "lowWidth":
		u.exp.SetBandWidth(spatial.BandLow, value)
	case "midWidth":
		u.exp.SetBandWidth(spatial.BandMid, value)
	case "highWidth":
		u.exp.SetBandWidth(spatial.BandHigh, value)
	case "lowComp":
		u.exp.SetBandCompression(spatial.BandLow, value)
	case "midComp":
		u.exp.SetBandCompression(spatial.BandMid, value)
	case "highComp":
		u.exp.SetBandCompression(spatial.BandHigh, value)
	default:
		return errUnknownParam(u.id, name)
	}

	return nil
}

// ReverbUnit adapts the plate reverb to the Unit surface.
type ReverbUnit struct {
	id  string
	rev *reverb.PlateReverb
}

// NewReverbUnit creates a plate reverb unit.
func NewReverbUnit(id string, sampleRate float64) (*ReverbUnit, error) {
	rev, err := reverb.NewPlateReverb(sampleRate)
	if err != nil {
		return nil, err
	}

	return &ReverbUnit{id: id, rev: rev}, nil
}

// ID returns the unit identifier.
func (u *ReverbUnit) ID() string { return u.id }

// ProcessBlock reverberates the stereo pair in place.
func (u *ReverbUnit) ProcessBlock(left, right []float64) {
	_ = u.rev.ProcessBlock(left, right)
}

// Reset clears reverb state.
func (u *ReverbUnit) Reset() { u.rev.Reset() }

// SetParam routes a named parameter to the reverb's clamping setters.
func (u *ReverbUnit) SetParam(name string, value float64) error {
	switch name {
	case "mix":
		u.rev.SetMix(value)
	case "decay":
		u.rev.SetDecay(value)
	case "satAmount":
		u.rev.SetSaturation(value)
	default:
		return errUnknownParam(u.id, name)
	}

	return nil
}

// ClipperUnit adapts the soft clipper to the Unit surface.
type ClipperUnit struct {
	id   string
	clip *effects.SoftClipper
}

// NewClipperUnit creates a soft clipper unit.
func NewClipperUnit(id string) *ClipperUnit {
	return &ClipperUnit{id: id, clip: effects.NewSoftClipper()}
}

// ID returns the unit identifier.
func (u *ClipperUnit) ID() string { return u.id }

// ProcessBlock shapes both channels in place.
func (u *ClipperUnit) ProcessBlock(left, right []float64) {
	u.clip.ProcessBlock(left)
	u.clip.ProcessBlock(right)
}

// Reset is a no-op; the clipper is stateless.
func (u *ClipperUnit) Reset() { u.clip.Reset() }

// SetParam routes a named parameter to the clipper's clamping setters.
func (u *ClipperUnit) SetParam(name string, value float64) error {
	switch name {
	case "curve":
		u.clip.SetCurve(effects.ClipCurve(int(value)))
	case "drive":
		u.clip.SetDrive(value)
	case "threshold":
		u.clip.SetThreshold(value)
	case "mix":
		u.clip.SetMix(value)
	case "enabled":
		u.clip.SetEnabled(value != 0)
	default:
		return errUnknownParam(u.id, name)
	}

	return nil
}
