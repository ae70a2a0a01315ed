// Package effects provides waveshaping processors for the playback engine.
package effects

import (
	"fmt"
	"math"

	"github.com/sastraxi/stemset-engine/dsp/core"
)

// ClipCurve selects the soft clipper's transfer function.
type ClipCurve int

const (
	// CurveTanh is a smooth, symmetric hyperbolic tangent shaper.
	CurveTanh ClipCurve = iota
	// CurveAtan is an arctangent shaper, gentler than tanh.
	CurveAtan
	// CurveCubic is linear below the threshold with a cubic Hermite knee
	// up to the ceiling and a hard clip beyond full scale.
	CurveCubic
)

const (
	defaultClipDrive     = 1.0
	defaultClipThreshold = 0.8
	defaultClipMix       = 1.0

	minClipDrive     = 0.1
	maxClipDrive     = 10.0
	minClipThreshold = 0.05
	maxClipThreshold = 1.0
	minClipMix       = 0.0
	maxClipMix       = 1.0
)

// SoftClipper is a bypassable peak saturator with three interchangeable
// curves. The enabled flag bypasses processing entirely (pass-through,
// not silence); the dry/wet mix blends input and shaped output.
type SoftClipper struct {
	curve     ClipCurve
	drive     float64
	threshold float64
	mix       float64
	enabled   bool
}

// NewSoftClipper creates an enabled clipper with the tanh curve, unity
// drive, and a 0.8 threshold.
func NewSoftClipper() *SoftClipper {
	return &SoftClipper{
		curve:     CurveTanh,
		drive:     defaultClipDrive,
		threshold: defaultClipThreshold,
		mix:       defaultClipMix,
		enabled:   true,
	}
}

// SetCurve selects the transfer function. Unknown values fall back to tanh.
func (c *SoftClipper) SetCurve(curve ClipCurve) {
	switch curve {
	case CurveTanh, CurveAtan, CurveCubic:
		c.curve = curve
	default:
		c.curve = CurveTanh
	}
}

// SetDrive sets the input drive, clamped to [0.1, 10].
func (c *SoftClipper) SetDrive(v float64) {
	c.drive = core.Clamp(v, minClipDrive, maxClipDrive)
}

// SetThreshold sets the saturation ceiling, clamped to [0.05, 1].
func (c *SoftClipper) SetThreshold(v float64) {
	c.threshold = core.Clamp(v, minClipThreshold, maxClipThreshold)
}

// SetMix sets the dry/wet blend, clamped to [0, 1].
func (c *SoftClipper) SetMix(v float64) {
	c.mix = core.Clamp(v, minClipMix, maxClipMix)
}

// SetEnabled toggles the bypass. Disabled means exact pass-through.
func (c *SoftClipper) SetEnabled(enabled bool) {
	c.enabled = enabled
}

// Curve returns the active transfer function.
func (c *SoftClipper) Curve() ClipCurve { return c.curve }

// Drive returns the input drive.
func (c *SoftClipper) Drive() float64 { return c.drive }

// Threshold returns the saturation ceiling.
func (c *SoftClipper) Threshold() float64 { return c.threshold }

// Mix returns the dry/wet blend.
func (c *SoftClipper) Mix() float64 { return c.mix }

// Enabled reports whether the clipper is active.
func (c *SoftClipper) Enabled() bool { return c.enabled }

// ProcessSample shapes one sample and returns the result.
func (c *SoftClipper) ProcessSample(x float64) float64 {
	if !c.enabled {
		return x
	}

	var shaped float64

	switch c.curve {
	case CurveAtan:
		shaped = math.Atan(x*c.drive/c.threshold) / (math.Pi / 2) * c.threshold
	case CurveCubic:
		shaped = c.cubicKnee(x * c.drive)
	default:
		shaped = math.Tanh(x*c.drive/c.threshold) * c.threshold
	}

	return x*(1.0-c.mix) + shaped*c.mix
}

// ProcessBlock shapes a block of samples in place.
func (c *SoftClipper) ProcessBlock(samples []float64) {
	if !c.enabled {
		return
	}

	for i, x := range samples {
		samples[i] = c.ProcessSample(x)
	}
}

// Reset is a no-op; the clipper is stateless. It exists so the clipper
// satisfies the same processor surface as the stateful units.
func (c *SoftClipper) Reset() {}

// cubicKnee is linear below the threshold, a cubic Hermite segment from
// (threshold, threshold) with slope 1 to (1, 1) with slope 0, and a hard
// clip beyond full scale.
func (c *SoftClipper) cubicKnee(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1.0
		x = -x
	}

	t := c.threshold

	switch {
	case x <= t:
		return sign * x
	case x >= 1 || t >= 1:
		return sign
	}

	span := 1.0 - t
	u := (x - t) / span

	// Hermite basis with endpoint values (t, 1) and slopes (1, 0).
	h00 := 2*u*u*u - 3*u*u + 1
	h10 := u*u*u - 2*u*u + u
	h01 := -2*u*u*u + 3*u*u

	return sign * (h00*t + h10*span + h01)
}

// String names the curve for configuration and logging surfaces.
func (c ClipCurve) String() string {
	switch c {
	case CurveTanh:
		return "tanh"
	case CurveAtan:
		return "atan"
	case CurveCubic:
		return "cubic"
	default:
		return fmt.Sprintf("ClipCurve(%d)", int(c))
	}
}
