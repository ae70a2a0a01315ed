package core

import "math"

const (
	defaultEpsilon = 1e-12

	// MinThreshold is the floor substituted for non-positive linear
	// thresholds so envelope/threshold divisions stay finite.
	MinThreshold = 1e-9

	// MuteFloorDB is the level at or below which a dB gain is treated as a
	// hard mute (linear 0) to avoid denormal tails.
	MuteFloorDB = -96.0
)

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// ClampUnit limits value to [-1, 1]. Used as the final output-stage guard
// against band-summation and reverb overshoot.
func ClampUnit(value float64) float64 {
	return Clamp(value, -1, 1)
}

// SafeThreshold returns threshold if positive, else MinThreshold.
func SafeThreshold(threshold float64) float64 {
	if threshold <= 0 || math.IsNaN(threshold) {
		return MinThreshold
	}

	return threshold
}

// NearlyEqual reports whether a and b are equal within eps.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return diff <= eps
	}

	return diff/largest <= eps
}

// FlushDenormals converts tiny denormal-like values to exact zero.
// This can reduce denormal-related CPU slowdowns in hot DSP loops.
func FlushDenormals(x float64) float64 {
	const epsilon = 1e-30
	if x > -epsilon && x < epsilon {
		return 0
	}

	return x
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// DBToLinear converts dB to linear amplitude (20*log10 convention).
// Values at or below MuteFloorDB map to exactly 0.
func DBToLinear(db float64) float64 {
	if db <= MuteFloorDB {
		return 0
	}

	return math.Pow(10, db/20)
}

// LinearToDB converts linear amplitude to dB (20*log10 convention).
// Returns -Inf for zero and NaN for negative values.
func LinearToDB(linear float64) float64 {
	if linear < 0 {
		return math.NaN()
	}

	if linear == 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(linear)
}

// Zero silences a render buffer in place.
func Zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}

// BallisticsCoeff returns the exponential smoothing coefficient for an
// attack/release time constant in seconds at the given sample rate.
// Zero or negative times yield 0 (instantaneous response).
func BallisticsCoeff(timeSeconds, sampleRate float64) float64 {
	if timeSeconds <= 0 || sampleRate <= 0 {
		return 0
	}

	return math.Exp(-1 / (timeSeconds * sampleRate))
}
