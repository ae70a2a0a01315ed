// Package meter provides level metering for display purposes: smoothed
// per-channel peak and RMS readings plus an optional spectrum tap. Meters
// observe audio, they never modify it; all readings are derived once per
// processing block so the audio path stays non-blocking.
package meter

import (
	"math"

	"github.com/sastraxi/stemset-engine/dsp/core"
)

const (
	defaultLevelSmoothing = 0.7
	minLevelSmoothing     = 0.1
	maxLevelSmoothing     = 0.9
)

// Levels is a per-channel snapshot of smoothed meter readings.
type Levels struct {
	Peak []float64 // Smoothed peak per channel, linear
	RMS  []float64 // Smoothed RMS per channel, linear
}

// LevelMeter tracks smoothed peak and RMS levels per channel.
//
// Raw block peak and RMS are folded into the displayed value with an
// exponential smoother so meter ballistics stay stable at any block size.
type LevelMeter struct {
	channels  int
	smoothing float64

	peak []float64
	rms  []float64
}

// NewLevelMeter creates a meter with the given options.
func NewLevelMeter(opts ...Option) *LevelMeter {
	cfg := ApplyOptions(opts...)

	return &LevelMeter{
		channels:  cfg.Channels,
		smoothing: cfg.Smoothing,
		peak:      make([]float64, cfg.Channels),
		rms:       make([]float64, cfg.Channels),
	}
}

// Channels returns the configured channel count.
func (m *LevelMeter) Channels() int { return m.channels }

// SetSmoothing sets the smoothing factor, clamped to [0.1, 0.9].
func (m *LevelMeter) SetSmoothing(v float64) {
	m.smoothing = core.Clamp(v, minLevelSmoothing, maxLevelSmoothing)
}

// ProcessBlock folds one block of per-channel samples into the meter.
// Channels beyond the configured count are ignored; missing channels decay.
func (m *LevelMeter) ProcessBlock(channels [][]float64) {
	for ch := 0; ch < m.channels; ch++ {
		var blockPeak, sumSquares float64

		n := 0
		if ch < len(channels) {
			n = len(channels[ch])
			for _, s := range channels[ch] {
				if a := math.Abs(s); a > blockPeak {
					blockPeak = a
				}

				sumSquares += s * s
			}
		}

		blockRMS := 0.0
		if n > 0 {
			blockRMS = math.Sqrt(sumSquares / float64(n))
		}

		m.peak[ch] = core.FlushDenormals(m.peak[ch]*m.smoothing + blockPeak*(1-m.smoothing))
		m.rms[ch] = core.FlushDenormals(m.rms[ch]*m.smoothing + blockRMS*(1-m.smoothing))
	}
}

// Peak returns one channel's smoothed linear peak without allocating.
// Invalid channel indices read as silence.
func (m *LevelMeter) Peak(ch int) float64 {
	if ch < 0 || ch >= m.channels {
		return 0
	}

	return m.peak[ch]
}

// RMS returns one channel's smoothed linear RMS without allocating.
func (m *LevelMeter) RMS(ch int) float64 {
	if ch < 0 || ch >= m.channels {
		return 0
	}

	return m.rms[ch]
}

// Snapshot returns a copy of the current smoothed levels.
func (m *LevelMeter) Snapshot() Levels {
	return Levels{
		Peak: append([]float64(nil), m.peak...),
		RMS:  append([]float64(nil), m.rms...),
	}
}

// PeakDB returns one channel's smoothed peak in dB, or -Inf for silence.
// Invalid channel indices read as silence.
func (m *LevelMeter) PeakDB(ch int) float64 {
	if ch < 0 || ch >= m.channels {
		return core.LinearToDB(0)
	}

	return core.LinearToDB(m.peak[ch])
}

// RMSDB returns one channel's smoothed RMS in dB.
func (m *LevelMeter) RMSDB(ch int) float64 {
	if ch < 0 || ch >= m.channels {
		return core.LinearToDB(0)
	}

	return core.LinearToDB(m.rms[ch])
}

// Reset clears all smoothed state.
func (m *LevelMeter) Reset() {
	for ch := range m.peak {
		m.peak[ch] = 0
		m.rms[ch] = 0
	}
}
