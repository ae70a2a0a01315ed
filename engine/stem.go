package engine

import (
	"fmt"
	"math"

	"github.com/go-audio/audio"

	"github.com/sastraxi/stemset-engine/dsp/core"
)

const (
	minUserGain = 0.0
	maxUserGain = 2.0
)

// StemMetadata describes one decoded stem. It is immutable and supplied by
// the host alongside the decoded buffer.
type StemMetadata struct {
	ID           string
	LoudnessDB   float64 // measured program loudness
	Peak         float64 // maximum absolute sample in the buffer
	GainAdjustDB float64 // static gain adjustment applied before user gain
}

// Stem pairs metadata with a decoded buffer. Buffers hold one slice per
// channel (1 = mono, 2 = stereo); all stems in a session share one sample
// rate, enforced by the session owning a single rate.
type Stem struct {
	Metadata StemMetadata
	Buffer   [][]float64
}

// StemFromFloat32Buffer converts a decoded interleaved PCM buffer into a
// stem, deinterleaving the channels and measuring the peak. Only mono and
// stereo buffers are accepted.
func StemFromFloat32Buffer(id string, buf *audio.Float32Buffer) (Stem, error) {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return Stem{}, fmt.Errorf("stem %q: invalid buffer", id)
	}

	numCh := buf.Format.NumChannels
	if numCh > 2 {
		return Stem{}, fmt.Errorf("stem %q: %d channels, want mono or stereo", id, numCh)
	}

	frames := len(buf.Data) / numCh
	if frames == 0 {
		return Stem{}, fmt.Errorf("stem %q: empty buffer", id)
	}

	peak := 0.0
	channels := make([][]float64, numCh)
	for ch := range channels {
		channels[ch] = make([]float64, frames)
		for i := 0; i < frames; i++ {
			s := float64(buf.Data[i*numCh+ch])
			channels[ch][i] = s

			if a := math.Abs(s); a > peak {
				peak = a
			}
		}
	}

	return Stem{
		Metadata: StemMetadata{ID: id, Peak: peak},
		Buffer:   channels,
	}, nil
}

// frames returns the stem length in frames (0 for empty or invalid buffers).
func (s Stem) frames() int {
	if len(s.Buffer) == 0 {
		return 0
	}

	n := len(s.Buffer[0])
	for _, ch := range s.Buffer[1:] {
		if len(ch) < n {
			n = len(ch)
		}
	}

	return n
}

// ChannelState is the host-owned mutable state for one stem channel.
type ChannelState struct {
	Gain   float64 // linear multiplier, clamped to [0, 2]
	Muted  bool
	Soloed bool
}

// Channel wraps one stem: its buffer, its gain staging, and its ordered
// effect chain. Audible gain is resolved by the session (mute/solo logic)
// and handed to the render path as a single multiplier.
type Channel struct {
	meta  StemMetadata
	left  []float64
	right []float64

	baseGain float64
	state    ChannelState

	units []Unit
}

// newChannel validates a stem and builds its channel. Stems with empty
// buffers or more than two channels are rejected; mono stems feed both
// output channels.
func newChannel(stem Stem, units []Unit) (*Channel, error) {
	n := stem.frames()
	if n == 0 {
		return nil, fmt.Errorf("stem %q: empty buffer", stem.Metadata.ID)
	}

	if len(stem.Buffer) > 2 {
		return nil, fmt.Errorf("stem %q: %d buffer channels, want 1 or 2", stem.Metadata.ID, len(stem.Buffer))
	}

	left := stem.Buffer[0]
	right := left
	if len(stem.Buffer) == 2 {
		right = stem.Buffer[1]
	}

	return &Channel{
		meta:     stem.Metadata,
		left:     left,
		right:    right,
		baseGain: core.DBToLinear(stem.Metadata.GainAdjustDB),
		state:    ChannelState{Gain: 1.0},
		units:    units,
	}, nil
}

// ID returns the stem identifier.
func (c *Channel) ID() string { return c.meta.ID }

// Metadata returns the stem metadata.
func (c *Channel) Metadata() StemMetadata { return c.meta }

// frames returns the channel buffer length in frames.
func (c *Channel) frames() int { return len(c.left) }

// setState stores host channel state with the gain clamped to [0, 2].
func (c *Channel) setState(state ChannelState) {
	state.Gain = core.Clamp(state.Gain, minUserGain, maxUserGain)
	c.state = state
}

// renderInto writes gain-scaled buffer content for [start, start+len(dstL))
// into the scratch slices, zero-padding past the buffer end, then runs the
// channel's effect chain in place.
func (c *Channel) renderInto(dstL, dstR []float64, start int64, gain float64) {
	n := int64(len(c.left))

	for i := range dstL {
		pos := start + int64(i)
		if pos < n {
			dstL[i] = c.left[pos] * gain
			dstR[i] = c.right[pos] * gain
		} else {
			dstL[i] = 0
			dstR[i] = 0
		}
	}

	for _, u := range c.units {
		u.ProcessBlock(dstL, dstR)
	}
}
