package engine

// State is the transport state of a playback session.
type State int32

const (
	// Stopped means no sources are active and position is parked.
	Stopped State = iota
	// Playing means all enabled channels are rendering in lockstep.
	Playing
	// Paused means sources are stopped but position is retained.
	Paused
)

// String names the state for diagnostics.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// OutputDevice abstracts the platform audio output. Some platforms suspend
// output until a user gesture; Play resumes the device before starting and
// stays a no-op when resume fails.
type OutputDevice interface {
	Resume() error
}

// Callbacks are the host-facing notification hooks. All callbacks are
// invoked from the engine's observer goroutine, never from the render path;
// nil callbacks are skipped.
type Callbacks struct {
	// OnPositionUpdate delivers the playback position in seconds at the
	// observer rate (about 20 Hz) while playing.
	OnPositionUpdate func(seconds float64)
	// OnPlaybackEnd fires exactly once when playback reaches its natural
	// end; the transport is already Stopped at position 0 when it fires.
	OnPlaybackEnd func()
	// OnGainReduction delivers the master limiter's smoothed gain
	// reduction in dB.
	OnGainReduction func(unitID string, dB float64)
	// OnLevels delivers smoothed per-channel peak/RMS of the master bus.
	OnLevels func(levels Levels)
}

// Levels mirrors the meter snapshot for host consumption.
type Levels struct {
	PeakL, PeakR float64
	RMSL, RMSR   float64
}
