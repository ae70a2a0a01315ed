package engine

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sastraxi/stemset-engine/dsp/core"
	"github.com/sastraxi/stemset-engine/dsp/dynamics"
	"github.com/sastraxi/stemset-engine/meter"
)

const (
	defaultObserverInterval = 50 * time.Millisecond
	paramQueueSize          = 256
)

// Config describes one playback session.
type Config struct {
	// SampleRate is the shared sample rate of all stem buffers. Required.
	SampleRate float64
	// BlockSize is the render block size in frames. Defaults to the
	// processor default when zero.
	BlockSize int

	// Stems are the decoded buffers with metadata. Stems with empty or
	// invalid buffers are silently excluded from the session.
	Stems []Stem
	// ChannelUnits maps stem IDs to their ordered effect chains.
	ChannelUnits map[string][]Unit
	// MasterUnits is the ordered master-bus chain (e.g. a master limiter).
	MasterUnits []Unit

	// Duration overrides the session duration in seconds for clip
	// playback. Zero derives the duration from the longest stem.
	Duration float64
	// StartOffset shifts all buffer reads by a fixed amount, so a session
	// can play a sub-range of a longer shared recording.
	StartOffset float64
	// InitialPosition is the starting transport position in seconds,
	// clamped to [0, duration].
	InitialPosition float64

	// Output, when set, is resumed by Play before starting.
	Output OutputDevice
	// Callbacks are the host notification hooks.
	Callbacks Callbacks
	// ObserverInterval throttles host notifications. Defaults to 50 ms.
	ObserverInterval time.Duration
}

// renderState is the immutable control-to-render handoff: the render path
// loads one pointer per block and never touches control-side state.
type renderState struct {
	generation uint64
	playing    bool
	gains      []float64
}

type paramUpdate struct {
	unitID string
	name   string
	value  float64
}

// Engine is a multi-stem playback session.
type Engine struct {
	sampleRate        float64
	blockSize         int
	duration          float64
	durationFrames    int64
	startOffsetFrames int64

	graph *Graph
	units map[string]Unit

	masterLimiterID string
	masterLimiter   *dynamics.Limiter

	levels     *meter.LevelMeter
	meterChans [2][]float64

	mu          sync.Mutex
	state       atomic.Int32
	generation  atomic.Uint64
	snapshot    atomic.Pointer[renderState]
	posFrames   atomic.Int64
	posBits     atomic.Uint64
	grBits      atomic.Uint64
	levelBits   [4]atomic.Uint64
	completions chan uint64
	params      chan paramUpdate

	// render-side only
	completedGen uint64

	output OutputDevice
	cb     Callbacks

	observerStop chan struct{}
	observerDone chan struct{}
	closeOnce    sync.Once
}

// New builds a session from decoded stems and starts its observer. The
// caller must Close the engine when done with it.
func New(cfg Config) (*Engine, error) {
	if cfg.SampleRate <= 0 || !core.IsFinite(cfg.SampleRate) {
		return nil, fmt.Errorf("engine sample rate must be positive and finite: %f", cfg.SampleRate)
	}

	blockSize := cfg.BlockSize
	if blockSize <= 0 {
		blockSize = core.DefaultProcessorConfig().BlockSize
	}

	channels := make([]*Channel, 0, len(cfg.Stems))
	maxFrames := 0

	for _, stem := range cfg.Stems {
		if stem.frames() == 0 || len(stem.Buffer) > 2 {
			continue
		}

		ch, err := newChannel(stem, cfg.ChannelUnits[stem.Metadata.ID])
		if err != nil {
			return nil, err
		}

		channels = append(channels, ch)

		if ch.frames() > maxFrames {
			maxFrames = ch.frames()
		}
	}

	duration := cfg.Duration
	if duration <= 0 {
		duration = float64(maxFrames) / cfg.SampleRate
	}

	graph, err := newGraph(blockSize, channels, cfg.MasterUnits)
	if err != nil {
		return nil, err
	}

	units := make(map[string]Unit)
	register := func(u Unit) error {
		if _, exists := units[u.ID()]; exists {
			return fmt.Errorf("engine: duplicate unit id %q", u.ID())
		}

		units[u.ID()] = u

		return nil
	}

	for _, ch := range channels {
		for _, u := range ch.units {
			if err := register(u); err != nil {
				return nil, err
			}
		}
	}

	for _, u := range cfg.MasterUnits {
		if err := register(u); err != nil {
			return nil, err
		}
	}

	e := &Engine{
		sampleRate:        cfg.SampleRate,
		blockSize:         blockSize,
		duration:          duration,
		durationFrames:    int64(math.Ceil(duration * cfg.SampleRate)),
		startOffsetFrames: int64(math.Round(math.Max(0, cfg.StartOffset) * cfg.SampleRate)),
		graph:             graph,
		units:             units,
		levels:            meter.NewLevelMeter(meter.WithSampleRate(cfg.SampleRate), meter.WithChannels(2)),
		completions:       make(chan uint64, 4),
		params:            make(chan paramUpdate, paramQueueSize),
		output:            cfg.Output,
		cb:                cfg.Callbacks,
		observerStop:      make(chan struct{}),
		observerDone:      make(chan struct{}),
	}

	// The master limiter's gain reduction feeds OnGainReduction.
	for _, u := range cfg.MasterUnits {
		if lu, ok := u.(*LimiterUnit); ok {
			e.masterLimiterID = lu.ID()
			e.masterLimiter = lu.Limiter()

			break
		}
	}

	e.setPositionLocked(cfg.InitialPosition)
	e.publishLocked(0, false)

	interval := cfg.ObserverInterval
	if interval <= 0 {
		interval = defaultObserverInterval
	}

	go e.observe(interval)

	return e, nil
}

// Close stops the observer goroutine. The engine must not be used after.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.observerStop)
		<-e.observerDone
	})
}

// SampleRate returns the session sample rate.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// BlockSize returns the render block size in frames.
func (e *Engine) BlockSize() int { return e.blockSize }

// Duration returns the session duration in seconds.
func (e *Engine) Duration() float64 { return e.duration }

// State returns the current transport state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Position returns the current playback position in seconds.
func (e *Engine) Position() float64 {
	return math.Float64frombits(e.posBits.Load())
}

// Generation returns the live generation counter.
func (e *Engine) Generation() uint64 { return e.generation.Load() }

// Play starts or resumes playback. Already playing is a no-op. If the
// output device fails to resume, Play returns the error and the transport
// state is unchanged so the caller may retry.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() == Playing {
		return nil
	}

	if e.output != nil {
		if err := e.output.Resume(); err != nil {
			return fmt.Errorf("engine: resume output: %w", err)
		}
	}

	gen := e.generation.Add(1)
	e.state.Store(int32(Playing))
	e.publishLocked(gen, true)

	return nil
}

// Pause suspends playback, retaining position. Only valid from Playing;
// anything else is a no-op.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() != Playing {
		return
	}

	gen := e.generation.Add(1)
	e.state.Store(int32(Paused))
	e.publishLocked(gen, false)
}

// Stop halts playback from any state and parks the position at seekTime,
// clamped to [0, duration].
func (e *Engine) Stop(seekTime float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	gen := e.generation.Add(1)
	e.state.Store(int32(Stopped))
	e.setPositionLocked(seekTime)
	e.publishLocked(gen, false)
}

// Seek moves the position to t, clamped to [0, duration]. While playing,
// the sources restart at the new position under a new generation, so
// completions from the superseded run are discarded.
func (e *Engine) Seek(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setPositionLocked(t)

	if e.State() == Playing {
		gen := e.generation.Add(1)
		e.publishLocked(gen, true)
	}
}

// SetChannelState updates one stem's gain/mute/solo state and re-resolves
// audibility across the session. Unknown stem IDs error.
func (e *Engine) SetChannelState(stemID string, state ChannelState) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ch := range e.graph.Channels() {
		if ch.ID() != stemID {
			continue
		}

		ch.setState(state)
		e.publishLocked(e.generation.Load(), e.State() == Playing)

		return nil
	}

	return fmt.Errorf("engine: unknown stem %q", stemID)
}

// SetEffectParameter queues a parameter change for a unit. The change is
// applied by the render path at the start of its next block. Unknown unit
// IDs error; out-of-range values are clamped by the unit, and updates are
// dropped when the queue is full rather than blocking.
func (e *Engine) SetEffectParameter(unitID, name string, value float64) error {
	if _, ok := e.units[unitID]; !ok {
		return fmt.Errorf("engine: unknown unit %q", unitID)
	}

	select {
	case e.params <- paramUpdate{unitID: unitID, name: name, value: value}:
	default:
	}

	return nil
}

// Render fills one stereo block. This is the audio-device sink: it is wait
// free with respect to the control side and performs no allocation. Both
// slices must have the same length, at most the configured block size.
func (e *Engine) Render(outL, outR []float64) {
	e.drainParams()

	s := e.snapshot.Load()
	if s == nil || !s.playing {
		core.Zero(outL)
		core.Zero(outR)

		return
	}

	start := e.posFrames.Load()
	e.graph.RenderBlock(s.gains, start+e.startOffsetFrames, outL, outR)

	// Advance the cursor only if no seek moved it while the block was
	// rendering; a failed swap means the control side repositioned and the
	// next block picks up from there.
	next := start + int64(len(outL))
	if e.posFrames.CompareAndSwap(start, next) {
		e.posBits.Store(math.Float64bits(float64(next) / e.sampleRate))

		if next >= e.durationFrames && e.completedGen != s.generation {
			e.completedGen = s.generation

			select {
			case e.completions <- s.generation:
			default:
			}
		}
	}

	e.meterBlock(outL, outR)
}

func (e *Engine) drainParams() {
	for {
		select {
		case p := <-e.params:
			if u, ok := e.units[p.unitID]; ok {
				// Unknown names surface as errors to direct callers of
				// SetParam; a queued typo is dropped here.
				_ = u.SetParam(p.name, p.value)
			}
		default:
			return
		}
	}
}

func (e *Engine) meterBlock(outL, outR []float64) {
	e.meterChans[0] = outL
	e.meterChans[1] = outR
	e.levels.ProcessBlock(e.meterChans[:])

	e.levelBits[0].Store(math.Float64bits(e.levels.Peak(0)))
	e.levelBits[1].Store(math.Float64bits(e.levels.Peak(1)))
	e.levelBits[2].Store(math.Float64bits(e.levels.RMS(0)))
	e.levelBits[3].Store(math.Float64bits(e.levels.RMS(1)))

	if e.masterLimiter != nil {
		e.grBits.Store(math.Float64bits(e.masterLimiter.GainReductionDB()))
	}
}

// setPositionLocked clamps and stores a new position. posBits keeps the
// exact requested seconds so a seek round-trips precisely; posFrames is the
// sample-accurate render cursor.
func (e *Engine) setPositionLocked(t float64) {
	if !core.IsFinite(t) {
		t = 0
	}

	t = core.Clamp(t, 0, e.duration)

	e.posFrames.Store(int64(math.Round(t * e.sampleRate)))
	e.posBits.Store(math.Float64bits(t))
}

// publishLocked resolves channel audibility and swaps in a new render
// snapshot. Mute/solo logic runs here, once per control change: when any
// stem is soloed only soloed stems are audible, otherwise muted stems are
// silent.
func (e *Engine) publishLocked(gen uint64, playing bool) {
	channels := e.graph.Channels()

	anySolo := false
	for _, ch := range channels {
		if ch.state.Soloed {
			anySolo = true

			break
		}
	}

	gains := make([]float64, len(channels))
	for i, ch := range channels {
		audible := true
		if anySolo {
			audible = ch.state.Soloed
		} else if ch.state.Muted {
			audible = false
		}

		if audible {
			gains[i] = ch.baseGain * ch.state.Gain
		}
	}

	e.snapshot.Store(&renderState{
		generation: gen,
		playing:    playing,
		gains:      gains,
	})
}

func (e *Engine) observe(interval time.Duration) {
	defer close(e.observerDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.observerStop:
			return
		case gen := <-e.completions:
			e.finishPlayback(gen)
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick copies render-side readings into host callbacks at the observer
// rate, and guards against a missed completion by treating elapsed >=
// duration as natural end.
func (e *Engine) tick() {
	if e.State() == Playing {
		pos := e.Position()
		if pos >= e.duration {
			e.finishPlayback(e.generation.Load())
		} else if e.cb.OnPositionUpdate != nil {
			e.cb.OnPositionUpdate(pos)
		}
	}

	if e.cb.OnGainReduction != nil && e.masterLimiter != nil {
		e.cb.OnGainReduction(e.masterLimiterID, math.Float64frombits(e.grBits.Load()))
	}

	if e.cb.OnLevels != nil {
		e.cb.OnLevels(Levels{
			PeakL: math.Float64frombits(e.levelBits[0].Load()),
			PeakR: math.Float64frombits(e.levelBits[1].Load()),
			RMSL:  math.Float64frombits(e.levelBits[2].Load()),
			RMSR:  math.Float64frombits(e.levelBits[3].Load()),
		})
	}
}

// finishPlayback handles natural end for one generation. Stale generations
// are discarded unconditionally, which is what makes rapid seek/play/pause
// sequences race-free.
func (e *Engine) finishPlayback(gen uint64) {
	e.mu.Lock()

	if gen != e.generation.Load() || e.State() != Playing {
		e.mu.Unlock()

		return
	}

	newGen := e.generation.Add(1)
	e.state.Store(int32(Stopped))
	e.setPositionLocked(0)
	e.publishLocked(newGen, false)

	ended := e.cb.OnPlaybackEnd
	e.mu.Unlock()

	if ended != nil {
		ended()
	}
}
