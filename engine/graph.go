package engine

import (
	"fmt"

	"github.com/cwbudde/algo-vecmath"

	"github.com/sastraxi/stemset-engine/dsp/core"
)

// Graph sums per-stem channel outputs into a master bus and runs the master
// effect chain. All buffers are preallocated at construction; RenderBlock
// performs no allocation.
type Graph struct {
	blockSize int
	channels  []*Channel
	master    []Unit

	scratchL []float64
	scratchR []float64
}

// newGraph builds the audio graph for a set of channels and a master chain.
func newGraph(blockSize int, channels []*Channel, master []Unit) (*Graph, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("graph block size must be positive: %d", blockSize)
	}

	return &Graph{
		blockSize: blockSize,
		channels:  channels,
		master:    master,
		scratchL:  make([]float64, blockSize),
		scratchR:  make([]float64, blockSize),
	}, nil
}

// Channels returns the graph's channels in construction order.
func (g *Graph) Channels() []*Channel { return g.channels }

// RenderBlock renders one block starting at frame start. gains holds one
// resolved multiplier per channel (0 silences). Channels past their buffer
// end contribute silence; end-of-playback itself is the transport's
// session-duration check.
func (g *Graph) RenderBlock(gains []float64, start int64, outL, outR []float64) {
	core.Zero(outL)
	core.Zero(outR)

	for i, ch := range g.channels {
		gain := 0.0
		if i < len(gains) {
			gain = gains[i]
		}

		ch.renderInto(g.scratchL, g.scratchR, start, gain)

		vecmath.AddBlockInPlace(outL, g.scratchL)
		vecmath.AddBlockInPlace(outR, g.scratchR)
	}

	for _, u := range g.master {
		u.ProcessBlock(outL, outR)
	}

	// Final output-stage guard against band-sum and reverb overshoot.
	for i := range outL {
		outL[i] = core.ClampUnit(outL[i])
		outR[i] = core.ClampUnit(outR[i])
	}
}

// Reset clears every unit's internal state across all chains.
func (g *Graph) Reset() {
	for _, ch := range g.channels {
		for _, u := range ch.units {
			u.Reset()
		}
	}

	for _, u := range g.master {
		u.Reset()
	}
}
