// Package signal generates deterministic test and demo material: sines,
// noise, impulses, and decaying tones suitable as synthetic stems.
package signal

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sastraxi/stemset-engine/dsp/core"
)

// Generator creates deterministic signals from a shared configuration.
type Generator struct {
	cfg  core.ProcessorConfig
	seed int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets the deterministic random seed for noise generation.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// NewGenerator creates a configured signal generator.
func NewGenerator(coreOpts []core.ProcessorOption, opts ...Option) *Generator {
	g := &Generator{
		cfg:  core.ApplyProcessorOptions(coreOpts...),
		seed: 1,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Config returns the generator processor configuration.
func (g *Generator) Config() core.ProcessorConfig {
	return g.cfg
}

// Sine generates a sine wave.
func (g *Generator) Sine(freqHz, amplitude float64, samples int) ([]float64, error) {
	if err := g.validate(samples); err != nil {
		return nil, err
	}

	out := make([]float64, samples)
	step := 2 * math.Pi * freqHz / g.cfg.SampleRate

	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}

	return out, nil
}

// DecayingTone generates a sine that decays exponentially with the given
// time constant, a rough stand-in for plucked or struck material.
func (g *Generator) DecayingTone(freqHz, amplitude, decaySec float64, samples int) ([]float64, error) {
	if err := g.validate(samples); err != nil {
		return nil, err
	}

	if decaySec <= 0 {
		return nil, fmt.Errorf("tone decay must be > 0: %f", decaySec)
	}

	out := make([]float64, samples)
	step := 2 * math.Pi * freqHz / g.cfg.SampleRate
	decayPerSample := 1.0 / (decaySec * g.cfg.SampleRate)

	for i := range out {
		env := math.Exp(-float64(i) * decayPerSample)
		out[i] = amplitude * env * math.Sin(step*float64(i))
	}

	return out, nil
}

// WhiteNoise generates deterministic white noise in [-amplitude, amplitude].
func (g *Generator) WhiteNoise(amplitude float64, samples int) ([]float64, error) {
	if err := g.validate(samples); err != nil {
		return nil, err
	}

	if amplitude < 0 {
		return nil, fmt.Errorf("noise amplitude must be >= 0: %f", amplitude)
	}

	out := make([]float64, samples)
	rng := rand.New(rand.NewSource(g.seed))

	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}

	return out, nil
}

// Impulse generates a unit impulse at offset with silence elsewhere.
func (g *Generator) Impulse(offset, samples int) ([]float64, error) {
	if err := g.validate(samples); err != nil {
		return nil, err
	}

	if offset < 0 || offset >= samples {
		return nil, fmt.Errorf("impulse offset out of range [0, %d): %d", samples, offset)
	}

	out := make([]float64, samples)
	out[offset] = 1

	return out, nil
}

// Normalize scales data to the target peak amplitude and returns a new
// slice. Silent input stays silent.
func Normalize(data []float64, targetPeak float64) ([]float64, error) {
	if targetPeak < 0 {
		return nil, fmt.Errorf("normalize target peak must be >= 0: %f", targetPeak)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("normalize input must not be empty")
	}

	maxAbs := 0.0
	for _, v := range data {
		if av := math.Abs(v); av > maxAbs {
			maxAbs = av
		}
	}

	out := make([]float64, len(data))
	if maxAbs == 0 || targetPeak == 0 {
		return out, nil
	}

	scale := targetPeak / maxAbs
	for i, v := range data {
		out[i] = v * scale
	}

	return out, nil
}

func (g *Generator) validate(samples int) error {
	if samples <= 0 {
		return fmt.Errorf("sample count must be > 0: %d", samples)
	}

	if g.cfg.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be > 0: %f", g.cfg.SampleRate)
	}

	return nil
}
