package meter

import (
	"fmt"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

// SpectrumTap computes a magnitude spectrum from mono audio for analyzer
// displays. It keeps a sliding window of the most recent fftSize samples;
// Analyze transforms the window on demand, outside the audio path.
type SpectrumTap struct {
	plan    *algofft.Plan[complex128]
	fftSize int

	window   []float64
	writePos int
	filled   int

	input     []complex128
	output    []complex128
	realPart  []float64
	imagPart  []float64
	magnitude []float64
}

// NewSpectrumTap creates a tap with the given FFT size, which must be a
// power of two.
func NewSpectrumTap(fftSize int) (*SpectrumTap, error) {
	if fftSize < 2 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("spectrum tap FFT size must be a power of two >= 2: %d", fftSize)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("spectrum tap plan: %w", err)
	}

	bins := fftSize/2 + 1

	return &SpectrumTap{
		plan:      plan,
		fftSize:   fftSize,
		window:    make([]float64, fftSize),
		input:     make([]complex128, fftSize),
		output:    make([]complex128, fftSize),
		realPart:  make([]float64, bins),
		imagPart:  make([]float64, bins),
		magnitude: make([]float64, bins),
	}, nil
}

// FFTSize returns the transform length.
func (t *SpectrumTap) FFTSize() int { return t.fftSize }

// Push appends samples to the sliding window. Older samples fall out once
// the window is full.
func (t *SpectrumTap) Push(samples []float64) {
	for _, s := range samples {
		t.window[t.writePos] = s
		t.writePos = (t.writePos + 1) % t.fftSize

		if t.filled < t.fftSize {
			t.filled++
		}
	}
}

// Ready reports whether a full window has been accumulated.
func (t *SpectrumTap) Ready() bool {
	return t.filled == t.fftSize
}

// Analyze transforms the current window and returns the magnitude of the
// non-negative-frequency bins. The returned slice is reused across calls.
func (t *SpectrumTap) Analyze() ([]float64, error) {
	// Unroll the circular window into transform order, oldest first.
	start := t.writePos
	if t.filled < t.fftSize {
		start = 0
	}

	for i := 0; i < t.fftSize; i++ {
		t.input[i] = complex(t.window[(start+i)%t.fftSize], 0)
	}

	if err := t.plan.Forward(t.output, t.input); err != nil {
		return nil, fmt.Errorf("spectrum tap forward transform: %w", err)
	}

	bins := t.fftSize/2 + 1
	for i := 0; i < bins; i++ {
		t.realPart[i] = real(t.output[i])
		t.imagPart[i] = imag(t.output[i])
	}

	vecmath.Magnitude(t.magnitude, t.realPart, t.imagPart)

	return t.magnitude, nil
}

// Reset clears the sliding window.
func (t *SpectrumTap) Reset() {
	for i := range t.window {
		t.window[i] = 0
	}

	t.writePos = 0
	t.filled = 0
}
