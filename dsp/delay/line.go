package delay

import "fmt"

// Line is a circular delay line with integer-sample taps.
//
// Write advances the head; Read taps a fixed number of samples behind it.
// Lookahead processors write the live sample and read delaySamples back,
// so the audible signal trails the detector by exactly that many samples.
type Line struct {
	buffer   []float64
	writePos int
}

// New returns a delay line of fixed size.
func New(size int) (*Line, error) {
	if size <= 0 {
		return nil, fmt.Errorf("delay size must be > 0: %d", size)
	}
	return &Line{buffer: make([]float64, size)}, nil
}

// Len returns internal buffer size.
func (d *Line) Len() int {
	return len(d.buffer)
}

// Write writes one sample and advances the head.
func (d *Line) Write(sample float64) {
	d.buffer[d.writePos] = sample
	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}
}

// Read reads an integer delay in samples behind the write head.
// A delay of 1 returns the most recently written sample.
func (d *Line) Read(delay int) float64 {
	size := len(d.buffer)
	if size == 0 {
		return 0
	}
	readPos := (d.writePos - delay + size*((delay/size)+1)) % size
	return d.buffer[readPos]
}

// Peek returns the sample the write head is about to overwrite, which is
// the oldest sample in the line (a full-length delay). Reverb delay taps
// use this read-before-write pattern.
func (d *Line) Peek() float64 {
	if len(d.buffer) == 0 {
		return 0
	}
	return d.buffer[d.writePos]
}

// Reset clears line state.
func (d *Line) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}
	d.writePos = 0
}
