package meter

import (
	"math"
	"testing"
)

func TestNewSpectrumTapValidation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"power of two", 1024, false},
		{"small power of two", 2, false},
		{"not power of two", 1000, true},
		{"zero", 0, true},
		{"negative", -8, true},
		{"one", 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSpectrumTap(tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSpectrumTap(%d) error = %v, wantErr %v", tt.size, err, tt.wantErr)
			}
		})
	}
}

func TestSpectrumTapFindsSinePeak(t *testing.T) {
	const (
		fftSize    = 4096
		sampleRate = 48000.0
	)

	tap, err := NewSpectrumTap(fftSize)
	if err != nil {
		t.Fatalf("NewSpectrumTap: %v", err)
	}

	// A sine placed exactly on a bin center.
	bin := 100
	freq := float64(bin) * sampleRate / fftSize

	samples := make([]float64, fftSize)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}

	tap.Push(samples)

	if !tap.Ready() {
		t.Fatal("tap should be ready after a full window")
	}

	mag, err := tap.Analyze()
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	maxBin := 0
	for i := 1; i < len(mag); i++ {
		if mag[i] > mag[maxBin] {
			maxBin = i
		}
	}

	if maxBin != bin {
		t.Errorf("spectral peak at bin %d, want %d", maxBin, bin)
	}
}

func TestSpectrumTapSlidingWindow(t *testing.T) {
	tap, err := NewSpectrumTap(256)
	if err != nil {
		t.Fatalf("NewSpectrumTap: %v", err)
	}

	if tap.Ready() {
		t.Error("empty tap should not be ready")
	}

	tap.Push(make([]float64, 128))
	if tap.Ready() {
		t.Error("half-filled tap should not be ready")
	}

	tap.Push(make([]float64, 128))
	if !tap.Ready() {
		t.Error("full tap should be ready")
	}

	// Pushing more than a window keeps only the most recent samples: a
	// window of pure DC after noise must analyze as pure DC.
	noise := make([]float64, 256)
	for i := range noise {
		noise[i] = math.Sin(float64(i) * 12.9898)
	}

	tap.Push(noise)

	dc := make([]float64, 256)
	for i := range dc {
		dc[i] = 1.0
	}

	tap.Push(dc)

	mag, err := tap.Analyze()
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if math.Abs(mag[0]-256) > 1e-6 {
		t.Errorf("DC bin = %v, want 256", mag[0])
	}

	for i := 1; i < len(mag); i++ {
		if mag[i] > 1e-6 {
			t.Errorf("bin %d should be empty for DC input, got %v", i, mag[i])
		}
	}
}

func TestSpectrumTapReset(t *testing.T) {
	tap, err := NewSpectrumTap(64)
	if err != nil {
		t.Fatalf("NewSpectrumTap: %v", err)
	}

	tap.Push(make([]float64, 64))
	tap.Reset()

	if tap.Ready() {
		t.Error("reset tap should not be ready")
	}
}
