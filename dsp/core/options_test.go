package core

import (
	"math"
	"testing"
)

func TestApplyProcessorOptionsDefaults(t *testing.T) {
	cfg := ApplyProcessorOptions()

	if cfg.SampleRate != 48000 {
		t.Errorf("default sample rate = %v, want 48000", cfg.SampleRate)
	}

	if cfg.BlockSize != 1024 {
		t.Errorf("default block size = %v, want 1024", cfg.BlockSize)
	}
}

func TestWithSampleRate(t *testing.T) {
	cfg := ApplyProcessorOptions(WithSampleRate(44100))
	if cfg.SampleRate != 44100 {
		t.Errorf("sample rate = %v, want 44100", cfg.SampleRate)
	}

	// Invalid rates leave the default in place.
	for _, rate := range []float64{0, -48000, math.NaN(), math.Inf(1)} {
		cfg := ApplyProcessorOptions(WithSampleRate(rate))
		if cfg.SampleRate != 48000 {
			t.Errorf("WithSampleRate(%v) accepted, got %v", rate, cfg.SampleRate)
		}
	}
}

func TestApplyProcessorOptionsSkipsNil(t *testing.T) {
	cfg := ApplyProcessorOptions(nil, WithSampleRate(96000), nil)
	if cfg.SampleRate != 96000 {
		t.Errorf("sample rate = %v, want 96000", cfg.SampleRate)
	}
}
