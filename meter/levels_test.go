package meter

import (
	"math"
	"testing"
)

func TestLevelMeterDefaults(t *testing.T) {
	m := NewLevelMeter()

	if m.Channels() != 2 {
		t.Errorf("default channels = %d, want 2", m.Channels())
	}

	snap := m.Snapshot()
	if len(snap.Peak) != 2 || len(snap.RMS) != 2 {
		t.Fatalf("snapshot sizes = %d/%d, want 2/2", len(snap.Peak), len(snap.RMS))
	}

	for ch := range snap.Peak {
		if snap.Peak[ch] != 0 || snap.RMS[ch] != 0 {
			t.Errorf("ch %d: initial levels should be zero", ch)
		}
	}
}

func TestLevelMeterConvergesToSteadyLevels(t *testing.T) {
	m := NewLevelMeter(WithChannels(1), WithSmoothing(0.5))

	block := make([]float64, 480)
	for i := range block {
		block[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/48000)
	}

	for i := 0; i < 100; i++ {
		m.ProcessBlock([][]float64{block})
	}

	snap := m.Snapshot()

	// A 0.5 amplitude sine: peak 0.5, RMS 0.5/sqrt(2).
	if math.Abs(snap.Peak[0]-0.5) > 0.01 {
		t.Errorf("peak = %v, want about 0.5", snap.Peak[0])
	}

	wantRMS := 0.5 / math.Sqrt2
	if math.Abs(snap.RMS[0]-wantRMS) > 0.01 {
		t.Errorf("RMS = %v, want about %v", snap.RMS[0], wantRMS)
	}
}

func TestLevelMeterDecaysOnSilence(t *testing.T) {
	m := NewLevelMeter(WithChannels(1), WithSmoothing(0.5))

	loud := make([]float64, 256)
	for i := range loud {
		loud[i] = 0.9
	}

	m.ProcessBlock([][]float64{loud})

	peakAfterSignal := m.Snapshot().Peak[0]
	if peakAfterSignal == 0 {
		t.Fatal("peak should register signal")
	}

	silence := make([]float64, 256)
	for i := 0; i < 50; i++ {
		m.ProcessBlock([][]float64{silence})
	}

	snap := m.Snapshot()
	if snap.Peak[0] >= peakAfterSignal {
		t.Errorf("peak should decay on silence: %v >= %v", snap.Peak[0], peakAfterSignal)
	}

	if snap.Peak[0] > 1e-6 {
		t.Errorf("peak should approach zero, got %v", snap.Peak[0])
	}
}

func TestLevelMeterSmoothingBoundsBallistics(t *testing.T) {
	loud := make([]float64, 256)
	for i := range loud {
		loud[i] = 1.0
	}

	fast := NewLevelMeter(WithChannels(1), WithSmoothing(0.1))
	slow := NewLevelMeter(WithChannels(1), WithSmoothing(0.9))

	fast.ProcessBlock([][]float64{loud})
	slow.ProcessBlock([][]float64{loud})

	if fast.Snapshot().Peak[0] <= slow.Snapshot().Peak[0] {
		t.Errorf("lower smoothing should respond faster: fast=%v slow=%v",
			fast.Snapshot().Peak[0], slow.Snapshot().Peak[0])
	}
}

func TestLevelMeterDBReadings(t *testing.T) {
	m := NewLevelMeter(WithChannels(1), WithSmoothing(0.1))

	if !math.IsInf(m.PeakDB(0), -1) {
		t.Errorf("silent peak should read -Inf dB, got %v", m.PeakDB(0))
	}

	full := make([]float64, 256)
	for i := range full {
		full[i] = 1.0
	}

	for i := 0; i < 200; i++ {
		m.ProcessBlock([][]float64{full})
	}

	if db := m.PeakDB(0); math.Abs(db) > 0.1 {
		t.Errorf("full-scale peak should read about 0 dB, got %v", db)
	}

	// Out-of-range channels read as silence, not panic.
	if !math.IsInf(m.PeakDB(5), -1) || !math.IsInf(m.RMSDB(-1), -1) {
		t.Error("invalid channel indices should read as silence")
	}
}

func TestLevelMeterOptionsClamp(t *testing.T) {
	cfg := ApplyOptions(WithSmoothing(5), WithChannels(0), WithSampleRate(-1))

	if cfg.Smoothing != maxLevelSmoothing {
		t.Errorf("smoothing should clamp to %v, got %v", maxLevelSmoothing, cfg.Smoothing)
	}

	if cfg.Channels != 2 {
		t.Errorf("invalid channel count should keep default, got %d", cfg.Channels)
	}

	if cfg.SampleRate <= 0 {
		t.Errorf("invalid sample rate should keep default, got %v", cfg.SampleRate)
	}
}

func TestLevelMeterReset(t *testing.T) {
	m := NewLevelMeter(WithChannels(2))

	loud := make([]float64, 128)
	for i := range loud {
		loud[i] = 0.8
	}

	m.ProcessBlock([][]float64{loud, loud})
	m.Reset()

	snap := m.Snapshot()
	for ch := range snap.Peak {
		if snap.Peak[ch] != 0 || snap.RMS[ch] != 0 {
			t.Errorf("ch %d: reset should zero levels", ch)
		}
	}
}
