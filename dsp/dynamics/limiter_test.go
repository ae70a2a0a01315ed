package dynamics

import (
	"math"
	"testing"
)

func newTestLimiter(t *testing.T, channels int) *Limiter {
	t.Helper()

	l, err := NewLimiter(48000, channels)
	if err != nil {
		t.Fatalf("NewLimiter: %v", err)
	}

	return l
}

func TestNewLimiterValidation(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
		channels   int
		wantErr    bool
	}{
		{"mono", 48000, 1, false},
		{"stereo", 44100, 2, false},
		{"max channels", 48000, MaxLimiterChannels, false},
		{"zero channels", 48000, 0, true},
		{"too many channels", 48000, MaxLimiterChannels + 1, true},
		{"zero sample rate", 0, 2, true},
		{"negative sample rate", -1, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLimiter(tt.sampleRate, tt.channels)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLimiter(%v, %d) error = %v, wantErr %v", tt.sampleRate, tt.channels, err, tt.wantErr)
			}
		})
	}
}

func TestLimiterSettersClamp(t *testing.T) {
	l := newTestLimiter(t, 2)

	l.SetThreshold(-100)
	if l.Threshold() != minLimiterThresholdDB {
		t.Errorf("threshold should clamp to %v, got %v", minLimiterThresholdDB, l.Threshold())
	}

	l.SetThreshold(6)
	if l.Threshold() != maxLimiterThresholdDB {
		t.Errorf("threshold should clamp to %v, got %v", maxLimiterThresholdDB, l.Threshold())
	}

	l.SetAttack(1.0)
	if l.Attack() != maxLimiterAttackSec {
		t.Errorf("attack should clamp to %v, got %v", maxLimiterAttackSec, l.Attack())
	}

	l.SetHold(5)
	if l.Hold() != maxLimiterHoldSec {
		t.Errorf("hold should clamp to %v, got %v", maxLimiterHoldSec, l.Hold())
	}

	l.SetRelease(0)
	if l.Release() != minLimiterReleaseSec {
		t.Errorf("release should clamp to %v, got %v", minLimiterReleaseSec, l.Release())
	}

	l.SetMeterSmoothing(2)
	if l.smoothing != maxMeterSmoothing {
		t.Errorf("smoothing should clamp to %v, got %v", maxMeterSmoothing, l.smoothing)
	}
}

func TestLimiterLookaheadMatchesAttack(t *testing.T) {
	l := newTestLimiter(t, 1)

	l.SetAttack(0.005)

	want := int(math.Round(0.005 * 48000))
	if l.LookaheadSamples() != want {
		t.Errorf("lookahead = %d samples, want %d", l.LookaheadSamples(), want)
	}
}

func TestLimiterPassesQuietSignal(t *testing.T) {
	l := newTestLimiter(t, 1)
	l.SetThreshold(0)
	l.SetAttack(0)

	// Unity gain path, zero lookahead: quiet input must pass unchanged.
	for i := 0; i < 1000; i++ {
		in := 0.25 * math.Sin(2*math.Pi*220*float64(i)/48000)
		frame := []float64{in}
		l.ProcessFrame(frame)

		if math.Abs(frame[0]-in) > 1e-12 {
			t.Fatalf("sample %d: quiet signal altered: got %v want %v", i, frame[0], in)
		}
	}
}

func TestLimiterNoOvershootOnImpulse(t *testing.T) {
	l := newTestLimiter(t, 1)
	l.SetThreshold(-6)
	l.SetAttack(0.003)
	l.SetHold(0.005)
	l.SetRelease(0.050)

	thresholdLin := math.Pow(10, -6.0/20.0)

	// Silence, then a full-scale burst. With lookahead equal to the attack
	// time, the delayed program path must never exceed the ceiling by more
	// than a tiny margin.
	n := 48000 / 4
	burstStart := 4800
	burstEnd := burstStart + 480

	maxOut := 0.0
	for i := 0; i < n; i++ {
		in := 0.0
		if i >= burstStart && i < burstEnd {
			in = 1.0
		}

		frame := []float64{in}
		l.ProcessFrame(frame)

		if a := math.Abs(frame[0]); a > maxOut {
			maxOut = a
		}
	}

	if maxOut > thresholdLin*(1+1e-9) {
		t.Errorf("output peak %v exceeds -6 dB ceiling %v", maxOut, thresholdLin)
	}
}

func TestLimiterNoOvershootWithoutHold(t *testing.T) {
	// Hold 0 and a very short release give the detector every chance to
	// decay under a delayed peak; the windowed detector must still keep
	// the output at or below the ceiling.
	l := newTestLimiter(t, 1)
	l.SetThreshold(-12)
	l.SetAttack(0.005)
	l.SetHold(0)
	l.SetRelease(0.001)

	thresholdLin := math.Pow(10, -12.0/20.0)

	maxOut := 0.0
	for i := 0; i < 48000/2; i++ {
		in := 0.0
		// Isolated single-sample peaks with quiet stretches between them.
		if i%1000 == 0 {
			in = 1.0
		}

		frame := []float64{in}
		l.ProcessFrame(frame)

		if a := math.Abs(frame[0]); a > maxOut {
			maxOut = a
		}
	}

	if maxOut > thresholdLin*(1+1e-9) {
		t.Errorf("output peak %v exceeds -12 dB ceiling %v", maxOut, thresholdLin)
	}
}

func TestLimiterSteadyStateGain(t *testing.T) {
	l := newTestLimiter(t, 1)
	l.SetThreshold(-12)
	l.SetAttack(0.001)
	l.SetHold(0)
	l.SetRelease(0.050)

	thresholdLin := math.Pow(10, -12.0/20.0)

	// Sustained full-scale DC: output converges to the threshold exactly.
	var out float64
	for i := 0; i < 48000; i++ {
		frame := []float64{1.0}
		l.ProcessFrame(frame)
		out = frame[0]
	}

	if math.Abs(out-thresholdLin) > 1e-4 {
		t.Errorf("steady-state output = %v, want %v", out, thresholdLin)
	}
}

func TestLimiterJointStereoDetection(t *testing.T) {
	l := newTestLimiter(t, 2)
	l.SetThreshold(-6)
	l.SetAttack(0)
	l.SetHold(0)
	l.SetRelease(0.100)

	// Loud left, quiet right: both channels must receive the same gain so
	// the L/R ratio is preserved.
	var left, right float64
	for i := 0; i < 48000; i++ {
		frame := []float64{1.0, 0.1}
		l.ProcessBlock([][]float64{frame[:1], frame[1:]})
		left, right = frame[0], frame[1]
	}

	if left <= 0 || right <= 0 {
		t.Fatalf("unexpected non-positive outputs: left=%v right=%v", left, right)
	}

	ratio := left / right
	if math.Abs(ratio-10.0) > 0.01 {
		t.Errorf("stereo image not preserved: L/R ratio = %v, want 10", ratio)
	}

	if left > math.Pow(10, -6.0/20.0)*1.01 {
		t.Errorf("left channel %v exceeds ceiling", left)
	}
}

func TestLimiterHoldDelaysRelease(t *testing.T) {
	run := func(holdSec float64) float64 {
		l := newTestLimiter(t, 1)
		l.SetThreshold(-12)
		l.SetAttack(0)
		l.SetHold(holdSec)
		l.SetRelease(0.005)

		// Drive into limiting, then go quiet for 2 ms and inspect the
		// envelope: with a long hold it must not have decayed.
		for i := 0; i < 4800; i++ {
			frame := []float64{1.0}
			l.ProcessFrame(frame)
		}

		for i := 0; i < 96; i++ {
			frame := []float64{0.0}
			l.ProcessFrame(frame)
		}

		return l.Envelope()
	}

	held := run(0.050)
	unheld := run(0)

	if held <= unheld {
		t.Errorf("hold should keep the envelope up: held=%v unheld=%v", held, unheld)
	}

	if math.Abs(held-1.0) > 1e-9 {
		t.Errorf("envelope should stay at 1.0 during hold, got %v", held)
	}
}

func TestLimiterAutoMakeup(t *testing.T) {
	l := newTestLimiter(t, 1)

	l.SetThreshold(-6)
	l.SetAutoMakeup(true)

	if math.Abs(l.MakeupGain()-6.0) > 1e-12 {
		t.Errorf("auto makeup at -6 dB threshold = %v, want 6", l.MakeupGain())
	}

	// Auto makeup tracks threshold changes.
	l.SetThreshold(-12)
	if math.Abs(l.MakeupGain()-12.0) > 1e-12 {
		t.Errorf("auto makeup should follow threshold, got %v", l.MakeupGain())
	}

	// Manual makeup disables auto.
	l.SetMakeupGain(3)
	l.SetThreshold(-24)

	if l.AutoMakeup() {
		t.Error("SetMakeupGain should disable auto makeup")
	}

	if l.MakeupGain() != 3 {
		t.Errorf("manual makeup overridden: got %v, want 3", l.MakeupGain())
	}
}

func TestLimiterPreGainMuteFloor(t *testing.T) {
	l := newTestLimiter(t, 1)
	l.SetPreGain(-96)
	l.SetAttack(0)

	for i := 0; i < 100; i++ {
		frame := []float64{1.0}
		l.ProcessFrame(frame)

		if frame[0] != 0 {
			t.Fatalf("pre-gain at -96 dB must hard-mute, got %v", frame[0])
		}
	}
}

func TestLimiterGainReductionMeter(t *testing.T) {
	l := newTestLimiter(t, 1)
	l.SetThreshold(-12)
	l.SetAttack(0.001)
	l.SetRelease(0.050)

	if l.GainReductionDB() != 0 {
		t.Errorf("initial gain reduction should be 0, got %v", l.GainReductionDB())
	}

	for i := 0; i < 48000; i++ {
		frame := []float64{1.0}
		l.ProcessFrame(frame)
	}

	// Full scale into a -12 dB ceiling: about 12 dB of reduction.
	gr := l.GainReductionDB()
	if gr > -11 || gr < -13 {
		t.Errorf("gain reduction = %v dB, want about -12", gr)
	}

	m := l.Metrics()
	if m.GainReductionDB != gr {
		t.Errorf("metrics gain reduction %v != %v", m.GainReductionDB, gr)
	}

	if m.InputPeak < 0.99 {
		t.Errorf("input peak = %v, want about 1", m.InputPeak)
	}

	if m.OutputPeak > math.Pow(10, -12.0/20.0)*1.05 {
		t.Errorf("output peak %v exceeds ceiling", m.OutputPeak)
	}
}

func TestLimiterProcessBlockValidation(t *testing.T) {
	l := newTestLimiter(t, 2)

	if err := l.ProcessBlock(nil); err != nil {
		t.Errorf("empty block should be a no-op, got %v", err)
	}

	if err := l.ProcessBlock([][]float64{make([]float64, 8)}); err == nil {
		t.Error("channel count mismatch should error")
	}

	if err := l.ProcessBlock([][]float64{make([]float64, 8), make([]float64, 4)}); err == nil {
		t.Error("length mismatch should error")
	}
}

func TestLimiterProcessBlockDoesNotAllocate(t *testing.T) {
	l := newTestLimiter(t, 2)
	l.SetThreshold(-6)

	block := [][]float64{make([]float64, 256), make([]float64, 256)}
	for ch := range block {
		for i := range block[ch] {
			block[ch][i] = 0.9 * math.Sin(2*math.Pi*330*float64(i)/48000)
		}
	}

	allocs := testing.AllocsPerRun(50, func() {
		if err := l.ProcessBlock(block); err != nil {
			t.Fatalf("ProcessBlock: %v", err)
		}
	})

	if allocs != 0 {
		t.Errorf("ProcessBlock allocated %v times per run, want 0", allocs)
	}
}

func TestLimiterResetDeterminism(t *testing.T) {
	l := newTestLimiter(t, 2)
	l.SetThreshold(-9)
	l.SetAttack(0.002)
	l.SetHold(0.003)
	l.SetRelease(0.040)

	input := make([][]float64, 2)
	for ch := range input {
		input[ch] = make([]float64, 512)
		for i := range input[ch] {
			input[ch][i] = 0.95 * math.Sin(2*math.Pi*(440+float64(ch)*3)*float64(i)/48000)
		}
	}

	run := func() [][]float64 {
		out := make([][]float64, 2)
		for ch := range out {
			out[ch] = append([]float64(nil), input[ch]...)
		}

		if err := l.ProcessBlock(out); err != nil {
			t.Fatalf("ProcessBlock: %v", err)
		}

		return out
	}

	first := run()
	l.Reset()
	second := run()

	for ch := range first {
		for i := range first[ch] {
			if first[ch][i] != second[ch][i] {
				t.Fatalf("ch %d sample %d differs after reset: %v != %v", ch, i, first[ch][i], second[ch][i])
			}
		}
	}
}
