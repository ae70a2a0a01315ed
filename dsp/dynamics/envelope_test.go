package dynamics

import (
	"math"
	"testing"
)

func TestNewEnvelopeFollowerValidation(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
		wantErr    bool
	}{
		{"valid 44100", 44100, false},
		{"valid 48000", 48000, false},
		{"zero rate", 0, true},
		{"negative rate", -48000, true},
		{"NaN rate", math.NaN(), true},
		{"Inf rate", math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEnvelopeFollower(tt.sampleRate, 0.01, 0.1)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewEnvelopeFollower(%v) error = %v, wantErr %v", tt.sampleRate, err, tt.wantErr)
			}
		})
	}
}

func TestEnvelopeFollowerClampsBallistics(t *testing.T) {
	f, err := NewEnvelopeFollower(48000, -1, 100)
	if err != nil {
		t.Fatalf("NewEnvelopeFollower: %v", err)
	}

	if f.Attack() != 0 {
		t.Errorf("negative attack should clamp to 0, got %v", f.Attack())
	}

	if f.Release() != maxBallisticsTimeSec {
		t.Errorf("oversized release should clamp to %v, got %v", maxBallisticsTimeSec, f.Release())
	}

	f.SetAttack(math.NaN())
	if f.Attack() != 0 {
		t.Errorf("NaN attack should clamp to minimum, got %v", f.Attack())
	}
}

func TestEnvelopeFollowerTracksStep(t *testing.T) {
	f, err := NewEnvelopeFollower(48000, 0.001, 0.050)
	if err != nil {
		t.Fatalf("NewEnvelopeFollower: %v", err)
	}

	// Feed a sustained level; the envelope must converge toward it.
	var env float64
	for i := 0; i < 48000; i++ {
		env = f.Step(0.5)
	}

	if math.Abs(env-0.5) > 1e-6 {
		t.Errorf("envelope should converge to 0.5, got %v", env)
	}

	// Drop to silence; the envelope must decay monotonically.
	prev := env
	for i := 0; i < 4800; i++ {
		env = f.Step(0)
		if env > prev {
			t.Fatalf("envelope rose during release at sample %d: %v > %v", i, env, prev)
		}

		prev = env
	}

	if env >= 0.5 {
		t.Errorf("envelope should have decayed below 0.5, got %v", env)
	}
}

func TestEnvelopeFollowerAttackFasterThanRelease(t *testing.T) {
	f, err := NewEnvelopeFollower(48000, 0.001, 0.200)
	if err != nil {
		t.Fatalf("NewEnvelopeFollower: %v", err)
	}

	// One millisecond of full-scale input.
	for i := 0; i < 48; i++ {
		f.Step(1.0)
	}

	afterAttack := f.Envelope()
	if afterAttack < 0.5 {
		t.Errorf("1 ms attack should reach well past half scale in 1 ms, got %v", afterAttack)
	}

	// One millisecond of silence should barely move a 200 ms release.
	for i := 0; i < 48; i++ {
		f.Step(0)
	}

	if drop := afterAttack - f.Envelope(); drop > 0.1 {
		t.Errorf("200 ms release decayed too fast in 1 ms: dropped %v", drop)
	}
}

func TestEnvelopeFollowerRectifiesAndSanitizes(t *testing.T) {
	f, err := NewEnvelopeFollower(48000, 0, 0.1)
	if err != nil {
		t.Fatalf("NewEnvelopeFollower: %v", err)
	}

	if env := f.Step(-0.75); math.Abs(env-0.75) > 1e-12 {
		t.Errorf("negative peak should be rectified: got %v, want 0.75", env)
	}

	f.Reset()

	if env := f.Step(math.NaN()); env != 0 {
		t.Errorf("NaN input should be treated as silence, got %v", env)
	}

	if env := f.Step(math.Inf(1)); !(env >= 0 && !math.IsInf(env, 0) && !math.IsNaN(env)) {
		t.Errorf("Inf input should leave a finite envelope, got %v", env)
	}
}

func TestEnvelopeFollowerResetDeterminism(t *testing.T) {
	f, err := NewEnvelopeFollower(48000, 0.002, 0.080)
	if err != nil {
		t.Fatalf("NewEnvelopeFollower: %v", err)
	}

	input := []float64{0.1, 0.9, -0.4, 0.0, 0.7, 0.2}

	run := func() []float64 {
		out := make([]float64, len(input))
		for i, v := range input {
			out[i] = f.Step(v)
		}

		return out
	}

	first := run()
	f.Reset()
	second := run()

	for i := range first {
		if first[i] != second[i] {
			t.Errorf("sample %d: %v != %v after reset", i, first[i], second[i])
		}
	}
}

func TestGainForEnvelope(t *testing.T) {
	tests := []struct {
		name      string
		envelope  float64
		threshold float64
		want      float64
	}{
		{"below threshold", 0.25, 0.5, 1.0},
		{"at threshold", 0.5, 0.5, 1.0},
		{"above threshold", 1.0, 0.5, 0.5},
		{"far above threshold", 2.0, 0.25, 0.125},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GainForEnvelope(tt.envelope, tt.threshold)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("GainForEnvelope(%v, %v) = %v, want %v", tt.envelope, tt.threshold, got, tt.want)
			}
		})
	}
}

func TestGainForEnvelopeZeroThreshold(t *testing.T) {
	// A zero or negative threshold is floored to epsilon, never divides by zero.
	gain := GainForEnvelope(1.0, 0)
	if math.IsNaN(gain) || math.IsInf(gain, 0) {
		t.Fatalf("gain must stay finite for zero threshold, got %v", gain)
	}

	if gain <= 0 || gain > 1 {
		t.Errorf("gain out of range for zero threshold: %v", gain)
	}

	if g := GainForEnvelope(1.0, -3); g != gain {
		t.Errorf("negative threshold should behave like zero: %v != %v", g, gain)
	}
}
