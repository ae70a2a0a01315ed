// Package dynamics provides the gain-control processors of the playback
// engine.
//
// Included processors:
//   - EnvelopeFollower: asymmetric attack/release peak follower driving the
//     soft-knee gain stages.
//   - SoftKnee: soft-knee compression gain stage with log2-domain gain
//     computation.
//   - Limiter: multi-channel brick-wall peak limiter with a windowed-maximum
//     lookahead detector, hold, and automatic or manual makeup gain.
//
// Runtime parameter setters clamp out-of-range values to their documented
// bounds instead of rejecting them; only constructors return errors.
package dynamics

import "fmt"

func errInvalidSampleRate(sampleRate float64) error {
	return fmt.Errorf("sample rate must be positive and finite: %f", sampleRate)
}
