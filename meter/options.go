package meter

import "github.com/sastraxi/stemset-engine/dsp/core"

// Config defines configuration for the level meter.
type Config struct {
	core.ProcessorConfig
	Channels  int
	Smoothing float64
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns sensible defaults: stereo at the processor default
// sample rate with moderate smoothing.
func DefaultConfig() Config {
	return Config{
		ProcessorConfig: core.DefaultProcessorConfig(),
		Channels:        2,
		Smoothing:       defaultLevelSmoothing,
	}
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) Option {
	return func(cfg *Config) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithChannels sets the number of channels (1 for mono, 2 for stereo).
func WithChannels(channels int) Option {
	return func(cfg *Config) {
		if channels > 0 {
			cfg.Channels = channels
		}
	}
}

// WithSmoothing sets the exponential smoothing factor for the displayed
// levels, clamped to [0.1, 0.9] on apply.
func WithSmoothing(smoothing float64) Option {
	return func(cfg *Config) {
		cfg.Smoothing = smoothing
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	cfg.Smoothing = core.Clamp(cfg.Smoothing, minLevelSmoothing, maxLevelSmoothing)

	return cfg
}
