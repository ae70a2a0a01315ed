// Command stemmix renders a multi-stem mix offline: it loads stem WAV
// files, runs them through the playback engine's channel and master effect
// chains, and writes the mixed result to a WAV file.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"

	"github.com/sastraxi/stemset-engine/dsp/core"
	"github.com/sastraxi/stemset-engine/dsp/signal"
	"github.com/sastraxi/stemset-engine/engine"
)

func main() {
	output := flag.String("output", "mix.wav", "Output WAV file path")
	blockSize := flag.Int("block", 1024, "Render block size in frames")
	limiterThreshold := flag.Float64("limiter-threshold", -1.0, "Master limiter threshold in dB")
	limiterAutoMakeup := flag.Bool("limiter-auto-makeup", false, "Derive makeup gain from the limiter threshold")
	reverbMix := flag.Float64("reverb-mix", 0.0, "Master reverb wet mix in [0, 1]")
	width := flag.Float64("width", 1.0, "Master stereo width for all bands in [0, 2]")
	clipDrive := flag.Float64("clip-drive", 0.0, "Master soft clipper drive; 0 disables the clipper")
	demo := flag.Bool("demo", false, "Mix synthetic demo stems instead of input files")
	demoRate := flag.Float64("demo-rate", 48000, "Sample rate for demo stems in Hz")
	demoSeconds := flag.Float64("demo-seconds", 4.0, "Demo stem length in seconds")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 && !*demo {
		fmt.Fprintln(os.Stderr, "usage: stemmix [flags] stem1.wav [stem2.wav ...]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	var (
		stems      []engine.Stem
		sampleRate float64
		err        error
	)

	if *demo {
		stems, sampleRate, err = demoStems(*demoRate, *demoSeconds)
	} else {
		stems, sampleRate, err = loadStems(paths)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading stems: %v\n", err)
		os.Exit(1)
	}

	master, err := buildMasterChain(sampleRate, *limiterThreshold, *limiterAutoMakeup, *reverbMix, *width, *clipDrive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building master chain: %v\n", err)
		os.Exit(1)
	}

	eng, err := engine.New(engine.Config{
		SampleRate:  sampleRate,
		BlockSize:   *blockSize,
		Stems:       stems,
		MasterUnits: master,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	fmt.Printf("Mixing %d stems, %.2f seconds at %.0f Hz...\n", len(stems), eng.Duration(), sampleRate)

	if err := eng.Play(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting playback: %v\n", err)
		os.Exit(1)
	}

	totalFrames := int(math.Ceil(eng.Duration() * sampleRate))
	samples := make([]float32, 0, totalFrames*2)

	outL := make([]float64, *blockSize)
	outR := make([]float64, *blockSize)

	for rendered := 0; rendered < totalFrames; rendered += *blockSize {
		eng.Render(outL, outR)

		frames := *blockSize
		if rendered+frames > totalFrames {
			frames = totalFrames - rendered
		}

		for i := 0; i < frames; i++ {
			samples = append(samples, float32(outL[i]), float32(outR[i]))
		}
	}

	eng.Stop(0)

	if err := writeWAV(*output, samples, int(sampleRate)); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully wrote %s (%d frames)\n", *output, totalFrames)
}

// demoStems synthesizes a bass tone, a decaying lead, and a noise bed so
// the full signal chain can be exercised without input material.
func demoStems(sampleRate, seconds float64) ([]engine.Stem, float64, error) {
	gen := signal.NewGenerator([]core.ProcessorOption{core.WithSampleRate(sampleRate)}, signal.WithSeed(7))
	frames := int(sampleRate * seconds)

	bass, err := gen.Sine(110, 0.4, frames)
	if err != nil {
		return nil, 0, err
	}

	lead, err := gen.DecayingTone(440, 0.5, seconds/2, frames)
	if err != nil {
		return nil, 0, err
	}

	bed, err := gen.WhiteNoise(0.05, frames)
	if err != nil {
		return nil, 0, err
	}

	stems := []engine.Stem{
		{Metadata: engine.StemMetadata{ID: "bass", Peak: 0.4}, Buffer: [][]float64{bass}},
		{Metadata: engine.StemMetadata{ID: "lead", Peak: 0.5}, Buffer: [][]float64{lead}},
		{Metadata: engine.StemMetadata{ID: "bed", Peak: 0.05}, Buffer: [][]float64{bed}},
	}

	return stems, sampleRate, nil
}

// loadStems decodes each WAV path into a stem. All stems must share one
// sample rate; stem IDs derive from the file names.
func loadStems(paths []string) ([]engine.Stem, float64, error) {
	stems := make([]engine.Stem, 0, len(paths))
	sampleRate := 0

	for _, path := range paths {
		buf, err := readWAV(path)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", path, err)
		}

		rate := buf.Format.SampleRate
		if sampleRate == 0 {
			sampleRate = rate
		} else if rate != sampleRate {
			return nil, 0, fmt.Errorf("%s: sample rate %d differs from session rate %d", path, rate, sampleRate)
		}

		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		stem, err := engine.StemFromFloat32Buffer(id, buf)
		if err != nil {
			return nil, 0, err
		}

		stems = append(stems, stem)
	}

	return stems, float64(sampleRate), nil
}

// readWAV decodes a mono or stereo WAV file into an interleaved PCM buffer.
func readWAV(path string) (*audio.Float32Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	if buf == nil || buf.Format == nil {
		return nil, fmt.Errorf("invalid wav buffer")
	}

	return buf, nil
}

// buildMasterChain wires the master-bus units from command-line settings.
func buildMasterChain(sampleRate, limiterThreshold float64, autoMakeup bool, reverbMix, width, clipDrive float64) ([]engine.Unit, error) {
	expander, err := engine.NewExpanderUnit("master-expander", sampleRate)
	if err != nil {
		return nil, err
	}

	for _, name := range []string{"lowWidth", "midWidth", "highWidth"} {
		if err := expander.SetParam(name, width); err != nil {
			return nil, err
		}
	}

	reverbUnit, err := engine.NewReverbUnit("master-reverb", sampleRate)
	if err != nil {
		return nil, err
	}

	if err := reverbUnit.SetParam("mix", reverbMix); err != nil {
		return nil, err
	}

	clipper := engine.NewClipperUnit("master-clipper")
	if clipDrive > 0 {
		if err := clipper.SetParam("drive", clipDrive); err != nil {
			return nil, err
		}
	} else {
		if err := clipper.SetParam("enabled", 0); err != nil {
			return nil, err
		}
	}

	limiter, err := engine.NewLimiterUnit("master-limiter", sampleRate)
	if err != nil {
		return nil, err
	}

	if err := limiter.SetParam("threshold", limiterThreshold); err != nil {
		return nil, err
	}

	if autoMakeup {
		if err := limiter.SetParam("autoMakeup", 1); err != nil {
			return nil, err
		}
	}

	return []engine.Unit{expander, reverbUnit, clipper, limiter}, nil
}

// writeWAV encodes interleaved stereo float32 samples as 16-bit PCM.
func writeWAV(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	defer enc.Close()

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: 2,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}

	return enc.Write(buf)
}
