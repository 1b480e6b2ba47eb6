package vad

import (
	"fmt"

	"github.com/vadstream/vadstream/pkg/modelsource"
	"github.com/vadstream/vadstream/pkg/vad/adapter"
)

// Model re-exports adapter.Model so callers configuring an Engine never
// need to import the adapter package directly.
type Model = adapter.Model

const (
	ModelV4 = adapter.ModelV4
	ModelV5 = adapter.ModelV5
)

// Config holds every construction option accepted by New. Fields left
// at their zero value are filled in by Model-tuned defaults in
// withDefaults; Validate rejects an incoherent combination.
type Config struct {
	Model       Model
	ModelSource modelsource.Source

	SampleRate   int
	FrameSamples int

	PositiveSpeechThreshold float32
	NegativeSpeechThreshold float32

	RedemptionFrames   int
	PreSpeechPadFrames int
	MinSpeechFrames    int
	EndSpeechPadFrames int

	NumFramesToEmit int
}

// withDefaults returns a copy of c with every zero-valued, model-tuned
// field filled in according to the chosen Model's tuned defaults.
func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.PositiveSpeechThreshold == 0 {
		c.PositiveSpeechThreshold = 0.5
	}
	if c.NegativeSpeechThreshold == 0 {
		c.NegativeSpeechThreshold = 0.35
	}

	if c.Model == ModelV4 {
		if c.FrameSamples == 0 {
			c.FrameSamples = 1536
		}
		if c.RedemptionFrames == 0 {
			c.RedemptionFrames = 8
		}
		if c.PreSpeechPadFrames == 0 {
			c.PreSpeechPadFrames = 1
		}
		if c.MinSpeechFrames == 0 {
			c.MinSpeechFrames = 3
		}
		if c.EndSpeechPadFrames == 0 {
			c.EndSpeechPadFrames = 1
		}
		return c
	}

	// ModelV5 defaults.
	if c.FrameSamples == 0 {
		c.FrameSamples = 512
	}
	if c.RedemptionFrames == 0 {
		c.RedemptionFrames = 24
	}
	if c.PreSpeechPadFrames == 0 {
		c.PreSpeechPadFrames = 3
	}
	if c.MinSpeechFrames == 0 {
		c.MinSpeechFrames = 9
	}
	if c.EndSpeechPadFrames == 0 {
		c.EndSpeechPadFrames = 3
	}
	return c
}

// Validate checks the construction-time invariants an Engine relies on.
// It assumes defaults have already been applied.
func (c Config) Validate() error {
	switch c.FrameSamples {
	case 512, 1024, 1536:
	default:
		return fmt.Errorf("vad: invalid FrameSamples %d, want 512, 1024, or 1536", c.FrameSamples)
	}
	if c.SampleRate != 16000 {
		return fmt.Errorf("vad: invalid SampleRate %d, only 16000 is supported at the state-machine boundary", c.SampleRate)
	}
	if c.PositiveSpeechThreshold < 0 || c.PositiveSpeechThreshold > 1 {
		return fmt.Errorf("vad: PositiveSpeechThreshold %v out of [0,1]", c.PositiveSpeechThreshold)
	}
	if c.NegativeSpeechThreshold < 0 || c.NegativeSpeechThreshold > 1 {
		return fmt.Errorf("vad: NegativeSpeechThreshold %v out of [0,1]", c.NegativeSpeechThreshold)
	}
	if c.NegativeSpeechThreshold > c.PositiveSpeechThreshold {
		return fmt.Errorf("vad: NegativeSpeechThreshold %v must be <= PositiveSpeechThreshold %v", c.NegativeSpeechThreshold, c.PositiveSpeechThreshold)
	}
	if c.RedemptionFrames <= 0 {
		return fmt.Errorf("vad: RedemptionFrames must be positive, got %d", c.RedemptionFrames)
	}
	if c.PreSpeechPadFrames < 0 {
		return fmt.Errorf("vad: PreSpeechPadFrames must be non-negative, got %d", c.PreSpeechPadFrames)
	}
	if c.MinSpeechFrames <= 0 {
		return fmt.Errorf("vad: MinSpeechFrames must be positive, got %d", c.MinSpeechFrames)
	}
	if c.EndSpeechPadFrames < 0 {
		return fmt.Errorf("vad: EndSpeechPadFrames must be non-negative, got %d", c.EndSpeechPadFrames)
	}
	if c.NumFramesToEmit < 0 {
		return fmt.Errorf("vad: NumFramesToEmit must be non-negative, got %d", c.NumFramesToEmit)
	}
	return nil
}

// Option mutates a Config being built by New. Every Config field has a
// corresponding Option.
type Option func(*Config)

func WithModel(m Model) Option                     { return func(c *Config) { c.Model = m } }
func WithModelSource(s modelsource.Source) Option   { return func(c *Config) { c.ModelSource = s } }
func WithSampleRate(hz int) Option                  { return func(c *Config) { c.SampleRate = hz } }
func WithFrameSamples(n int) Option                 { return func(c *Config) { c.FrameSamples = n } }
func WithPositiveSpeechThreshold(p float32) Option {
	return func(c *Config) { c.PositiveSpeechThreshold = p }
}
func WithNegativeSpeechThreshold(p float32) Option {
	return func(c *Config) { c.NegativeSpeechThreshold = p }
}
func WithRedemptionFrames(n int) Option   { return func(c *Config) { c.RedemptionFrames = n } }
func WithPreSpeechPadFrames(n int) Option { return func(c *Config) { c.PreSpeechPadFrames = n } }
func WithMinSpeechFrames(n int) Option    { return func(c *Config) { c.MinSpeechFrames = n } }
func WithEndSpeechPadFrames(n int) Option { return func(c *Config) { c.EndSpeechPadFrames = n } }
func WithNumFramesToEmit(n int) Option    { return func(c *Config) { c.NumFramesToEmit = n } }
