// Package adapter implements the inference boundary described by the
// detector: a pure function that turns one audio frame into a speech
// probability while carrying recurrent neural state across calls.
//
// The detector never reaches into a model's tensors directly; it only
// ever sees the Adapter interface, which is what lets the state machine
// in package vad be tested with deterministic, model-free probabilities.
package adapter

import "fmt"

// Model selects which Silero VAD architecture an Adapter implements.
// The two variants differ only in their recurrent state shape and their
// model-tuned defaults; the detector treats them identically.
type Model int

const (
	// ModelV4 is Silero VAD v4: two state tensors h, c of shape [2,1,64].
	ModelV4 Model = iota
	// ModelV5 is Silero VAD v5: one state tensor of shape [2,1,128].
	ModelV5
)

// String implements fmt.Stringer.
func (m Model) String() string {
	switch m {
	case ModelV4:
		return "v4"
	case ModelV5:
		return "v5"
	default:
		return fmt.Sprintf("Model(%d)", int(m))
	}
}

// DefaultFrameSamples returns the model-tuned default frame width in
// samples: 1536 for v4, 512 for v5.
func (m Model) DefaultFrameSamples() int {
	if m == ModelV4 {
		return 1536
	}
	return 512
}

// Adapter is the inference boundary contract.
//
// Process accepts exactly one frame of model-tuned width and returns the
// probability that the frame contains speech, mutating the adapter's
// internal recurrent state as a side effect. Implementations must not
// retain the frame slice past the call.
type Adapter interface {
	// Process runs one inference step and returns is_speech in [0,1].
	Process(frame []float32) (isSpeech float32, err error)
	// ResetState zeroes the recurrent neural state in place.
	ResetState()
	// Release drops any resources (model session, tensors) held by the
	// adapter. The adapter must not be used after Release returns.
	Release() error
}

// New constructs the Adapter for model using modelBytes as the ONNX
// payload already resolved by package modelsource. frameSamples must be
// one of 512, 1024, or 1536.
func New(model Model, modelBytes []byte, frameSamples, sampleRate int) (Adapter, error) {
	if len(modelBytes) == 0 {
		return nil, fmt.Errorf("adapter: model bytes are empty")
	}
	switch frameSamples {
	case 512, 1024, 1536:
	default:
		return nil, fmt.Errorf("adapter: invalid frameSamples %d, want 512, 1024, or 1536", frameSamples)
	}

	switch model {
	case ModelV4:
		return newV4(modelBytes, frameSamples, sampleRate)
	case ModelV5:
		return newV5(modelBytes, frameSamples, sampleRate)
	default:
		return nil, fmt.Errorf("adapter: unknown model %v", model)
	}
}
