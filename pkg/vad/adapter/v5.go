//go:build vad

package adapter

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// v5StateSize is the per-layer hidden dimension for Silero VAD v5's
// combined state tensor of shape [2,1,128].
const v5StateSize = 128

// v5 runs Silero VAD v5 inference via ONNX Runtime, reusing a single set
// of input/output tensors across calls to stay allocation-free on the
// hot per-frame path.
type v5 struct {
	session *ort.AdvancedSession

	input  *ort.Tensor[float32] // [1, frameSamples]
	state  *ort.Tensor[float32] // [2, 1, 128]
	sr     *ort.Tensor[int64]   // [1]
	output *ort.Tensor[float32] // [1, 1]
	stateN *ort.Tensor[float32] // [2, 1, 128]

	frameSamples int
}

func newV5(modelBytes []byte, frameSamples, sampleRate int) (*v5, error) {
	if err := ensureRuntime(); err != nil {
		return nil, err
	}

	a := &v5{frameSamples: frameSamples}

	var err error
	if a.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(frameSamples))); err != nil {
		return nil, fmt.Errorf("adapter: v5 input tensor: %w", err)
	}
	if a.state, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, v5StateSize)); err != nil {
		a.release()
		return nil, fmt.Errorf("adapter: v5 state tensor: %w", err)
	}
	if a.sr, err = ort.NewTensor(ort.NewShape(1), []int64{int64(sampleRate)}); err != nil {
		a.release()
		return nil, fmt.Errorf("adapter: v5 sr tensor: %w", err)
	}
	if a.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		a.release()
		return nil, fmt.Errorf("adapter: v5 output tensor: %w", err)
	}
	if a.stateN, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, v5StateSize)); err != nil {
		a.release()
		return nil, fmt.Errorf("adapter: v5 stateN tensor: %w", err)
	}

	a.session, err = ort.NewAdvancedSessionWithONNXData(
		modelBytes,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{a.input, a.state, a.sr},
		[]ort.Value{a.output, a.stateN},
		nil,
	)
	if err != nil {
		a.release()
		return nil, fmt.Errorf("adapter: v5 create session: %w", err)
	}

	return a, nil
}

func (a *v5) Process(frame []float32) (float32, error) {
	if len(frame) != a.frameSamples {
		return 0, fmt.Errorf("adapter: v5 expected %d samples, got %d", a.frameSamples, len(frame))
	}

	copy(a.input.GetData(), frame)

	if err := a.session.Run(); err != nil {
		return 0, fmt.Errorf("adapter: v5 inference: %w", err)
	}

	copy(a.state.GetData(), a.stateN.GetData())

	out := a.output.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("adapter: v5 produced no output")
	}
	return out[0], nil
}

func (a *v5) ResetState() {
	zero32(a.state.GetData())
	zero32(a.stateN.GetData())
}

func (a *v5) Release() error {
	a.release()
	return nil
}

func (a *v5) release() {
	if a.session != nil {
		a.session.Destroy()
		a.session = nil
	}
	for _, t := range []interface{ Destroy() }{a.input, a.state, a.sr, a.output, a.stateN} {
		if t != nil {
			t.Destroy()
		}
	}
	a.input, a.state, a.sr, a.output, a.stateN = nil, nil, nil, nil, nil
}
