//go:build vad

package adapter

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// v4StateSize is the per-layer hidden dimension for Silero VAD v4's split
// h/c state tensors, each of shape [2,1,64].
const v4StateSize = 64

// v4 runs Silero VAD v4 inference via ONNX Runtime. Unlike v5, the
// recurrent state is carried as two separate tensors (h, c), matching
// the LSTM-style state the v4 graph expects.
type v4 struct {
	session *ort.AdvancedSession

	input  *ort.Tensor[float32] // [1, frameSamples]
	sr     *ort.Tensor[int64]   // [1]
	h      *ort.Tensor[float32] // [2, 1, 64]
	c      *ort.Tensor[float32] // [2, 1, 64]
	output *ort.Tensor[float32] // [1, 1]
	hN     *ort.Tensor[float32] // [2, 1, 64]
	cN     *ort.Tensor[float32] // [2, 1, 64]

	frameSamples int
}

func newV4(modelBytes []byte, frameSamples, sampleRate int) (*v4, error) {
	if err := ensureRuntime(); err != nil {
		return nil, err
	}

	a := &v4{frameSamples: frameSamples}

	var err error
	if a.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(frameSamples))); err != nil {
		return nil, fmt.Errorf("adapter: v4 input tensor: %w", err)
	}
	if a.sr, err = ort.NewTensor(ort.NewShape(1), []int64{int64(sampleRate)}); err != nil {
		a.release()
		return nil, fmt.Errorf("adapter: v4 sr tensor: %w", err)
	}
	if a.h, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, v4StateSize)); err != nil {
		a.release()
		return nil, fmt.Errorf("adapter: v4 h tensor: %w", err)
	}
	if a.c, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, v4StateSize)); err != nil {
		a.release()
		return nil, fmt.Errorf("adapter: v4 c tensor: %w", err)
	}
	if a.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		a.release()
		return nil, fmt.Errorf("adapter: v4 output tensor: %w", err)
	}
	if a.hN, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, v4StateSize)); err != nil {
		a.release()
		return nil, fmt.Errorf("adapter: v4 hN tensor: %w", err)
	}
	if a.cN, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, v4StateSize)); err != nil {
		a.release()
		return nil, fmt.Errorf("adapter: v4 cN tensor: %w", err)
	}

	a.session, err = ort.NewAdvancedSessionWithONNXData(
		modelBytes,
		[]string{"input", "sr", "h", "c"},
		[]string{"output", "hn", "cn"},
		[]ort.Value{a.input, a.sr, a.h, a.c},
		[]ort.Value{a.output, a.hN, a.cN},
		nil,
	)
	if err != nil {
		a.release()
		return nil, fmt.Errorf("adapter: v4 create session: %w", err)
	}

	return a, nil
}

func (a *v4) Process(frame []float32) (float32, error) {
	if len(frame) != a.frameSamples {
		return 0, fmt.Errorf("adapter: v4 expected %d samples, got %d", a.frameSamples, len(frame))
	}

	copy(a.input.GetData(), frame)

	if err := a.session.Run(); err != nil {
		return 0, fmt.Errorf("adapter: v4 inference: %w", err)
	}

	copy(a.h.GetData(), a.hN.GetData())
	copy(a.c.GetData(), a.cN.GetData())

	out := a.output.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("adapter: v4 produced no output")
	}
	return out[0], nil
}

func (a *v4) ResetState() {
	zero32(a.h.GetData())
	zero32(a.c.GetData())
	zero32(a.hN.GetData())
	zero32(a.cN.GetData())
}

func (a *v4) Release() error {
	a.release()
	return nil
}

func (a *v4) release() {
	if a.session != nil {
		a.session.Destroy()
		a.session = nil
	}
	for _, t := range []interface{ Destroy() }{a.input, a.sr, a.h, a.c, a.output, a.hN, a.cN} {
		if t != nil {
			t.Destroy()
		}
	}
	a.input, a.sr, a.h, a.c, a.output, a.hN, a.cN = nil, nil, nil, nil, nil, nil, nil
}
