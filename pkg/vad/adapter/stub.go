//go:build !vad

package adapter

import "fmt"

// newV4 and newV5 are stubbed out when the module is built without the
// 'vad' build tag (no ONNX Runtime shared library available at build
// time). Callers get a clear construction-time error instead of a link
// failure, matching the teacher's vad_element_stub.go pattern.

func newV4(modelBytes []byte, frameSamples, sampleRate int) (Adapter, error) {
	return nil, fmt.Errorf("adapter: v4 support not built in; rebuild with '-tags vad' and an ONNX Runtime shared library installed")
}

func newV5(modelBytes []byte, frameSamples, sampleRate int) (Adapter, error) {
	return nil, fmt.Errorf("adapter: v5 support not built in; rebuild with '-tags vad' and an ONNX Runtime shared library installed")
}
