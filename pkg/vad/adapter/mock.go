package adapter

import "sync"

// Mock is a deterministic Adapter used by the engine's tests: it never
// touches ONNX Runtime and lets a test drive the state machine with an
// exact, pre-scripted probability sequence.
type Mock struct {
	// Probs is consumed one value per Process call. Once exhausted, the
	// last value is repeated (or 0 if Probs is empty).
	Probs []float32
	// Err, when set, is returned by every Process call instead of a
	// probability, and overrides Probs.
	Err error

	mu         sync.Mutex
	idx        int
	calls      [][]float32
	resetCalls int
	released   bool
}

// NewMock constructs a Mock that replays probs in order, holding the
// final value once exhausted.
func NewMock(probs ...float32) *Mock {
	return &Mock{Probs: probs}
}

// Process implements Adapter.
func (m *Mock) Process(frame []float32) (float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, cloneFloat32(frame))

	if m.Err != nil {
		return 0, m.Err
	}
	if len(m.Probs) == 0 {
		return 0, nil
	}
	i := m.idx
	if i >= len(m.Probs) {
		i = len(m.Probs) - 1
	} else {
		m.idx++
	}
	return m.Probs[i], nil
}

// ResetState implements Adapter.
func (m *Mock) ResetState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idx = 0
	m.resetCalls++
}

// Release implements Adapter.
func (m *Mock) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = true
	return nil
}

// Calls returns every frame passed to Process, in call order.
func (m *Mock) Calls() [][]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ResetCalled reports whether ResetState has been called at least once.
func (m *Mock) ResetCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetCalls > 0
}

// Released reports whether Release has been called.
func (m *Mock) Released() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

func cloneFloat32(f []float32) []float32 {
	c := make([]float32, len(f))
	copy(c, f)
	return c
}

var _ Adapter = (*Mock)(nil)
