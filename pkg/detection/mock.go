package detection

import (
	"sync"
)

// Mock implements Detector for testing. Like the real backends it
// returns ErrClosed from Detect after Close.
type Mock struct {
	// DetectFunc is called when Detect is invoked.
	// If nil, Detect returns no faces.
	DetectFunc func(jpeg []byte) ([]Face, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu     sync.Mutex
	calls  int
	closed bool
}

// NewMock returns a mock that always finds the given faces.
func NewMock(faces ...Face) *Mock {
	return &Mock{
		DetectFunc: func([]byte) ([]Face, error) {
			out := make([]Face, len(faces))
			copy(out, faces)
			return out, nil
		},
	}
}

// Detect calls DetectFunc and counts the call.
func (m *Mock) Detect(jpeg []byte) ([]Face, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.calls++
	fn := m.DetectFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(jpeg)
	}
	return []Face{}, nil
}

// Close marks the mock closed and calls CloseFunc.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns how many times Detect was called.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ Detector = (*Mock)(nil)
