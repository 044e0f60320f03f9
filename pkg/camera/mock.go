package camera

import (
	"context"
	"sync"
)

// Mock implements Device for testing.
// All methods can be customized via function fields.
type Mock struct {
	// TakePhotoFunc is called when TakePhoto is invoked.
	// If nil, returns a 400x600 frame with placeholder bytes.
	TakePhotoFunc func(ctx context.Context) (*Frame, error)

	// PreviewFunc is called when PreviewFrame is invoked.
	PreviewFunc func(ctx context.Context) ([]byte, error)

	mu      sync.Mutex
	applied []Config
	shots   int
	closed  bool
}

// NewMock creates a mock device that returns frames of the given size.
func NewMock(width, height int) *Mock {
	m := &Mock{}
	m.TakePhotoFunc = func(ctx context.Context) (*Frame, error) {
		cfg := m.LastConfig()
		return &Frame{
			JPEG:     []byte{0xFF, 0xD8, 0xFF, 0xD9},
			Width:    width,
			Height:   height,
			Lens:     cfg.Lens,
			Mirrored: cfg.Mirrored(),
			Torch:    cfg.Torch,
		}, nil
	}
	return m
}

// TakePhoto calls TakePhotoFunc and counts the shot.
func (m *Mock) TakePhoto(ctx context.Context) (*Frame, error) {
	m.mu.Lock()
	m.shots++
	fn := m.TakePhotoFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return &Frame{JPEG: []byte{0xFF, 0xD8, 0xFF, 0xD9}, Width: 400, Height: 600, Lens: LensBack}, nil
}

// PreviewFrame calls PreviewFunc.
func (m *Mock) PreviewFrame(ctx context.Context) ([]byte, error) {
	if m.PreviewFunc != nil {
		return m.PreviewFunc(ctx)
	}
	if !m.LastConfig().Active {
		return nil, ErrInactive
	}
	return []byte{0xFF, 0xD8, 0xFF, 0xD9}, nil
}

// Apply records cfg.
func (m *Mock) Apply(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied = append(m.applied, cfg)
	return nil
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Applied returns every config passed to Apply.
func (m *Mock) Applied() []Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Config, len(m.applied))
	copy(out, m.applied)
	return out
}

// LastConfig returns the most recent applied config, or DefaultConfig.
func (m *Mock) LastConfig() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.applied) == 0 {
		return DefaultConfig()
	}
	return m.applied[len(m.applied)-1]
}

// Shots returns how many times TakePhoto was called.
func (m *Mock) Shots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shots
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Device = (*Mock)(nil)
