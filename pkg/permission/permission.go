// Package permission models camera access grants.
package permission

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// State is the camera permission grant state.
type State int

const (
	// Undetermined means nobody has asked yet.
	Undetermined State = iota
	// Granted means the camera may be used.
	Granted
	// Denied means the camera may not be used.
	Denied
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "undetermined"
	}
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrDenied is returned by Request when access is refused.
var ErrDenied = errors.New("permission: camera access denied")

// Gate exposes the current grant state and a request action.
type Gate interface {
	// Status reports the current state without asking.
	Status(ctx context.Context) State

	// Request asks for access and returns the resulting state.
	Request(ctx context.Context) (State, error)
}

// DeviceGate grants access when the camera device node can be opened
// for reading. An empty Path is treated as always granted, which covers
// platforms without device nodes.
type DeviceGate struct {
	Path string

	mu    sync.Mutex
	state State
}

// NewDeviceGate returns a gate for the video device at path.
func NewDeviceGate(path string) *DeviceGate {
	return &DeviceGate{Path: path}
}

// DevicePath returns the Linux video device node for a capture index.
func DevicePath(index int) string {
	return fmt.Sprintf("/dev/video%d", index)
}

// Status reports the last known state.
func (g *DeviceGate) Status(ctx context.Context) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Request probes the device node.
func (g *DeviceGate) Request(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return g.Status(ctx), err
	}

	state := Granted
	var err error
	if g.Path != "" {
		f, openErr := os.Open(g.Path)
		if openErr != nil {
			state = Denied
			err = fmt.Errorf("%w: %v", ErrDenied, openErr)
		} else {
			f.Close()
		}
	}

	g.mu.Lock()
	g.state = state
	g.mu.Unlock()
	return state, err
}

// Static is a gate with a fixed answer to Request.
type Static struct {
	Answer State

	mu    sync.Mutex
	state State
	asked int
}

// NewStatic returns a gate that answers every request with answer.
func NewStatic(answer State) *Static {
	return &Static{Answer: answer}
}

// Status reports the last answered state, Undetermined before any request.
func (g *Static) Status(ctx context.Context) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Request records the request and returns Answer.
func (g *Static) Request(ctx context.Context) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.asked++
	g.state = g.Answer
	if g.Answer == Denied {
		return Denied, ErrDenied
	}
	return g.Answer, nil
}

// SetAnswer changes the answer given by later requests.
func (g *Static) SetAnswer(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Answer = s
}

// Requests returns how many times Request was called.
func (g *Static) Requests() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.asked
}

var (
	_ Gate = (*DeviceGate)(nil)
	_ Gate = (*Static)(nil)
)
