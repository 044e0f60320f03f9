// Package events bridges the capture controller to a message bus.
// Finished detections are published once per photo, and remote
// commands drive the same actions as the screen buttons.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/facecam/internal/log"
	"github.com/teslashibe/facecam/pkg/capture"
	"github.com/teslashibe/facecam/pkg/detection"
	"github.com/teslashibe/facecam/pkg/photo"
)

// ErrUnknownAction is returned for a command the bridge does not know.
var ErrUnknownAction = errors.New("events: unknown action")

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// DetectionEvent is published when a photo's detection finishes.
type DetectionEvent struct {
	Photo photo.Photo      `json:"photo"`
	Faces []detection.Face `json:"faces"`
	Error string           `json:"error,omitempty"`
	At    time.Time        `json:"at"`
}

// Command is a remote action request.
type Command struct {
	Action    string `json:"action"`
	RequestID string `json:"request_id,omitempty"`
}

// Reply answers a Command on the reply topic.
type Reply struct {
	RequestID string       `json:"request_id,omitempty"`
	Action    string       `json:"action"`
	OK        bool         `json:"ok"`
	Error     string       `json:"error,omitempty"`
	Photo     *photo.Photo `json:"photo,omitempty"`
}

// Topics under a prefix.
func DetectionTopic(prefix string) string { return prefix + "/detections" }
func CommandTopic(prefix string) string   { return prefix + "/command" }
func ReplyTopic(prefix string) string     { return prefix + "/reply" }

// outboxSize bounds the events waiting for the publisher.
const outboxSize = 64

type outgoing struct {
	topic string
	data  []byte
}

// Bridge connects one controller to a publisher. Events are queued and
// sent by Run, so a slow broker never holds up controller listeners.
type Bridge struct {
	ctrl   *capture.Controller
	pub    Publisher
	prefix string
	log    *slog.Logger
	now    func() time.Time
	outbox chan outgoing

	mu       sync.Mutex
	lastSent string
}

// NewBridge subscribes to controller changes. Call Run to start publishing.
func NewBridge(ctrl *capture.Controller, pub Publisher, prefix string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = log.Component("events")
	}
	b := &Bridge{
		ctrl:   ctrl,
		pub:    pub,
		prefix: prefix,
		log:    logger,
		now:    time.Now,
		outbox: make(chan outgoing, outboxSize),
	}
	ctrl.OnChange(b.onState)
	return b
}

// Run sends queued events until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.outbox:
			if err := b.pub.Publish(msg.topic, msg.data); err != nil {
				b.log.Warn("failed to publish event", "topic", msg.topic, "error", err)
				continue
			}
			b.log.Debug("event published", "topic", msg.topic, "bytes", len(msg.data))
		}
	}
}

func (b *Bridge) onState(st capture.State) {
	result, ok := st.Preview.(capture.PhotoWithFaces)
	if !ok {
		return
	}

	b.mu.Lock()
	if b.lastSent == result.Photo.ID {
		b.mu.Unlock()
		return
	}
	b.lastSent = result.Photo.ID
	b.mu.Unlock()

	ev := DetectionEvent{
		Photo: result.Photo,
		Faces: result.Faces,
		At:    b.now().UTC(),
	}
	if ev.Faces == nil {
		ev.Faces = []detection.Face{}
	}
	if result.Err != nil {
		ev.Error = result.Err.Error()
	}

	b.publish(DetectionTopic(b.prefix), ev)
}

// HandleCommand runs a remote command and queues the reply.
func (b *Bridge) HandleCommand(ctx context.Context, payload []byte) error {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.log.Warn("invalid command payload", "payload", string(payload), "error", err)
		return fmt.Errorf("decode command: %w", err)
	}

	reply := Reply{RequestID: cmd.RequestID, Action: cmd.Action}
	err := b.run(ctx, cmd, &reply)
	if err != nil {
		reply.Error = err.Error()
		b.log.Warn("command failed", "action", cmd.Action, "error", err)
	} else {
		reply.OK = true
	}

	b.publish(ReplyTopic(b.prefix), reply)
	return err
}

func (b *Bridge) run(ctx context.Context, cmd Command, reply *Reply) error {
	switch cmd.Action {
	case "capture":
		p, err := b.ctrl.Capture(ctx)
		if err != nil {
			return err
		}
		reply.Photo = &p
		return nil
	case "flash":
		_, err := b.ctrl.ToggleFlash()
		return err
	case "lens":
		_, err := b.ctrl.ToggleLens()
		return err
	case "close":
		return b.ctrl.ClosePreview()
	case "permission":
		_, err := b.ctrl.RequestPermission(ctx)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

// publish queues v for Run. When the queue is full the event is dropped.
func (b *Bridge) publish(topic string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		b.log.Error("failed to encode event", "topic", topic, "error", err)
		return
	}
	select {
	case b.outbox <- outgoing{topic: topic, data: data}:
	default:
		b.log.Warn("event queue full, dropping event", "topic", topic)
	}
}
