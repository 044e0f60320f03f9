package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/facecam/internal/log"
	"github.com/teslashibe/facecam/pkg/camera"
	"github.com/teslashibe/facecam/pkg/capture"
	"github.com/teslashibe/facecam/pkg/detection"
	"github.com/teslashibe/facecam/pkg/permission"
	"github.com/teslashibe/facecam/pkg/photo"
)

type published struct {
	topic   string
	payload []byte
}

type recorder struct {
	mu   sync.Mutex
	msgs []published
	err  error

	// block, when set, holds every Publish until it is closed.
	block chan struct{}
}

func (r *recorder) Publish(topic string, payload []byte) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, published{topic, payload})
	return nil
}

func (r *recorder) on(topic string) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, m := range r.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func setup(t *testing.T, faces ...detection.Face) (*capture.Controller, *recorder, *Bridge) {
	t.Helper()
	rec := &recorder{}
	ctrl, b := setupWith(t, rec, faces...)
	return ctrl, rec, b
}

func setupWith(t *testing.T, rec *recorder, faces ...detection.Face) (*capture.Controller, *Bridge) {
	t.Helper()
	photos, err := photo.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctrl := capture.New(
		camera.NewManager(camera.DefaultConfig()),
		camera.NewMock(400, 600),
		detection.NewMock(faces...),
		permission.NewStatic(permission.Granted),
		photos,
		capture.WithLogger(log.Discard()),
	)
	t.Cleanup(func() { ctrl.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	b := NewBridge(ctrl, rec, "cam", log.Discard())
	go b.Run(ctx)
	if _, err := ctrl.Mount(context.Background()); err != nil {
		t.Fatal(err)
	}
	return ctrl, b
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestTopics(t *testing.T) {
	if DetectionTopic("a") != "a/detections" || CommandTopic("a") != "a/command" || ReplyTopic("a") != "a/reply" {
		t.Error("unexpected topic names")
	}
}

func TestBridge_PublishesDetectionOnce(t *testing.T) {
	face := detection.Face{Frame: detection.Rect{Size: detection.Point{X: 10, Y: 10}}, Confidence: 0.8}
	ctrl, rec, _ := setup(t, face)

	p, err := ctrl.Capture(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "detection event", func() bool { return len(rec.on("cam/detections")) == 1 })

	// A settings change re-emits the same state; no duplicate event.
	if _, err := ctrl.ToggleFlash(); err != nil {
		t.Fatal(err)
	}
	if n := len(rec.on("cam/detections")); n != 1 {
		t.Errorf("expected 1 detection event, got %d", n)
	}

	var ev DetectionEvent
	if err := json.Unmarshal(rec.on("cam/detections")[0].payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Photo.ID != p.ID || len(ev.Faces) != 1 || ev.Error != "" {
		t.Errorf("event: %+v", ev)
	}
}

func TestBridge_HandleCommand(t *testing.T) {
	ctrl, rec, b := setup(t)

	if err := b.HandleCommand(context.Background(), []byte(`{"action":"capture","request_id":"r1"}`)); err != nil {
		t.Fatalf("capture command: %v", err)
	}
	waitFor(t, "capture reply", func() bool { return len(rec.on("cam/reply")) == 1 })
	replies := rec.on("cam/reply")
	var reply Reply
	if err := json.Unmarshal(replies[0].payload, &reply); err != nil {
		t.Fatal(err)
	}
	if !reply.OK || reply.RequestID != "r1" || reply.Photo == nil {
		t.Errorf("reply: %+v", reply)
	}
	if _, ok := capture.PhotoOf(ctrl.State().Preview); !ok {
		t.Error("capture command should put a photo on screen")
	}

	if err := b.HandleCommand(context.Background(), []byte(`{"action":"close"}`)); err != nil {
		t.Errorf("close command: %v", err)
	}
	if err := b.HandleCommand(context.Background(), []byte(`{"action":"lens"}`)); err != nil {
		t.Errorf("lens command: %v", err)
	}
	if ctrl.State().Settings.Lens != camera.LensFront {
		t.Error("lens command should switch lens")
	}
}

func TestBridge_HandleCommandErrors(t *testing.T) {
	_, rec, b := setup(t)

	err := b.HandleCommand(context.Background(), []byte(`{"action":"zoom"}`))
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
	waitFor(t, "failure reply", func() bool { return len(rec.on("cam/reply")) == 1 })
	var reply Reply
	json.Unmarshal(rec.on("cam/reply")[0].payload, &reply)
	if reply.OK || reply.Error == "" {
		t.Errorf("failure reply: %+v", reply)
	}

	if err := b.HandleCommand(context.Background(), []byte(`{`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestBridge_PublishFailureIsLogged(t *testing.T) {
	ctrl, rec, _ := setup(t)
	rec.mu.Lock()
	rec.err = errors.New("broker down")
	rec.mu.Unlock()

	if _, err := ctrl.Capture(context.Background()); err != nil {
		t.Fatalf("capture must not depend on the bus: %v", err)
	}
}

func TestBridge_SlowBrokerDoesNotBlockController(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	defer close(rec.block)
	ctrl, _ := setupWith(t, rec, detection.Face{Confidence: 0.9})

	if _, err := ctrl.Capture(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "detection", func() bool {
		_, ok := ctrl.State().Preview.(capture.PhotoWithFaces)
		return ok
	})

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.ToggleFlash()
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("ToggleFlash blocked behind a stalled publish")
	}
}

type fakeToken struct {
	done chan struct{}
	err  error
}

func (f *fakeToken) Wait() bool {
	<-f.done
	return true
}

func (f *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-f.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (f *fakeToken) Done() <-chan struct{} { return f.done }

func (f *fakeToken) Error() error { return f.err }

func TestWaitToken(t *testing.T) {
	finished := make(chan struct{})
	close(finished)

	if err := waitToken(&fakeToken{done: finished}, time.Second, "subscribe"); err != nil {
		t.Errorf("completed token: %v", err)
	}

	refused := errors.New("not authorized")
	if err := waitToken(&fakeToken{done: finished, err: refused}, time.Second, "subscribe"); !errors.Is(err, refused) {
		t.Errorf("failed token: got %v", err)
	}

	if err := waitToken(&fakeToken{done: make(chan struct{})}, 10*time.Millisecond, "subscribe"); err == nil {
		t.Error("a token that never completes must be a failure")
	}
}
