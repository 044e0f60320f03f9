package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/facecam/pkg/screen"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// screenServer sends each message as a text frame, then closes normally.
func screenServer(t *testing.T, messages ...string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		ws.WriteMessage(websocket.BinaryMessage, []byte{0xFF, 0xD8})
		for _, m := range messages {
			ws.WriteMessage(websocket.TextMessage, []byte(m))
		}
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		ws.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWatch_DecodesScreens(t *testing.T) {
	srv := screenServer(t,
		`{"permission":{"message":"Camera permission not granted","label":"Authorize Permission","action":"permission"}}`,
		`{"camera":{"active":true,"lens":"back","torch":"off","controls":[]}}`,
	)

	var got []screen.Screen
	err := Watch(context.Background(), wsURL(srv), func(s screen.Screen) {
		got = append(got, s)
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 screens, got %d", len(got))
	}
	if got[0].Permission == nil || got[0].Permission.Message != screen.PermissionMessage {
		t.Errorf("first screen: %+v", got[0])
	}
	if got[1].Camera == nil || !got[1].Camera.Active {
		t.Errorf("second screen: %+v", got[1])
	}
}

func TestWatch_BadJSON(t *testing.T) {
	srv := screenServer(t, `not json`)

	err := Watch(context.Background(), wsURL(srv), func(screen.Screen) {})
	if err == nil || !strings.Contains(err.Error(), "decode screen") {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestWatch_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if err := Watch(context.Background(), wsURL(srv), func(screen.Screen) {}); err == nil {
		t.Error("expected dial error")
	}
}

func TestWatch_ContextCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, wsURL(srv), func(screen.Screen) {})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("cancelled Watch: got %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchRetry_StopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var failures int
	err := WatchRetry(ctx, wsURL(srv), 50*time.Millisecond, func(screen.Screen) {}, func(error) {
		failures++
	})
	if err != nil {
		t.Errorf("WatchRetry: %v", err)
	}
	if failures == 0 {
		t.Error("expected at least one reported failure")
	}
}
