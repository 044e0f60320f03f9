// Package client talks to a running facecam server: it follows the screen
// over the websocket and drives actions over the REST routes.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/facecam/pkg/screen"
)

// DefaultScreenURL is where a local server publishes screen updates.
const DefaultScreenURL = "ws://localhost:8080/ws/screen"

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 120 * time.Second
)

// Watch dials url and calls fn with every screen received, until ctx is
// done or the connection fails. A cancelled ctx returns nil.
func Watch(ctx context.Context, url string, fn func(screen.Screen)) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer ws.Close()

	// Unblock ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		ws.Close()
	})
	defer stop()

	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPingHandler(func(appData string) error {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read screen: %w", err)
		}
		ws.SetReadDeadline(time.Now().Add(readTimeout))

		if kind != websocket.TextMessage {
			continue
		}
		var s screen.Screen
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode screen: %w", err)
		}
		fn(s)
	}
}

// WatchRetry runs Watch until ctx is done, reconnecting after failures
// with a doubling delay capped at maxDelay. onError sees every failure.
func WatchRetry(ctx context.Context, url string, maxDelay time.Duration, fn func(screen.Screen), onError func(error)) error {
	delay := 500 * time.Millisecond
	for {
		err := Watch(ctx, url, fn)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("server closed the connection")
		}
		if onError != nil {
			onError(err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
