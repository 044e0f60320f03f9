package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/teslashibe/facecam/internal/httpc"
	"github.com/teslashibe/facecam/pkg/photo"
	"github.com/teslashibe/facecam/pkg/screen"
)

// DefaultBaseURL is the HTTP address of a local server.
const DefaultBaseURL = "http://localhost:8080"

// API drives a running server over its REST routes.
type API struct {
	base string
	http *http.Client
}

// NewAPI returns an API for the server at base, using httpc.Default.
func NewAPI(base string) *API {
	return &API{base: strings.TrimRight(base, "/"), http: httpc.Default}
}

// WithHTTPClient swaps the underlying HTTP client.
func (a *API) WithHTTPClient(c *http.Client) *API {
	a.http = c
	return a
}

// Screen fetches the current screen.
func (a *API) Screen(ctx context.Context) (screen.Screen, error) {
	var s screen.Screen
	err := a.do(ctx, http.MethodGet, "/api/screen", &s)
	return s, err
}

// Capture takes a photo and returns it. Detection runs on the server;
// follow the screen to see the result.
func (a *API) Capture(ctx context.Context) (photo.Photo, error) {
	var p photo.Photo
	err := a.do(ctx, http.MethodPost, "/api/capture", &p)
	return p, err
}

// Press performs the user action and returns the screen that results.
// ActionCapture returns the screen after the photo is taken.
func (a *API) Press(ctx context.Context, action screen.Action) (screen.Screen, error) {
	switch action {
	case screen.ActionCapture:
		if _, err := a.Capture(ctx); err != nil {
			return screen.Screen{}, err
		}
		return a.Screen(ctx)
	case screen.ActionAuthorize, screen.ActionFlash, screen.ActionLens, screen.ActionClose:
		var s screen.Screen
		err := a.do(ctx, http.MethodPost, "/api/"+string(action), &s)
		return s, err
	default:
		return screen.Screen{}, fmt.Errorf("unknown action %q", action)
	}
}

func (a *API) do(ctx context.Context, method, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if err := httpc.DecodeJSON(resp, v); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}
