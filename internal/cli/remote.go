package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/callgate"
)

// Remote talks to the debug API of a running `callgate serve`.
type Remote struct {
	base   string
	client *http.Client
}

// NewRemote creates a client for the server at base, e.g. http://localhost:8080.
func NewRemote(base string) *Remote {
	return &Remote{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Trigger asks the server to place a stage's call.
func (r *Remote) Trigger(ctx context.Context, ordinal int) error {
	_, err := r.do(ctx, http.MethodPost, fmt.Sprintf("/stages/%d/trigger", ordinal))
	return err
}

// Status fetches the live status, including the call in progress.
func (r *Remote) Status(ctx context.Context) (callgate.Status, error) {
	var st callgate.Status
	body, err := r.do(ctx, http.MethodGet, "/status")
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return st, fmt.Errorf("failed to decode status: %w", err)
	}
	return st, nil
}

func (r *Remote) do(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", r.base, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return nil, fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return body, nil
}
