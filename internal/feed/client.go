// Package feed is the viewer's side of the office backend: snapshot reads,
// the SSE event stream and event resolution.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agent_office/internal/domain"
)

type Client struct {
	baseURL string
	http    *http.Client
	// stream has no overall timeout; the request context bounds it.
	stream *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		stream: &http.Client{},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// WaitHealth polls /healthz until it answers or timeout passes.
func (c *Client) WaitHealth(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
		if err == nil {
			resp, err := c.http.Do(req)
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode < 300 {
					return nil
				}
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(400 * time.Millisecond):
		}
	}
	return fmt.Errorf("timeout waiting for /healthz")
}

func (c *Client) Snapshot(ctx context.Context, locale string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	path := "/snapshot"
	if locale != "" {
		path += "?locale=" + url.QueryEscape(locale)
	}
	if err := c.getJSON(ctx, path, &snap); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// Resolve tells the backend the viewer has played an event.
func (c *Client) Resolve(ctx context.Context, eventID string) error {
	return c.postJSON(ctx, "/events/"+url.PathEscape(eventID)+"/resolve", map[string]any{}, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return err
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in any, out any) error {
	var payload io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return err
	}
	return nil
}
