package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"slices"
	"time"

	sse "github.com/tmaxmax/go-sse"

	"agent_office/internal/domain"
)

var ErrStreamClosed = errors.New("event stream closed")

// Stream reads the backend's SSE stream and hands every decoded office event
// to fn. Frames that do not decode (heartbeats, unknown kinds) are skipped.
// It returns when ctx ends or the connection drops.
func (c *Client) Stream(ctx context.Context, locale string, fn func(domain.Event)) error {
	path := "/events/stream"
	if locale != "" {
		path += "?locale=" + url.QueryEscape(locale)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("open stream: http %s", resp.Status)
	}
	return readSSE(resp.Body, func(event, data string) {
		if event == "heartbeat" || data == "" {
			return
		}
		ev, err := domain.DecodeEvent([]byte(data))
		if err != nil {
			return
		}
		fn(ev)
	})
}

// maxEventSize bounds one frame; full snapshots ride the stream.
const maxEventSize = 8 << 20

// readSSE splits an event stream into (event, data) frames. Unnamed frames
// carry an empty event.
func readSSE(r io.Reader, frame func(event, data string)) error {
	for ev, err := range sse.Read(r, &sse.ReadConfig{MaxEventSize: maxEventSize}) {
		if err != nil {
			return err
		}
		frame(ev.Type, ev.Data)
	}
	return ErrStreamClosed
}

// Watcher keeps the viewer supplied with snapshots. It prefers the push
// stream and polls while the stream is unavailable.
type Watcher struct {
	Client       *Client
	Locale       string
	PollInterval time.Duration
	Logger       *log.Logger
	// OnSnapshot receives every new snapshot. It runs on the watcher's
	// goroutine; UI hosts must hop to their own.
	OnSnapshot func(domain.Snapshot)

	last    domain.Snapshot
	hasLast bool
}

func (w *Watcher) Run(ctx context.Context) error {
	if w.PollInterval <= 0 {
		w.PollInterval = 2 * time.Second
	}
	if w.Logger == nil {
		w.Logger = log.Default()
	}
	for {
		err := w.Client.Stream(ctx, w.Locale, w.apply)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.Logger.Printf("event stream unavailable, polling: %v", err)
		if err := w.Poll(ctx); err != nil {
			w.Logger.Printf("poll snapshot: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.PollInterval):
		}
	}
}

// Poll fetches one snapshot and forwards it when its version is new.
func (w *Watcher) Poll(ctx context.Context) error {
	snap, err := w.Client.Snapshot(ctx, w.Locale)
	if err != nil {
		return err
	}
	w.apply(domain.SnapshotEvent{Snapshot: snap})
	return nil
}

func (w *Watcher) apply(ev domain.Event) {
	switch e := ev.(type) {
	case domain.SnapshotEvent:
		if w.hasLast && e.Snapshot.Version == w.last.Version && e.Snapshot.Version != 0 {
			return
		}
		w.last, w.hasLast = e.Snapshot, true
	case domain.DeliveryEvent:
		if !w.hasLast || slices.ContainsFunc(w.last.Deliveries, func(d domain.CrossDeptDelivery) bool { return d.ID == e.Delivery.ID }) {
			return
		}
		next := w.last
		next.Deliveries = append(slices.Clone(w.last.Deliveries), e.Delivery)
		w.last = next
	case domain.MeetingCallEvent:
		if !w.hasLast || slices.ContainsFunc(w.last.MeetingCalls, func(c domain.MeetingCall) bool { return c.ID == e.Call.ID }) {
			return
		}
		next := w.last
		next.MeetingCalls = append(slices.Clone(w.last.MeetingCalls), e.Call)
		w.last = next
	default:
		return
	}
	if w.OnSnapshot != nil {
		w.OnSnapshot(w.last)
	}
}
