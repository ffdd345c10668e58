package server

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"agent_office/internal/domain"
)

// stream pushes the current snapshot on connect, every bus event as it
// happens, and a fresh snapshot whenever the store version moves.
func (h *handler) stream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	locale := h.locale(c)

	var lastVersion int64 = -1
	pushSnapshot := func() bool {
		version, err := h.opts.Store.Version(ctx)
		if err != nil {
			h.opts.Logger.Printf("stream version: %v", err)
			return true
		}
		if version == lastVersion {
			return true
		}
		snap, err := h.opts.Store.Snapshot(ctx, locale)
		if err != nil {
			h.opts.Logger.Printf("stream snapshot: %v", err)
			return true
		}
		lastVersion = snap.Version
		if err := writeEvent(c.Writer, domain.SnapshotEvent{Snapshot: snap}); err != nil {
			return false
		}
		c.Writer.Flush()
		return true
	}

	var events <-chan domain.Event
	if h.opts.Bus != nil {
		id := subscriberID()
		events = h.opts.Bus.Register(id)
		defer h.opts.Bus.Unregister(id)
	}

	if !pushSnapshot() {
		return
	}

	ticker := time.NewTicker(h.opts.StreamInterval)
	heartbeat := time.NewTicker(h.opts.Heartbeat)
	defer ticker.Stop()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind() != domain.EventKindSnapshot {
				if err := writeEvent(c.Writer, ev); err != nil {
					return
				}
				c.Writer.Flush()
			}
			if !pushSnapshot() {
				return
			}
		case <-ticker.C:
			if !pushSnapshot() {
				return
			}
		}
	}
}

// writeEvent frames an office event as SSE; the data line is the event
// envelope so clients decode it with domain.DecodeEvent.
func writeEvent(w io.Writer, ev domain.Event) error {
	raw, err := domain.EncodeEvent(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind(), raw)
	return err
}

func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
