package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownEventKind = errors.New("unknown event kind")
	ErrMalformedEvent   = errors.New("malformed event")
)

type EventKind string

const (
	EventKindSnapshot    EventKind = "snapshot"
	EventKindDelivery    EventKind = "cross_dept_delivery"
	EventKindMeetingCall EventKind = "meeting_call"
)

// Event is one frame of the push channel. Exactly one of the concrete
// types below implements it.
type Event interface {
	Kind() EventKind
}

type SnapshotEvent struct {
	Snapshot Snapshot
}

type DeliveryEvent struct {
	Delivery CrossDeptDelivery
}

type MeetingCallEvent struct {
	Call MeetingCall
}

func (SnapshotEvent) Kind() EventKind    { return EventKindSnapshot }
func (DeliveryEvent) Kind() EventKind    { return EventKindDelivery }
func (MeetingCallEvent) Kind() EventKind { return EventKindMeetingCall }

type Envelope struct {
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func EncodeEvent(ev Event) ([]byte, error) {
	var payload any
	switch e := ev.(type) {
	case SnapshotEvent:
		payload = e.Snapshot
	case DeliveryEvent:
		payload = e.Delivery
	case MeetingCallEvent:
		payload = e.Call
	default:
		return nil, fmt.Errorf("encode event %T: %w", ev, ErrUnknownEventKind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode event payload: %w", err)
	}
	return json.Marshal(Envelope{Kind: ev.Kind(), Payload: raw})
}

func DecodeEvent(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Kind {
	case EventKindSnapshot:
		var snap Snapshot
		if err := json.Unmarshal(env.Payload, &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		return SnapshotEvent{Snapshot: snap}, nil
	case EventKindDelivery:
		var d CrossDeptDelivery
		if err := json.Unmarshal(env.Payload, &d); err != nil {
			return nil, fmt.Errorf("decode delivery: %w", err)
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		return DeliveryEvent{Delivery: d}, nil
	case EventKindMeetingCall:
		var c MeetingCall
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return nil, fmt.Errorf("decode meeting call: %w", err)
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return MeetingCallEvent{Call: c}, nil
	default:
		return nil, fmt.Errorf("event kind %q: %w", env.Kind, ErrUnknownEventKind)
	}
}

func (d CrossDeptDelivery) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("delivery without id: %w", ErrMalformedEvent)
	}
	if strings.TrimSpace(d.FromAgentID) == "" || strings.TrimSpace(d.ToAgentID) == "" {
		return fmt.Errorf("delivery %s without endpoints: %w", d.ID, ErrMalformedEvent)
	}
	return nil
}

func (c MeetingCall) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("meeting call without id: %w", ErrMalformedEvent)
	}
	if strings.TrimSpace(c.FromAgentID) == "" {
		return fmt.Errorf("meeting call %s without agent: %w", c.ID, ErrMalformedEvent)
	}
	switch c.Action {
	case MeetingActionArrive, MeetingActionSpeak, MeetingActionDismiss:
		return nil
	default:
		return fmt.Errorf("meeting call %s action %q: %w", c.ID, c.Action, ErrUnknownEventKind)
	}
}
