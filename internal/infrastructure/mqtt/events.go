package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/schoolhub-core/internal/events"
)

// JSONPublisher is the part of *Client the event sink needs.
type JSONPublisher interface {
	PublishJSON(topic string, v any, qos byte) error
}

// EventSink mirrors bus events to the broker.
type EventSink struct {
	pub JSONPublisher
	qos byte
}

// NewEventSink returns a sink publishing each event to Topics.Event.
func NewEventSink(pub JSONPublisher, qos byte) *EventSink {
	return &EventSink{pub: pub, qos: qos}
}

// Handle implements events.Sink.
func (s *EventSink) Handle(_ context.Context, e events.Event) error {
	return s.pub.PublishJSON(Topics{}.Event(e.Role, string(e.Type)), e, s.qos)
}

// SubscribeEvents subscribes to every event topic and passes decoded events
// to fn. Payloads that do not decode are reported as handler errors.
func (c *Client) SubscribeEvents(qos byte, fn func(events.Event)) error {
	return c.Subscribe(Topics{}.AllEvents(), qos, func(topic string, payload []byte) error {
		e, err := DecodeEvent(topic, payload)
		if err != nil {
			return err
		}
		fn(e)
		return nil
	})
}

// DecodeEvent parses an event document received on topic. The role and type
// in the topic fill in fields missing from the payload.
func DecodeEvent(topic string, payload []byte) (events.Event, error) {
	role, eventType, err := ParseEventTopic(topic)
	if err != nil {
		return events.Event{}, err
	}

	var e events.Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return events.Event{}, fmt.Errorf("decoding event on %s: %w", topic, err)
	}
	if e.Role == "" {
		e.Role = role
	}
	if e.Type == "" {
		e.Type = events.Type(eventType)
	}
	return e, nil
}
