package influxdb

import (
	"context"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/nerrad567/schoolhub-core/internal/events"
)

// Measurement names.
const (
	MeasurementAuth     = "auth_events"
	MeasurementGrades   = "grades"
	MeasurementAccounts = "account_events"
)

// PointWriter is the part of *Client the sink needs.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// EventSink writes one point per bus event.
type EventSink struct {
	w PointWriter
}

// NewEventSink returns a sink writing to w.
func NewEventSink(w PointWriter) *EventSink {
	return &EventSink{w: w}
}

// Handle implements events.Sink. Writes are asynchronous, so it never fails.
func (s *EventSink) Handle(_ context.Context, e events.Event) error {
	if p := PointForEvent(e); p != nil {
		s.w.WritePoint(p)
	}
	return nil
}

// PointForEvent maps an event to its point, or nil when the event carries
// nothing worth recording (a grade event without a numeric value).
func PointForEvent(e events.Event) *write.Point {
	switch e.Type {
	case events.TypeLogin, events.TypeLoginFailed:
		outcome := "success"
		if e.Type == events.TypeLoginFailed {
			outcome = "failure"
		}
		tags := map[string]string{"role": e.Role, "outcome": outcome}
		if reason, ok := e.Details["reason"].(string); ok {
			tags["reason"] = reason
		}
		return write.NewPoint(MeasurementAuth, tags, map[string]any{"count": 1}, e.At)

	case events.TypeGradeRecorded, events.TypeGradeEdited, events.TypeGradeDeleted:
		value, ok := numeric(e.Details["value"])
		if !ok {
			return nil
		}
		subject, _ := e.Details["subject"].(string)
		return write.NewPoint(MeasurementGrades,
			map[string]string{"subject": subject, "action": string(e.Type)},
			map[string]any{"value": value, "student_id": e.EntityID},
			e.At)

	default:
		return write.NewPoint(MeasurementAccounts,
			map[string]string{"role": e.Role, "type": string(e.Type)},
			map[string]any{"count": 1},
			e.At)
	}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
