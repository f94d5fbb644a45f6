package influxdb

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/nerrad567/schoolhub-core/internal/events"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/config"
)

type capturingWriter struct {
	points []*write.Point
}

func (w *capturingWriter) WritePoint(p *write.Point) {
	w.points = append(w.points, p)
}

func tagValue(p *write.Point, key string) string {
	for _, tag := range p.TagList() {
		if tag.Key == key {
			return tag.Value
		}
	}
	return ""
}

func fieldValue(p *write.Point, key string) any {
	for _, field := range p.FieldList() {
		if field.Key == key {
			return field.Value
		}
	}
	return nil
}

var at = time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)

func TestPointForEvent_Login(t *testing.T) {
	p := PointForEvent(events.Event{
		Type:    events.TypeLoginFailed,
		Role:    "student",
		Details: map[string]any{"reason": "password"},
		At:      at,
	})
	if p.Name() != MeasurementAuth {
		t.Fatalf("Name() = %q, want %q", p.Name(), MeasurementAuth)
	}
	if tagValue(p, "outcome") != "failure" || tagValue(p, "reason") != "password" || tagValue(p, "role") != "student" {
		t.Errorf("tags = %+v", p.TagList())
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}

	ok := PointForEvent(events.Event{Type: events.TypeLogin, Role: "admin", At: at})
	if tagValue(ok, "outcome") != "success" {
		t.Errorf("login outcome = %q", tagValue(ok, "outcome"))
	}
}

func TestPointForEvent_Grade(t *testing.T) {
	p := PointForEvent(events.Event{
		Type:     events.TypeGradeRecorded,
		Role:     "student",
		EntityID: 12,
		Details:  map[string]any{"subject": "MATH", "number": 1, "value": 4.5},
		At:       at,
	})
	if p == nil {
		t.Fatal("PointForEvent() = nil")
	}
	if p.Name() != MeasurementGrades || tagValue(p, "subject") != "MATH" {
		t.Errorf("point = %s %+v", p.Name(), p.TagList())
	}
	if v := fieldValue(p, "value"); v != 4.5 {
		t.Errorf("value field = %v, want 4.5", v)
	}

	if PointForEvent(events.Event{Type: events.TypeGradeEdited, Details: map[string]any{"subject": "MATH"}}) != nil {
		t.Error("grade event without value produced a point")
	}
}

func TestPointForEvent_Default(t *testing.T) {
	p := PointForEvent(events.Event{Type: events.TypeAccountApproved, Role: "teacher", At: at})
	if p.Name() != MeasurementAccounts || tagValue(p, "type") != "account_approved" {
		t.Errorf("point = %s %+v", p.Name(), p.TagList())
	}
}

func TestEventSink(t *testing.T) {
	w := &capturingWriter{}
	sink := NewEventSink(w)

	_ = sink.Handle(context.Background(), events.Event{Type: events.TypeSignUp, Role: "student", At: at})
	_ = sink.Handle(context.Background(), events.Event{Type: events.TypeGradeDeleted, Details: map[string]any{}})

	if len(w.points) != 1 {
		t.Errorf("wrote %d points, want 1", len(w.points))
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(context.Background(), config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(context.Background(), config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1",
		Token:   "token",
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
}

func TestLiveWrite(t *testing.T) {
	url := os.Getenv("SCHOOLHUB_TEST_INFLUXDB")
	if url == "" {
		t.Skip("SCHOOLHUB_TEST_INFLUXDB not set")
	}
	client, err := Connect(context.Background(), config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         os.Getenv("SCHOOLHUB_TEST_INFLUXDB_TOKEN"),
		Org:           "schoolhub",
		Bucket:        "events",
		FlushInterval: 1,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	var writeErr error
	done := make(chan struct{}, 1)
	client.SetOnError(func(err error) {
		writeErr = err
		done <- struct{}{}
	})

	_ = NewEventSink(client).Handle(context.Background(), events.Event{Type: events.TypeLogin, Role: "student", At: time.Now()})
	client.Flush()

	select {
	case <-done:
		t.Errorf("write error = %v", writeErr)
	case <-time.After(200 * time.Millisecond):
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
