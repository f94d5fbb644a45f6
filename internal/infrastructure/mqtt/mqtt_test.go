package mqtt

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/schoolhub-core/internal/events"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/config"
)

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"event", Topics{}.Event("teacher", "grade_recorded"), "schoolhub/events/teacher/grade_recorded"},
		{"event without role", Topics{}.Event("", "subject_created"), "schoolhub/events/system/subject_created"},
		{"role events", Topics{}.RoleEvents("student"), "schoolhub/events/student/+"},
		{"all events", Topics{}.AllEvents(), "schoolhub/events/#"},
		{"status", Topics{}.SystemStatus(), "schoolhub/system/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseEventTopic(t *testing.T) {
	role, typ, err := ParseEventTopic("schoolhub/events/admin/account_approved")
	if err != nil {
		t.Fatalf("ParseEventTopic() error = %v", err)
	}
	if role != "admin" || typ != "account_approved" {
		t.Errorf("ParseEventTopic() = %q, %q", role, typ)
	}

	for _, bad := range []string{
		"",
		"schoolhub/system/status",
		"other/events/admin/login",
		"schoolhub/events/admin",
		"schoolhub/events//login",
		"schoolhub/events/admin/login/extra",
	} {
		if _, _, err := ParseEventTopic(bad); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("ParseEventTopic(%q) error = %v, want ErrInvalidTopic", bad, err)
		}
	}
}

func TestValidPublishTopic(t *testing.T) {
	if !validPublishTopic("schoolhub/events/student/login") {
		t.Error("plain topic rejected")
	}
	for _, bad := range []string{"", "schoolhub/events/#", "schoolhub/+/status"} {
		if validPublishTopic(bad) {
			t.Errorf("validPublishTopic(%q) = true", bad)
		}
	}
}

func TestBrokerURL(t *testing.T) {
	cfg := config.MQTTConfig{Broker: config.MQTTBrokerConfig{Host: "broker", Port: 1883}}
	if got := brokerURL(cfg); got != "tcp://broker:1883" {
		t.Errorf("brokerURL() = %q", got)
	}
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	if got := brokerURL(cfg); got != "ssl://broker:8883" {
		t.Errorf("brokerURL() with TLS = %q", got)
	}
}

func TestStatusPayload(t *testing.T) {
	online := statusPayload("node-1", "online", "")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, `"client_id":"node-1"`) {
		t.Errorf("online payload = %s", online)
	}
	if strings.Contains(online, "reason") {
		t.Errorf("online payload has a reason: %s", online)
	}

	offline := statusPayload("node-1", "offline", "graceful_shutdown")
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload = %s", offline)
	}
}

type capturedPublish struct {
	topic string
	v     any
	qos   byte
}

type fakePublisher struct {
	published []capturedPublish
	err       error
}

func (f *fakePublisher) PublishJSON(topic string, v any, qos byte) error {
	f.published = append(f.published, capturedPublish{topic, v, qos})
	return f.err
}

func TestEventSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewEventSink(pub, 1)

	e := events.Event{Type: events.TypeGradeRecorded, Role: "teacher", EntityID: 7}
	if err := sink.Handle(context.Background(), e); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.published))
	}
	got := pub.published[0]
	if got.topic != "schoolhub/events/teacher/grade_recorded" || got.qos != 1 {
		t.Errorf("published to %q qos %d", got.topic, got.qos)
	}

	pub.err = ErrNotConnected
	if err := sink.Handle(context.Background(), e); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Handle() error = %v, want ErrNotConnected", err)
	}
}

func TestDecodeEvent(t *testing.T) {
	e, err := DecodeEvent("schoolhub/events/student/login", []byte(`{"entity_id":3,"actor":"jane@school.test"}`))
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	if e.Role != "student" || e.Type != events.TypeLogin || e.EntityID != 3 {
		t.Errorf("DecodeEvent() = %+v", e)
	}

	if _, err := DecodeEvent("schoolhub/events/student/login", []byte(`{not json`)); err == nil {
		t.Error("DecodeEvent() accepted malformed payload")
	}
}

// brokerConfig returns a config for the broker named by SCHOOLHUB_TEST_MQTT
// (host:port), skipping the test when it is unset.
func brokerConfig(t *testing.T, clientID string) config.MQTTConfig {
	t.Helper()
	addr := os.Getenv("SCHOOLHUB_TEST_MQTT")
	if addr == "" {
		t.Skip("SCHOOLHUB_TEST_MQTT not set")
	}
	host, portStr, ok := strings.Cut(addr, ":")
	port, err := strconv.Atoi(portStr)
	if !ok || err != nil {
		t.Fatalf("SCHOOLHUB_TEST_MQTT = %q, want host:port", addr)
	}
	return config.MQTTConfig{
		Enabled:   true,
		Broker:    config.MQTTBrokerConfig{Host: host, Port: port, ClientID: clientID},
		QoS:       1,
		Reconnect: config.MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 5},
	}
}

func TestEventRoundTripLive(t *testing.T) {
	pubClient, err := Connect(brokerConfig(t, "schoolhub-test-pub"))
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	subClient, err := Connect(brokerConfig(t, "schoolhub-test-sub"))
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	received := make(chan events.Event, 1)
	if err := subClient.SubscribeEvents(1, func(e events.Event) { received <- e }); err != nil {
		t.Fatalf("SubscribeEvents() error = %v", err)
	}
	if subClient.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", subClient.SubscriptionCount())
	}
	time.Sleep(100 * time.Millisecond)

	sink := NewEventSink(pubClient, 1)
	sent := events.Event{Type: events.TypeSubjectCreated, Role: "admin", EntityID: 42}
	if err := sink.Handle(context.Background(), sent); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	select {
	case got := <-received:
		if got.Type != sent.Type || got.EntityID != 42 {
			t.Errorf("received %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	if err := pubClient.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c, err := Connect(brokerConfig(t, "schoolhub-test-validate"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	if err := c.Publish("schoolhub/events/#", nil, 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish(wildcard) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("schoolhub/test", nil, 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Publish("schoolhub/test", make([]byte, maxPayloadSize+1), 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish(oversized) error = %v, want ErrPublishFailed", err)
	}
	if err := c.Subscribe("schoolhub/test", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
}
