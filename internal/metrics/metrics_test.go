package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/schoolhub-core/internal/events"
)

func TestObserveHTTP(t *testing.T) {
	m := New()

	m.ObserveHTTP(http.MethodPost, "/{role}/login", http.StatusOK, 15*time.Millisecond)
	m.ObserveHTTP(http.MethodPost, "/{role}/login", http.StatusOK, 5*time.Millisecond)
	m.ObserveHTTP(http.MethodPost, "/{role}/login", http.StatusTooManyRequests, time.Millisecond)

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/{role}/login", "200")); got != 2 {
		t.Errorf("requests_total{status=200} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/{role}/login", "429")); got != 1 {
		t.Errorf("requests_total{status=429} = %v, want 1", got)
	}
}

func TestHandle_CountsEvents(t *testing.T) {
	m := New()
	ctx := context.Background()

	for range 3 {
		if err := m.Handle(ctx, events.Event{Type: events.TypeLogin, Role: "teacher"}); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
	}

	if got := testutil.ToFloat64(m.Events.WithLabelValues("login", "teacher")); got != 3 {
		t.Errorf("events_total{login,teacher} = %v, want 3", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", "/health", 200, time.Millisecond)
	m.ObserveRateLimited("/{role}/login")
	m.ObserveEmail("sent")
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.ObserveRateLimited("/{role}/login")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "schoolhub_rate_limited_total") {
		t.Error("exposition should contain schoolhub_rate_limited_total")
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("exposition should contain Go runtime metrics")
	}
}
