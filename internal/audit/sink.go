package audit

import (
	"context"
	"strconv"

	"github.com/nerrad567/schoolhub-core/internal/events"
)

// SourceAPI marks entries produced by API requests.
const SourceAPI = "api"

// skipped lists event types too frequent to be worth an audit row.
var skipped = map[events.Type]bool{
	events.TypeTokenRefreshed: true,
}

// Sink writes bus events to a Repository.
type Sink struct {
	repo Repository
}

// NewSink returns a sink writing to repo.
func NewSink(repo Repository) *Sink {
	return &Sink{repo: repo}
}

// Handle implements events.Sink.
func (s *Sink) Handle(ctx context.Context, e events.Event) error {
	if skipped[e.Type] {
		return nil
	}
	return s.repo.Create(ctx, EntryFromEvent(e))
}

// EntryFromEvent converts an event to an audit entry.
func EntryFromEvent(e events.Event) *Entry {
	entry := &Entry{
		Action:     string(e.Type),
		EntityType: e.Role,
		Actor:      e.Actor,
		Source:     SourceAPI,
		Details:    e.Details,
		CreatedAt:  e.At,
	}
	if e.EntityID != 0 {
		entry.EntityID = strconv.FormatInt(e.EntityID, 10)
	}
	return entry
}
