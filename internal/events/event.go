package events

import (
	"context"
	"time"
)

// Type names what happened.
type Type string

// Event types published by the auth and school services.
const (
	TypeSignUp                 Type = "signup"
	TypeLogin                  Type = "login"
	TypeLoginFailed            Type = "login_failed"
	TypeTokenRefreshed         Type = "token_refreshed"
	TypePasswordChanged        Type = "password_changed"
	TypePasswordResetRequested Type = "password_reset_requested"
	TypePasswordReset          Type = "password_reset"
	TypeProfileUpdated         Type = "profile_updated"
	TypeAccountDeleted         Type = "account_deleted"
	TypeAccountApproved        Type = "account_approved"
	TypeAccountDisapproved     Type = "account_disapproved"
	TypeSubjectCreated         Type = "subject_created"
	TypeSubjectDeleted         Type = "subject_deleted"
	TypeSubjectAssigned        Type = "subject_assigned"
	TypeGradeRecorded          Type = "grade_recorded"
	TypeGradeEdited            Type = "grade_edited"
	TypeGradeDeleted           Type = "grade_deleted"
)

// Event is a single domain event.
type Event struct {
	Type Type `json:"type"`
	// Role is the account role the event concerns ("student", "teacher",
	// "admin") or "subject" for subject events.
	Role     string         `json:"role"`
	EntityID int64          `json:"entity_id,omitempty"`
	Actor    string         `json:"actor,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	At       time.Time      `json:"at"`
}

// Sink receives dispatched events.
type Sink interface {
	Handle(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Event) error

// Handle calls f(ctx, e).
func (f SinkFunc) Handle(ctx context.Context, e Event) error {
	return f(ctx, e)
}
