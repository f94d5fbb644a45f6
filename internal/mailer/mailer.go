package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/schoolhub-core/internal/infrastructure/queue"
)

// JobType is the queue message type for email jobs.
const JobType = "email"

// Job is one email to deliver.
type Job struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Enqueuer publishes email jobs.
type Enqueuer struct {
	queue queue.Queue
}

// NewEnqueuer creates an enqueuer on q.
func NewEnqueuer(q queue.Queue) *Enqueuer {
	return &Enqueuer{queue: q}
}

// Enqueue publishes job, assigning an ID and timestamp when missing.
func (e *Enqueuer) Enqueue(ctx context.Context, job Job) error {
	if job.ID == "" {
		job.ID = "mail-" + uuid.NewString()[:8]
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding email job: %w", err)
	}
	if err := e.queue.Publish(ctx, queue.Message{Type: JobType, Body: body}); err != nil {
		return fmt.Errorf("queueing email job: %w", err)
	}
	return nil
}

// SendPasswordReset queues the password-reset email for a single account.
func (e *Enqueuer) SendPasswordReset(ctx context.Context, to, name, link string) error {
	return e.Enqueue(ctx, Job{
		Kind:    "password_reset",
		To:      to,
		Subject: "Password reset",
		Body:    ResetBody(name, link),
	})
}

// ResetBody renders the password-reset message.
func ResetBody(name, link string) string {
	return fmt.Sprintf(`Hello %s,

Somebody asked to reset the password of your account.
Follow this link within 15 minutes to choose a new one:

%s

If this wasn't you, ignore this email and your password stays the same.
`, name, link)
}
