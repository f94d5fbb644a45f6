package mailer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nerrad567/schoolhub-core/internal/infrastructure/queue"
)

// Observer is told the outcome of every job ("sent" or "failed").
type Observer interface {
	ObserveEmail(outcome string)
}

// Worker consumes email jobs and delivers them.
type Worker struct {
	queue    queue.Queue
	sender   Sender
	logger   *slog.Logger
	observer Observer
}

// NewWorker creates a worker. observer may be nil.
func NewWorker(q queue.Queue, sender Sender, logger *slog.Logger, observer Observer) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{queue: q, sender: sender, logger: logger, observer: observer}
}

// Run processes jobs until ctx is cancelled. Delivery failures are logged
// and the job is dropped; callers never see them.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.queue.Consume(ctx)
	if err != nil {
		return err
	}

	w.logger.Info("email worker started")
	for msg := range messages {
		if msg.Type != JobType {
			w.logger.Warn("skipping unknown queue message", "type", msg.Type)
			continue
		}

		var job Job
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			w.logger.Error("decoding email job failed", "error", err)
			w.observe("failed")
			continue
		}

		if err := w.sender.Send(ctx, job); err != nil {
			w.logger.Error("sending email failed", "job_id", job.ID, "kind", job.Kind, "to", job.To, "error", err)
			w.observe("failed")
			continue
		}

		w.logger.Info("email sent", "job_id", job.ID, "kind", job.Kind, "to", job.To)
		w.observe("sent")
	}

	w.logger.Info("email worker stopped")
	return nil
}

func (w *Worker) observe(outcome string) {
	if w.observer != nil {
		w.observer.ObserveEmail(outcome)
	}
}
