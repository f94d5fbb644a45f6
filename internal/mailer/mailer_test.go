package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/nerrad567/schoolhub-core/internal/infrastructure/config"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/queue"
)

type recordingSender struct {
	mu   sync.Mutex
	jobs []Job
	err  error
	done chan struct{}
}

func (s *recordingSender) Send(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	if s.done != nil {
		s.done <- struct{}{}
	}
	return s.err
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *countingObserver) ObserveEmail(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[outcome]++
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnqueueAndDeliver(t *testing.T) {
	q := queue.NewInMemory(8)
	sender := &recordingSender{done: make(chan struct{}, 1)}
	observer := &countingObserver{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWorker(q, sender, quietLogger(), observer).Run(ctx) }()

	link := "https://school.example.com/student/password-resetting/abc"
	if err := NewEnqueuer(q).SendPasswordReset(ctx, "jane@x.com", "janedoe", link); err != nil {
		t.Fatalf("SendPasswordReset() error = %v", err)
	}

	select {
	case <-sender.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.jobs) != 1 {
		t.Fatalf("delivered %d jobs, want 1", len(sender.jobs))
	}
	job := sender.jobs[0]
	if job.To != "jane@x.com" || job.Kind != "password_reset" {
		t.Errorf("job = %+v, want password_reset to jane@x.com", job)
	}
	if !strings.Contains(job.Body, link) || !strings.Contains(job.Body, "janedoe") {
		t.Errorf("body should contain the name and link, got %q", job.Body)
	}
	if !strings.HasPrefix(job.ID, "mail-") {
		t.Errorf("ID = %q, want mail- prefix", job.ID)
	}
	if observer.outcomes["sent"] != 1 {
		t.Errorf("sent outcomes = %d, want 1", observer.outcomes["sent"])
	}
}

func TestWorker_FailureIsCounted(t *testing.T) {
	q := queue.NewInMemory(8)
	sender := &recordingSender{err: errors.New("relay down"), done: make(chan struct{}, 1)}
	observer := &countingObserver{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewWorker(q, sender, quietLogger(), observer).Run(ctx) //nolint:errcheck // stopped by cancel

	if err := NewEnqueuer(q).Enqueue(ctx, Job{To: "a@b.cd", Subject: "s", Body: "b"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	select {
	case <-sender.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery attempt")
	}
	cancel()

	// The observer runs after Send returns; wait briefly for it.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		observer.mu.Lock()
		n := observer.outcomes["failed"]
		observer.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("failed outcome was not observed")
}

func TestLogSender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mail", "email.log")
	s := NewLogSender(path, "noreply@schoolhub.local")

	job := Job{ID: "mail-1", To: "jane@x.com", Subject: "Password reset", Body: "hello\nworld", CreatedAt: time.Now()}
	if err := s.Send(context.Background(), job); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := s.Send(context.Background(), job); err != nil {
		t.Fatalf("Send() second error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading mail log: %v", err)
	}
	if got := strings.Count(string(data), "Subject: Password reset"); got != 2 {
		t.Errorf("mail log has %d messages, want 2", got)
	}
	if !strings.Contains(string(data), "jane@x.com") {
		t.Error("mail log is missing the recipient")
	}
}

func TestLogSender_InvalidRecipient(t *testing.T) {
	s := NewLogSender(filepath.Join(t.TempDir(), "email.log"), "noreply@schoolhub.local")
	if err := s.Send(context.Background(), Job{To: "not an address", Subject: "x"}); err == nil {
		t.Error("Send() to an invalid address should fail")
	}
}

type recordingClient struct {
	msgs []*mail.Msg
	err  error
}

func (c *recordingClient) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	c.msgs = append(c.msgs, msgs...)
	return c.err
}

func TestSMTPSender(t *testing.T) {
	s, err := NewSMTPSender(config.MailConfig{
		From: "noreply@schoolhub.local",
		SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: 2525, Username: "u", Password: "p"},
	})
	if err != nil {
		t.Fatalf("NewSMTPSender() error = %v", err)
	}
	if s.timeout != defaultSMTPTimeout {
		t.Errorf("timeout = %v, want %v", s.timeout, defaultSMTPTimeout)
	}

	client := &recordingClient{}
	s.client = client

	if err := s.Send(context.Background(), Job{ID: "mail-1", To: "jane@x.com", Subject: "Hi", Body: "body"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(client.msgs) != 1 {
		t.Fatalf("messages sent = %d, want 1", len(client.msgs))
	}

	var buf bytes.Buffer
	if _, err := client.msgs[0].WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Subject: Hi\r\n") {
		t.Errorf("message missing subject header: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "jane@x.com") {
		t.Errorf("message missing recipient: %q", buf.String())
	}

	client.err = errors.New("relay refused")
	if err := s.Send(context.Background(), Job{To: "jane@x.com", Subject: "Hi"}); err == nil {
		t.Error("Send() should report the relay error")
	}
}

// TestSMTPSender_SilentServerTimesOut points the sender at a listener that
// accepts connections and never sends a greeting.
func TestSMTPSender_SilentServerTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	var conns []net.Conn
	var mu sync.Mutex
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	s, err := NewSMTPSender(config.MailConfig{
		From: "noreply@schoolhub.local",
		SMTP: config.SMTPConfig{Host: "127.0.0.1", Port: port, Timeout: 1},
	})
	if err != nil {
		t.Fatalf("NewSMTPSender() error = %v", err)
	}

	done := make(chan error, 1)
	start := time.Now()
	go func() {
		done <- s.Send(context.Background(), Job{To: "jane@x.com", Subject: "Hi", Body: "body"})
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Send() to a silent server should fail")
		}
		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Errorf("Send() took %v, want about 1s", elapsed)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Send() did not give up on a silent server")
	}
}

func TestNewSender(t *testing.T) {
	sender, err := NewSender(config.MailConfig{LogPath: "x.log"})
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	if _, ok := sender.(*LogSender); !ok {
		t.Error("NewSender() without SMTP host should return *LogSender")
	}

	sender, err = NewSender(config.MailConfig{SMTP: config.SMTPConfig{Host: "h"}})
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	if _, ok := sender.(*SMTPSender); !ok {
		t.Error("NewSender() with SMTP host should return *SMTPSender")
	}
}
