package mailer

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/nerrad567/schoolhub-core/internal/infrastructure/config"
)

// defaultSMTPTimeout bounds one delivery when the config leaves it unset.
const defaultSMTPTimeout = 10 * time.Second

// Sender delivers a single job.
type Sender interface {
	Send(ctx context.Context, job Job) error
}

// NewSender picks SMTP when a host is configured, otherwise the log file.
func NewSender(cfg config.MailConfig) (Sender, error) {
	if cfg.SMTP.Host != "" {
		return NewSMTPSender(cfg)
	}
	return NewLogSender(cfg.LogPath, cfg.From), nil
}

// smtpClient is the part of *mail.Client the sender uses.
type smtpClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPSender relays mail through an SMTP server. Every delivery, from dial
// to QUIT, must finish within the configured timeout.
type SMTPSender struct {
	from    string
	timeout time.Duration
	client  smtpClient
}

// NewSMTPSender builds a sender from the mail config. STARTTLS is used when
// the server offers it; PLAIN auth when a username is set.
func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	port := cfg.SMTP.Port
	if port == 0 {
		port = 587
	}
	timeout := time.Duration(cfg.SMTP.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(deadlineDialer(timeout)),
	}
	if cfg.SMTP.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTP.Username),
			mail.WithPassword(cfg.SMTP.Password),
		)
	}

	client, err := mail.NewClient(cfg.SMTP.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}
	return &SMTPSender{from: cfg.From, timeout: timeout, client: client}, nil
}

// deadlineDialer puts an absolute deadline on the connection so a server
// that accepts and then goes quiet cannot hold the worker.
func deadlineDialer(timeout time.Duration) mail.DialContextFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// Send delivers job, giving up after the sender's timeout.
func (s *SMTPSender) Send(ctx context.Context, job Job) error {
	msg, err := buildMessage(s.from, job)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", job.To, err)
	}
	return nil
}

// LogSender appends messages to a file instead of sending them.
type LogSender struct {
	path string
	from string
	mu   sync.Mutex
}

// NewLogSender creates a sender writing to path.
func NewLogSender(path, from string) *LogSender {
	return &LogSender{path: path, from: from}
}

// Send appends job to the mail log.
func (s *LogSender) Send(_ context.Context, job Job) error {
	msg, err := buildMessage(s.from, job)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("creating mail log directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening mail log: %w", err)
	}
	defer f.Close()

	if _, err := msg.WriteTo(f); err != nil {
		return fmt.Errorf("writing mail log: %w", err)
	}
	if _, err := fmt.Fprintf(f, "\n%s\n", strings.Repeat("-", 60)); err != nil {
		return fmt.Errorf("writing mail log: %w", err)
	}
	return nil
}

// buildMessage renders job as a plain-text message.
func buildMessage(from string, job Job) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(job.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", job.To, err)
	}
	msg.Subject(job.Subject)
	if !job.CreatedAt.IsZero() {
		msg.SetDateWithValue(job.CreatedAt)
	} else {
		msg.SetDate()
	}
	if job.ID != "" {
		msg.SetMessageIDWithValue(job.ID + "@schoolhub")
	}
	msg.SetBodyString(mail.TypeTextPlain, job.Body)
	return msg, nil
}
