package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/schoolhub-core/internal/events"
)

// RequestPasswordReset stores a single-use reset ticket for the account
// registered under email and queues the link for delivery. Unknown emails
// fail with ErrNotFound. Delivery failures are logged, never returned.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	token := uuid.NewString()
	expire := s.now().Add(s.resetTTL)
	if err := s.accounts.SetResetToken(ctx, account.ID, token, expire); err != nil {
		return err
	}

	s.publish(ctx, events.TypePasswordResetRequested, account.ID, account.Email, nil)

	if s.mailer == nil {
		s.logger.Warn("no mailer configured, reset link not sent", "account_id", account.ID)
		return nil
	}
	if err := s.mailer.SendPasswordReset(ctx, account.Email, account.DisplayName(), s.ResetLink(token)); err != nil {
		s.logger.Error("queueing password reset email failed", "account_id", account.ID, "error", err)
	}
	return nil
}

// ConfirmPasswordReset redeems a reset ticket: the password is replaced,
// token_version incremented and the ticket cleared.
func (s *Service) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" {
		return ErrInvalidOrExpiredLink
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	account, err := s.accounts.ConsumeResetToken(ctx, resetToken, hash, s.now())
	if err != nil {
		return err
	}

	s.logger.Info("password reset", "account_id", account.ID)
	s.publish(ctx, events.TypePasswordReset, account.ID, account.Email, map[string]any{"token_version": account.TokenVersion})
	return nil
}

// ResetLink builds the link mailed for a reset ticket.
func (s *Service) ResetLink(token string) string {
	return fmt.Sprintf("%s/%s/password-resetting/%s", strings.TrimRight(s.hostname, "/"), s.role, token)
}
