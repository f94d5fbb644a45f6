package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nerrad567/schoolhub-core/internal/events"
)

// TokenTypeBearer is the token_type returned with every token pair.
const TokenTypeBearer = "bearer"

// ResetMailer delivers password-reset links. Implementations queue the
// message and return quickly.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to, name, link string) error
}

// ServiceDeps holds the collaborators of a Service.
type ServiceDeps struct {
	Accounts AccountRepository
	Codec    *TokenCodec
	Hasher   Hasher
	Mailer   ResetMailer // optional
	Events   *events.Bus // optional
	Logger   *slog.Logger

	// Hostname prefixes password-reset links, e.g. "https://school.example.com".
	Hostname string
	// ResetTTL is how long a reset link stays valid (default 15m).
	ResetTTL time.Duration
	// Now overrides the clock for reset expiry checks.
	Now func() time.Time
}

// Service implements the account lifecycle for one role. Build one per role
// with NewService; there is no role switch at call time.
type Service struct {
	role     Role
	accounts AccountRepository
	codec    *TokenCodec
	hasher   Hasher
	mailer   ResetMailer
	events   *events.Bus
	logger   *slog.Logger
	hostname string
	resetTTL time.Duration
	now      func() time.Time
}

// NewService creates the auth service for role.
func NewService(role Role, deps ServiceDeps) (*Service, error) {
	if _, ok := ParseRole(string(role)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if deps.Accounts == nil || deps.Codec == nil || deps.Hasher == nil {
		return nil, errors.New("auth service requires accounts, codec and hasher")
	}
	if deps.Accounts.Role() != role {
		return nil, fmt.Errorf("%w: repository serves %s, not %s", ErrInvalidRole, deps.Accounts.Role(), role)
	}

	s := &Service{
		role:     role,
		accounts: deps.Accounts,
		codec:    deps.Codec,
		hasher:   deps.Hasher,
		mailer:   deps.Mailer,
		events:   deps.Events,
		logger:   deps.Logger,
		hostname: deps.Hostname,
		resetTTL: deps.ResetTTL,
		now:      deps.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("role", string(role))
	if s.resetTTL <= 0 {
		s.resetTTL = 15 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Role returns the role this service manages.
func (s *Service) Role() Role {
	return s.role
}

// Accounts exposes the underlying repository for read-only listings.
func (s *Service) Accounts() AccountRepository {
	return s.accounts
}

// SignUp creates an account with token_version 1. Students and teachers
// start unapproved. No tokens are issued: the caller logs in separately.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*Account, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	account := &Account{
		Role:         s.role,
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		SchoolYear:   in.SchoolYear,
		PasswordHash: hash,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account created", "account_id", account.ID)
	s.publish(ctx, events.TypeSignUp, account.ID, account.Email, nil)
	return account, nil
}

// Login verifies credentials and issues an access/refresh token pair.
// Unknown accounts and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, in LoginInput) (*TokenPair, error) {
	account, err := s.accounts.GetByLogin(ctx, in.Login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.publish(ctx, events.TypeLoginFailed, 0, in.Login, map[string]any{"reason": "unknown"})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(in.Password, account.PasswordHash) {
		s.publish(ctx, events.TypeLoginFailed, account.ID, in.Login, map[string]any{"reason": "password"})
		return nil, ErrInvalidCredentials
	}

	if s.role.RequiresApproval() && !account.Approved {
		s.publish(ctx, events.TypeLoginFailed, account.ID, in.Login, map[string]any{"reason": "not_approved"})
		return nil, ErrNotApproved
	}

	pair, err := s.issuePair(account.Email, account.TokenVersion)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("login succeeded", "account_id", account.ID)
	s.publish(ctx, events.TypeLogin, account.ID, account.Email, nil)
	return pair, nil
}

// Refresh exchanges a valid refresh token for a new pair. The stored
// token_version is incremented so the presented token cannot be reused.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	account, version, err := s.verifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	next, err := s.accounts.RotateTokenVersion(ctx, account.ID, version)
	if err != nil {
		return nil, err
	}

	pair, err := s.issuePair(account.Email, next)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeTokenRefreshed, account.ID, account.Email, map[string]any{"token_version": next})
	return pair, nil
}

// ChangePassword validates the refresh token like Refresh, then stores the
// new password and increments token_version, revoking every refresh token
// issued so far, including the one presented.
func (s *Service) ChangePassword(ctx context.Context, refreshToken, newPassword string) error {
	account, version, err := s.verifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	next, err := s.accounts.UpdatePassword(ctx, account.ID, version, hash)
	if err != nil {
		return err
	}

	s.logger.Info("password changed", "account_id", account.ID)
	s.publish(ctx, events.TypePasswordChanged, account.ID, account.Email, map[string]any{"token_version": next})
	return nil
}

// DeleteAccount deletes targetID, or the actor's own account when targetID
// is zero or the actor's ID. Deleting someone else requires an admin actor.
func (s *Service) DeleteAccount(ctx context.Context, actor *Account, targetID int64) error {
	if actor == nil {
		return ErrUnauthenticated
	}

	self := actor.Role == s.role && (targetID == 0 || targetID == actor.ID)
	if self {
		targetID = actor.ID
	} else if actor.Role != RoleAdmin {
		return ErrForbidden
	}

	if err := s.accounts.Delete(ctx, targetID); err != nil {
		return err
	}

	s.logger.Info("account deleted", "account_id", targetID, "by", actor.Email)
	s.publish(ctx, events.TypeAccountDeleted, targetID, actor.Email, map[string]any{"self": self})
	return nil
}

// Profile returns the account with the given ID.
func (s *Service) Profile(ctx context.Context, id int64) (*Account, error) {
	return s.accounts.GetByID(ctx, id)
}

// UpdateProfile applies an owner's profile edit. Changing the email
// invalidates outstanding access tokens, since their subject is the email.
func (s *Service) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (*Account, error) {
	account, err := s.accounts.UpdateProfile(ctx, id, upd)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeProfileUpdated, account.ID, account.Email, nil)
	return account, nil
}

// verifyRefreshToken decodes a refresh token and checks it against the
// stored account. It returns the account and the version the token carries.
func (s *Service) verifyRefreshToken(ctx context.Context, token string) (*Account, int, error) {
	claims, err := s.codec.ParseRefreshToken(token)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if claims.Version == nil || claims.Role != s.role {
		return nil, 0, ErrUnauthenticated
	}

	account, err := s.accounts.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, 0, ErrInvalidCredentials
		}
		return nil, 0, err
	}

	if *claims.Version != account.TokenVersion {
		return nil, 0, ErrStaleToken
	}
	return account, *claims.Version, nil
}

func (s *Service) issuePair(subject string, version int) (*TokenPair, error) {
	access, err := s.codec.GenerateAccessToken(subject, s.role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.GenerateRefreshToken(subject, s.role, version)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: TokenTypeBearer}, nil
}

func (s *Service) publish(ctx context.Context, typ events.Type, id int64, actor string, details map[string]any) {
	s.events.Publish(ctx, events.Event{
		Type:     typ,
		Role:     string(s.role),
		EntityID: id,
		Actor:    actor,
		Details:  details,
	})
}
