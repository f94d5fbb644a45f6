package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for the seed admin password.
const seedPasswordBytes = 16

// Seed admin identity. The username satisfies the six-character minimum.
const (
	SeedAdminUsername = "schooladmin"
	SeedAdminEmail    = "admin@schoolhub.local"
)

// SeedAdmin creates the initial admin account on first boot if no admins
// exist, since admin sign-up itself requires an admin token.
// The generated password is logged and must be changed immediately.
// Returns the generated password (empty string if seeding was skipped).
func SeedAdmin(ctx context.Context, admins AccountRepository, hasher Hasher, logger *slog.Logger) (string, error) {
	if admins.Role() != RoleAdmin {
		return "", fmt.Errorf("%w: seeding needs the admin repository", ErrInvalidRole)
	}

	count, err := admins.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking admin count: %w", err)
	}

	if count > 0 {
		logger.Info("admins exist, skipping admin seed")
		return "", nil
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	// Upper-case prefix keeps the password within the mixed-case rule
	// enforced on later password changes.
	password := "Sh" + hex.EncodeToString(passwordBytes)[:24]

	hash, err := hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &Account{
		Role:         RoleAdmin,
		Username:     SeedAdminUsername,
		Email:        SeedAdminEmail,
		PasswordHash: hash,
	}
	if err := admins.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("seed admin account created",
		"username", SeedAdminUsername,
		"password", password,
		"action_required", "change this password immediately",
	)

	return password, nil
}
