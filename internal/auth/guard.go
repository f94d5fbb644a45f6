package auth

import (
	"context"
	"errors"
	"fmt"
)

// Guard resolves bearer access tokens to accounts.
type Guard struct {
	codec    *TokenCodec
	accounts map[Role]AccountRepository
}

// NewGuard creates a guard over the given per-role repositories.
func NewGuard(codec *TokenCodec, repos ...AccountRepository) *Guard {
	g := &Guard{codec: codec, accounts: make(map[Role]AccountRepository, len(repos))}
	for _, r := range repos {
		g.accounts[r.Role()] = r
	}
	return g
}

// Authenticate decodes an access token, checks its role against required
// and loads the account its subject names. It does not look at
// token_version: access tokens stay valid until they expire.
func (g *Guard) Authenticate(ctx context.Context, token string, required Role) (*Account, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := g.codec.ParseAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if claims.Role != required {
		return nil, ErrRoleMismatch
	}

	repo, ok := g.accounts[required]
	if !ok {
		return nil, ErrUnauthenticated
	}

	account, err := repo.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return account, nil
}
