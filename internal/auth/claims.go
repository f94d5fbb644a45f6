package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token lifetimes.
const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims is the JWT payload. Access tokens carry {sub, role, exp};
// refresh tokens additionally carry the account's token version.
type Claims struct {
	jwt.RegisteredClaims
	Role    Role `json:"role"`
	Version *int `json:"version,omitempty"`
}

// TokenConfig configures a TokenCodec.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string // falls back to AccessSecret when empty
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// Now overrides the clock. Tests use it to issue already-expired tokens.
	Now func() time.Time
}

// TokenCodec signs and verifies HS256 access and refresh tokens.
// Decoding has no side effects; revocation is checked by the caller against
// the account's token version.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenCodec builds a codec, applying default TTLs for zero values.
func NewTokenCodec(cfg TokenConfig) *TokenCodec {
	c := &TokenCodec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           cfg.Now,
	}
	if len(c.refreshSecret) == 0 {
		c.refreshSecret = c.accessSecret
	}
	if c.accessTTL <= 0 {
		c.accessTTL = defaultAccessTTL
	}
	if c.refreshTTL <= 0 {
		c.refreshTTL = defaultRefreshTTL
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// GenerateAccessToken issues a short-lived token for subject (the account email).
func (c *TokenCodec) GenerateAccessToken(subject string, role Role) (string, error) {
	signed, err := c.sign(subject, role, nil, c.accessTTL, c.accessSecret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// GenerateRefreshToken issues a refresh token bound to the account's current
// token version.
func (c *TokenCodec) GenerateRefreshToken(subject string, role Role, version int) (string, error) {
	signed, err := c.sign(subject, role, &version, c.refreshTTL, c.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("signing refresh token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates an access token's signature and expiry.
func (c *TokenCodec) ParseAccessToken(tokenString string) (*Claims, error) {
	return c.parse(tokenString, c.accessSecret)
}

// ParseRefreshToken validates a refresh token's signature and expiry.
// A token without a version claim still parses; callers reject it.
func (c *TokenCodec) ParseRefreshToken(tokenString string) (*Claims, error) {
	return c.parse(tokenString, c.refreshSecret)
}

func (c *TokenCodec) sign(subject string, role Role, version *int, ttl time.Duration, secret []byte) (string, error) {
	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role:    role,
		Version: version,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (c *TokenCodec) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrTokenInvalid)
	}

	return claims, nil
}
