package auth

import "errors"

// Sentinel errors for auth operations. Every one of them is a client-facing
// condition; the API layer maps them to status codes with errors.Is.
var (
	ErrAlreadyExists        = errors.New("account already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrNotApproved          = errors.New("account is waiting for approval")
	ErrUnauthenticated      = errors.New("could not validate credentials")
	ErrRoleMismatch         = errors.New("token role does not match this endpoint")
	ErrStaleToken           = errors.New("invalid token version")
	ErrInvalidOrExpiredLink = errors.New("invalid or expired link")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("insufficient permissions")
	ErrTokenExpired         = errors.New("token has expired")
	ErrTokenInvalid         = errors.New("invalid token")
	ErrInvalidRole          = errors.New("invalid role")
)
