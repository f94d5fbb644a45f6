// Package auth provides authentication and authorisation for schoolhub.
//
// Accounts come in three roles (student, teacher, admin), each stored in its
// own table and served by its own Service:
//   - bcrypt password hashing
//   - HS256 access tokens {sub, role, exp} and refresh tokens that also
//     carry the account's token_version
//   - refresh rotation: every refresh and password change increments
//     token_version, which revokes all earlier refresh tokens
//   - an approval gate on student and teacher logins
//   - single-use password-reset tickets delivered by email
//
// There is no token blacklist. Access tokens are stateless and stay valid
// until they expire; the Guard only checks signature, expiry and role.
package auth
