// Package api implements the HTTP REST API and the admin live event feed.
//
// Each role has its own route family (/student, /teacher, /admin) with the
// same account lifecycle endpoints: sign-up, login, token refresh, password
// change and reset, and the /me profile. On top of that students read their
// grades, teachers record and edit grades in the subjects they teach, and
// admins manage accounts, subjects and the audit trail.
//
// # Authentication
//
// Protected routes take "Authorization: Bearer <access token>". A missing,
// expired or unknown token, or one issued for another role, is rejected
// with 401. Refresh and change-password take the refresh
// token instead. The live feed at /admin/events takes the access token in
// the token query parameter.
//
// # Caching
//
// Read endpoints are cache-aside through a cache.Cache and carry an
// X-Cache header. Writes invalidate every key that renders the changed
// data.
package api
