// Package audit keeps a persistent trail of security-relevant activity:
// sign-ups, logins, password changes and resets, account approval and
// deletion, and subject and grade changes.
//
// Entries are written by the Sink, which subscribes to the event bus, and
// read back by the admin API.
package audit
