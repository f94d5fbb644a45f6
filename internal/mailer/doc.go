// Package mailer delivers outbound email asynchronously.
//
// The API side uses Enqueuer, which turns a password-reset request into a
// Job on the shared queue and returns at once. Worker consumes jobs and hands
// them to a Sender: SMTP when a relay is configured, otherwise a plain-text
// mail log file for development.
package mailer
