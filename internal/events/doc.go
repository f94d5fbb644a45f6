// Package events fans out account and grade events to the optional
// delivery sinks: MQTT, InfluxDB, the audit log, Prometheus counters and
// the admin WebSocket feed.
//
// Services call Bus.Publish, which never blocks and never returns an error.
// A single dispatcher goroutine (Bus.Run) hands each event to every sink in
// subscription order. Sink failures are logged and otherwise ignored.
package events
