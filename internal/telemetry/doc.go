// Package telemetry provides [behavior.Observer] implementations: prometheus
// metrics, a JSON lines execution log and a remote debug channel serving
// instance snapshots over HTTP.
//
// Observers run on the manager's goroutine. Anything read from another
// goroutine is copied first.
package telemetry
