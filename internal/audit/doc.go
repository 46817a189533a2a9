// Package audit records operator actions against the tracker service.
//
// Manual refreshes (from the REST API or the MQTT command topic), zone
// edits and catalogue deletions are written to the audit_logs table.
// Writes go through a Recorder, which queues entries and stores them
// from a single goroutine so request handlers never wait on SQLite.
package audit
