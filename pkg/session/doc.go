// Package session provides the session-scoped key/value storage the
// flow executor parks live plans and resumption markers in. The host
// system supplies the real implementation; the in-memory store here
// serves single-process deployments and tests.
package session
