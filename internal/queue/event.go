// Package queue defines the audit payloads exchanged over the message
// broker and the background consumer that appends them to logs/audit.log.
package queue

// AuditQueue is the durable queue audit events are published to.
const AuditQueue = "gateway.audit"

// Audit event types.
const (
	EventTokenIssued         = "token.issued"
	EventCompletionRequested = "completion.requested"
)

// AuditEvent records a security-relevant gateway action.  It carries enough
// context for downstream consumers to log or alert without querying the
// gateway.
type AuditEvent struct {
	Type     string `json:"type"`
	Subject  string `json:"subject"`
	Method   string `json:"method,omitempty"`  // password, firebase, client_key, session
	Backend  string `json:"backend,omitempty"` // direct, vertex
	Mode     string `json:"mode,omitempty"`    // json, stream
	Model    string `json:"model,omitempty"`
	RemoteIP string `json:"remote_ip,omitempty"`
	At       string `json:"at"`
}
