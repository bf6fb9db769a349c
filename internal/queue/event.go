// Package queue defines message payloads exchanged over the message
// broker and the background consumer that persists them.
package queue

// SecurityEvent is published for every security-relevant auth outcome
// (failed logins, rejected tenants, token reuse, rate limiting).  It
// carries enough for downstream log shipping without querying the
// primary database, and never includes passwords or full token values.
type SecurityEvent struct {
	Action    string `json:"action"`
	Outcome   string `json:"outcome"`
	IP        string `json:"ip"`
	TenantID  uint64 `json:"tenant_id,omitempty"`
	Subdomain string `json:"subdomain,omitempty"`
	Email     string `json:"email,omitempty"`
	UserID    uint64 `json:"user_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
	At        string `json:"at"`
}
