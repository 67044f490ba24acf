// Package queue defines message payloads exchanged over the message broker.
package queue

// PasswordResetQueue is the durable queue carrying reset PIN mail requests.
const PasswordResetQueue = "password.reset.requested"

// PasswordResetRequested is published when a known user asks for a reset
// PIN.  It carries everything the mailer needs so the consumer never has to
// query the primary database.  Timestamps are RFC 3339 in UTC.
type PasswordResetRequested struct {
    Email       string `json:"email"`
    Name        string `json:"name"`
    Pin         string `json:"pin"`
    ExpiresAt   string `json:"expires_at"`
    RequestedAt string `json:"requested_at"`
}
