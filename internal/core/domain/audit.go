package domain

import "time"

// AuditEvent is one row of the mutation trail.
type AuditEvent struct {
	ID       int64     `json:"id"`
	Resource string    `json:"resource"`
	RecordID string    `json:"recordId"`
	Action   string    `json:"action"` // created, updated, status_changed, deleted
	Actor    string    `json:"actor"`
	At       time.Time `json:"at"`
}

type AuditFilter struct {
	Resource string
	RecordID string
	Action   string
	AfterID  int64
	Limit    int
}
