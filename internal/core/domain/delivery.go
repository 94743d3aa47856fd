package domain

import "time"

// Delivery statuses. The dispatcher moves pending deliveries to sent, failed
// (retryable) or dead (retries exhausted).
const (
	DeliveryPending = "pending"
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliveryDead    = "dead"
)

// Delivery is a rendered notification awaiting hand-off to a sender. Rows
// are written in the same transaction as the record mutation that caused
// them; actual delivery is best-effort and recorded, never guaranteed.
type Delivery struct {
	ID            int64
	EventID       string
	Resource      string
	RecordID      string
	Event         string // e.g. booking.created
	Recipient     string
	Subject       string
	Body          string
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	SentAt        *time.Time
}
