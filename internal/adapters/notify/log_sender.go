package notify

import (
	"context"
	"log"

	"github.com/autoyard/garageapi/internal/core/domain"
)

// LogSender writes each queued notification to the process log instead of
// delivering it anywhere. It is the default sender when no webhook endpoint
// is configured.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(_ context.Context, d domain.Delivery) error {
	log.Printf("notify send event_id=%s resource=%s record=%s event=%s recipient=%s subject=%q", d.EventID, d.Resource, d.RecordID, d.Event, d.Recipient, d.Subject)
	return nil
}
