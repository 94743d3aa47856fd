package usecase

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/autoyard/garageapi/internal/core/domain"
)

// A message pairs the subject and body templates for one event. Templates
// see the record's data fields plus Resource, ID, Status and OwnerID.
type message struct {
	subject string
	body    string
}

// Default message bodies per event. Resource-specific overrides use the
// "<resource>.<event>" key.
var defaultMessages = map[string]message{
	"created": {
		subject: "Your {{.Resource}} was received",
		body:    "Hi,\n\nwe registered your {{.Resource}} ({{.ID}}). Current status: {{.Status}}.\n\nThanks.",
	},
	"confirmed": {
		subject: "Your {{.Resource}} is confirmed",
		body:    "Hi,\n\nyour {{.Resource}} ({{.ID}}) has been confirmed.\n\nThanks.",
	},
	"completed": {
		subject: "Your {{.Resource}} is complete",
		body:    "Hi,\n\nyour {{.Resource}} ({{.ID}}) is complete.\n\nThanks.",
	},
	"cancelled": {
		subject: "Your {{.Resource}} was cancelled",
		body:    "Hi,\n\nyour {{.Resource}} ({{.ID}}) was cancelled.\n\nThanks.",
	},
	"booking.created": {
		subject: "Booking {{.bookingReference}} received",
		body:    "Hi,\n\nyour booking {{.bookingReference}} is in. Service: {{.serviceType}}, date: {{.bookingDate}}.\nStatus: {{.Status}}.\n\nThanks.",
	},
}

// Composer renders notification content for record events. Rendering
// failures are logged and swallowed: a bad template must never fail the
// mutation that triggered it.
type Composer struct {
	templates map[string]message
}

func NewComposer() *Composer {
	return &Composer{templates: defaultMessages}
}

// Compose renders the delivery for an event, or nil when the event has no
// template or no recipient can be determined.
func (c *Composer) Compose(res domain.Resource, event string, rec domain.Record) *domain.Delivery {
	msg, ok := c.templates[res.Name+"."+event]
	if !ok {
		msg, ok = c.templates[event]
	}
	if !ok {
		return nil
	}

	recipient := recipientFor(rec)
	if recipient == "" {
		return nil
	}

	vars := rec.Fields()
	vars["Resource"] = res.Name
	vars["ID"] = rec.ID
	vars["Status"] = rec.Status
	vars["OwnerID"] = rec.OwnerID

	subject, err := render("subject", msg.subject, vars)
	if err != nil {
		log.Printf("compose %s.%s subject: %v", res.Name, event, err)
		return nil
	}
	body, err := render("body", msg.body, vars)
	if err != nil {
		log.Printf("compose %s.%s body: %v", res.Name, event, err)
		return nil
	}

	now := time.Now().UTC()
	return &domain.Delivery{
		EventID:       uuid.NewString(),
		Resource:      res.Name,
		RecordID:      rec.ID,
		Event:         res.Name + "." + event,
		Recipient:     recipient,
		Subject:       strings.TrimSpace(subject),
		Body:          body,
		Status:        domain.DeliveryPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}

// recipientFor picks the delivery address: an explicit email field on the
// record wins, otherwise the owner id is used as an opaque address the
// provider can resolve.
func recipientFor(rec domain.Record) string {
	for _, field := range []string{"customerEmail", "email", "contactEmail"} {
		if v := rec.Field(field); v != "" {
			return v
		}
	}
	return rec.OwnerID
}

func render(name, text string, vars map[string]any) (string, error) {
	tpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}
