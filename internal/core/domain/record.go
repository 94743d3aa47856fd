package domain

import (
	"encoding/json"
	"time"
)

// Record is one stored document of some resource. System fields live in
// columns; everything the client sent lives in Data.
type Record struct {
	ID        string
	Resource  string
	OwnerID   string
	Status    string
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fields decodes Data into a generic map. A nil or invalid Data yields an
// empty map, never an error: records are validated on the way in.
func (r Record) Fields() map[string]any {
	fields := map[string]any{}
	if len(r.Data) > 0 {
		_ = json.Unmarshal(r.Data, &fields)
	}
	return fields
}

// Field returns the string form of a single top-level data field.
func (r Record) Field(name string) string {
	v, ok := r.Fields()[name]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// MutationMeta travels with every record mutation into the store, which
// persists the matching audit row (and the queued delivery, when present)
// in the same transaction as the record itself.
type MutationMeta struct {
	Actor      string
	Action     string
	OccurredAt time.Time
	Delivery   *Delivery
}

func (m MutationMeta) Normalize() MutationMeta {
	if m.Actor == "" {
		m.Actor = "api"
	}
	if m.OccurredAt.IsZero() {
		m.OccurredAt = time.Now().UTC()
	}
	return m
}
