package domain

import (
	"encoding/json"
	"regexp"
)

var fieldPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// FilterKind selects how a query parameter is matched against a data field.
type FilterKind string

const (
	FilterExact FilterKind = "exact"
	FilterMatch FilterKind = "match" // case-insensitive substring
	FilterID    FilterKind = "id"    // exact, but the value must parse as a uuid
)

// FieldFilter maps one recognized query parameter onto a data field.
type FieldFilter struct {
	Param string
	Field string
	Kind  FilterKind
}

// RangeFilter maps a minX/maxX query-parameter pair onto a numeric data field.
type RangeFilter struct {
	MinParam string
	MaxParam string
	Field    string
}

// SortRule overrides the default created_at DESC ordering when the list
// filter pins status to WhenStatus. Field names a data field.
type SortRule struct {
	WhenStatus string
	Field      string
	Ascending  bool
}

// StatsSpec configures the overview aggregation for a resource.
type StatsSpec struct {
	GroupBy   []string // data fields counted per distinct value; status is always included
	SumField  string   // numeric data field summed, "" disables the sum
	SumStatus string   // restrict the sum to this status, "" sums everything
}

// Resource is the declarative description of one exposed resource. Handlers,
// filter building, validation and aggregation are all driven from it; adding
// a resource means adding one of these to the catalog.
type Resource struct {
	Name string // singular, used in error codes: "booking" -> BOOKING_NOT_FOUND
	Path string // plural URL segment: /v1/bookings

	// Schema is a JSON Schema (draft 7) applied to create payloads. Its
	// `required` list is the resource's fixed required-field set.
	Schema json.RawMessage

	Filters    []FieldFilter
	Ranges     []RangeFilter
	DateField  string // data field targeted by startDate/endDate; "" means created_at
	Statuses   []string
	Initial    string
	Terminal   []string
	Timestamps map[string]string // status -> data field stamped on transition

	SortRules []SortRule
	Stats     StatsSpec

	Unique []string // data fields enforced unique within the resource
	Owned  bool     // mutation requires owner or admin

	// ReferencePrefix, when set, makes create generate
	// <prefix>-<unixtime>-<4 digits> into ReferenceField.
	ReferencePrefix string
	ReferenceField  string

	Notify bool // mutations enqueue a notification delivery
}

// ValidStatus reports whether s is part of the resource's status enum.
func (r Resource) ValidStatus(s string) bool {
	for _, v := range r.Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is a terminal status for the resource.
func (r Resource) IsTerminal(s string) bool {
	for _, v := range r.Terminal {
		if v == s {
			return true
		}
	}
	return false
}

// SortFor returns the ordering for a list pinned to the given status filter.
// The zero return means the default created_at DESC.
func (r Resource) SortFor(status string) (SortRule, bool) {
	for _, rule := range r.SortRules {
		if rule.WhenStatus == status {
			return rule, true
		}
	}
	return SortRule{}, false
}

func ValidateFieldName(name string) bool {
	return fieldPattern.MatchString(name)
}

// Catalog is the registry of all exposed resources, keyed by URL path segment.
type Catalog struct {
	byPath map[string]Resource
	order  []string
}

func NewCatalog(resources ...Resource) *Catalog {
	c := &Catalog{byPath: make(map[string]Resource, len(resources))}
	for _, res := range resources {
		if _, dup := c.byPath[res.Path]; dup {
			continue
		}
		c.byPath[res.Path] = res
		c.order = append(c.order, res.Path)
	}
	return c
}

func (c *Catalog) ByPath(path string) (Resource, bool) {
	res, ok := c.byPath[path]
	return res, ok
}

func (c *Catalog) All() []Resource {
	out := make([]Resource, 0, len(c.order))
	for _, path := range c.order {
		out = append(out, c.byPath[path])
	}
	return out
}
