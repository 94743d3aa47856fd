package domain

import (
	"math"
	"time"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListQuery is the structured predicate built from recognized query
// parameters. Field keys refer to top-level data fields.
type ListQuery struct {
	Status  string
	OwnerID string

	Equals  map[string]string
	Matches map[string]string
	NumMin  map[string]float64
	NumMax  map[string]float64

	DateFrom *time.Time
	DateTo   *time.Time

	Page  int
	Limit int
}

// Normalize applies pagination defaults and clamps. A non-positive limit
// falls back to the default rather than failing the request.
func (q ListQuery) Normalize() ListQuery {
	if q.Page <= 0 {
		q.Page = DefaultPage
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q
}

func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Page describes one page of a list result.
type Page struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// NewPage computes the pagination envelope. pages == ceil(total/limit), so
// pages == 0 exactly when total == 0.
func NewPage(page, limit int, total int64) Page {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Page{Page: page, Limit: limit, Total: total, Pages: pages}
}

// StatsOverview is the aggregate view over a filtered record set. All fields
// are zero-valued, never nil, when the set is empty.
type StatsOverview struct {
	Total    int64                       `json:"total"`
	ByStatus map[string]int64            `json:"byStatus"`
	ByField  map[string]map[string]int64 `json:"byField"`
	Sum      float64                     `json:"sum"`
}

func NewStatsOverview() StatsOverview {
	return StatsOverview{
		ByStatus: map[string]int64{},
		ByField:  map[string]map[string]int64{},
	}
}
