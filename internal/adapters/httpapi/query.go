package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/autoyard/garageapi/internal/core/domain"
)

// buildListQuery translates recognized query parameters into a structured
// predicate. Unrecognized parameters are ignored; recognized but malformed
// ones fail the request.
func buildListQuery(res domain.Resource, values url.Values) (domain.ListQuery, error) {
	q := domain.ListQuery{}

	page, err := intParam(values, "page")
	if err != nil {
		return domain.ListQuery{}, err
	}
	limit, err := intParam(values, "limit")
	if err != nil {
		return domain.ListQuery{}, err
	}
	q.Page = page
	q.Limit = limit

	if status := values.Get("status"); status != "" {
		if !res.ValidStatus(status) {
			return domain.ListQuery{}, domain.NewError(http.StatusBadRequest, "INVALID_STATUS",
				fmt.Sprintf("status %q is not valid for %s", status, res.Name))
		}
		q.Status = status
	}
	q.OwnerID = values.Get("ownerId")

	for _, f := range res.Filters {
		value := values.Get(f.Param)
		if value == "" {
			continue
		}
		switch f.Kind {
		case domain.FilterID:
			if _, err := uuid.Parse(value); err != nil {
				return domain.ListQuery{}, domain.InvalidIDError()
			}
			q.Equals = setField(q.Equals, f.Field, value)
		case domain.FilterMatch:
			q.Matches = setField(q.Matches, f.Field, value)
		default:
			q.Equals = setField(q.Equals, f.Field, value)
		}
	}

	for _, rf := range res.Ranges {
		if raw := values.Get(rf.MinParam); raw != "" {
			bound, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return domain.ListQuery{}, rangeError(rf.MinParam)
			}
			if q.NumMin == nil {
				q.NumMin = map[string]float64{}
			}
			q.NumMin[rf.Field] = bound
		}
		if raw := values.Get(rf.MaxParam); raw != "" {
			bound, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return domain.ListQuery{}, rangeError(rf.MaxParam)
			}
			if q.NumMax == nil {
				q.NumMax = map[string]float64{}
			}
			q.NumMax[rf.Field] = bound
		}
	}

	if raw := values.Get("startDate"); raw != "" {
		from, ok := parseDate(raw)
		if !ok {
			return domain.ListQuery{}, dateError("startDate")
		}
		q.DateFrom = &from
	}
	if raw := values.Get("endDate"); raw != "" {
		to, ok := parseDate(raw)
		if !ok {
			return domain.ListQuery{}, dateError("endDate")
		}
		q.DateTo = &to
	}

	return q, nil
}

// intParam parses an optional integer parameter. Absent means zero, which
// ListQuery.Normalize later replaces with the default.
func intParam(values url.Values, name string) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewError(http.StatusBadRequest, "INVALID_PAGINATION", name+" must be an integer")
	}
	return parsed, nil
}

func parseDate(raw string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func setField(m map[string]string, field, value string) map[string]string {
	if m == nil {
		m = map[string]string{}
	}
	m[field] = value
	return m
}

func rangeError(param string) *domain.Error {
	return domain.NewError(http.StatusBadRequest, "INVALID_RANGE", param+" must be a number")
}

func dateError(param string) *domain.Error {
	return domain.NewError(http.StatusBadRequest, "INVALID_DATE", param+" must be RFC3339 or YYYY-MM-DD")
}
