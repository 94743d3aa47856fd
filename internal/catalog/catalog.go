// Package catalog declares every resource the API exposes. Each resource is
// one declarative domain.Resource value; the generic engine does the rest.
package catalog

import (
	"encoding/json"

	"github.com/autoyard/garageapi/internal/core/domain"
)

func Default() *domain.Catalog {
	return domain.NewCatalog(
		booking(),
		vehicle(),
		payment(),
		invoice(),
		dispute(),
		feedback(),
		fleet(),
		part(),
		product(),
		review(),
		roadside(),
		tradeIn(),
		discount(),
	)
}

func booking() domain.Resource {
	return domain.Resource{
		Name: "booking",
		Path: "bookings",
		Schema: schema(`{
			"type": "object",
			"required": ["mechanicId", "vehicleId", "serviceType", "bookingDate"],
			"properties": {
				"mechanicId":  {"type": "string", "minLength": 1},
				"vehicleId":   {"type": "string", "minLength": 1},
				"serviceType": {"type": "string", "minLength": 1},
				"bookingDate": {"type": "string", "minLength": 1},
				"notes":       {"type": "string"},
				"estimatedCost": {"type": "number", "minimum": 0}
			}
		}`),
		Filters: []domain.FieldFilter{
			{Param: "mechanicId", Field: "mechanicId", Kind: domain.FilterID},
			{Param: "vehicleId", Field: "vehicleId", Kind: domain.FilterID},
			{Param: "serviceType", Field: "serviceType", Kind: domain.FilterExact},
		},
		Ranges: []domain.RangeFilter{
			{MinParam: "minCost", MaxParam: "maxCost", Field: "estimatedCost"},
		},
		DateField: "bookingDate",
		Statuses:  []string{"pending", "confirmed", "in_progress", "completed", "cancelled"},
		Initial:   "pending",
		Terminal:  []string{"completed", "cancelled"},
		Timestamps: map[string]string{
			"confirmed":   "confirmedAt",
			"in_progress": "startedAt",
			"completed":   "completedAt",
			"cancelled":   "cancelledAt",
		},
		// Pending work is served first-come-first-served.
		SortRules: []domain.SortRule{
			{WhenStatus: "pending", Field: "bookingDate", Ascending: true},
		},
		Stats: domain.StatsSpec{
			GroupBy:   []string{"serviceType"},
			SumField:  "actualCost",
			SumStatus: "completed",
		},
		Owned:           true,
		ReferencePrefix: "BK",
		ReferenceField:  "bookingReference",
		Notify:          true,
	}
}

func vehicle() domain.Resource {
	return domain.Resource{
		Name: "vehicle",
		Path: "vehicles",
		Schema: schema(`{
			"type": "object",
			"required": ["make", "model", "year"],
			"properties": {
				"make":  {"type": "string", "minLength": 1},
				"model": {"type": "string", "minLength": 1},
				"year":  {"type": "integer", "minimum": 1900},
				"vin":   {"type": "string"},
				"mileage": {"type": "number", "minimum": 0}
			}
		}`),
		Filters: []domain.FieldFilter{
			{Param: "make", Field: "make", Kind: domain.FilterMatch},
			{Param: "model", Field: "model", Kind: domain.FilterMatch},
			{Param: "vin", Field: "vin", Kind: domain.FilterExact},
		},
		Ranges: []domain.RangeFilter{
			{MinParam: "minYear", MaxParam: "maxYear", Field: "year"},
			{MinParam: "minMileage", MaxParam: "maxMileage", Field: "mileage"},
		},
		Statuses: []string{"active", "in_service", "retired"},
		Initial:  "active",
		Terminal: []string{"retired"},
		Timestamps: map[string]string{
			"retired": "retiredAt",
		},
		Stats:  domain.StatsSpec{GroupBy: []string{"make"}},
		Unique: []string{"vin"},
		Owned:  true,
	}
}

func payment() domain.Resource {
	return domain.Resource{
		Name: "payment",
		Path: "payments",
		Schema: schema(`{
			"type": "object",
			"required": ["bookingId", "amount", "method"],
			"properties": {
				"bookingId": {"type": "string", "minLength": 1},
				"amount":    {"type": "number", "minimum": 0},
				"method":    {"type": "string", "enum": ["card", "cash", "transfer"]}
			}
		}`),
		Filters: []domain.FieldFilter{
			{Param: "bookingId", Field: "bookingId", Kind: domain.FilterID},
			{Param: "method", Field: "method", Kind: domain.FilterExact},
		},
		Ranges: []domain.RangeFilter{
			{MinParam: "minAmount", MaxParam: "maxAmount", Field: "amount"},
		},
		Statuses: []string{"pending", "processing", "completed", "failed", "refunded"},
		Initial:  "pending",
		Terminal: []string{"completed", "failed", "refunded"},
		Timestamps: map[string]string{
			"completed": "paidAt",
			"refunded":  "refundedAt",
		},
		Stats: domain.StatsSpec{
			GroupBy:   []string{"method"},
			SumField:  "amount",
			SumStatus: "completed",
		},
		Owned:  true,
		Notify: true,
	}
}

func invoice() domain.Resource {
	return domain.Resource{
		Name: "invoice",
		Path: "invoices",
		Schema: schema(`{
			"type": "object",
			"required": ["bookingId", "amount"],
			"properties": {
				"bookingId": {"type": "string", "minLength": 1},
				"amount":    {"type": "number", "minimum": 0},
				"currency":  {"type": "string"}
			}
		}`),
		Filters: []domain.FieldFilter{
			{Param: "bookingId", Field: "bookingId", Kind: domain.FilterID},
		},
		Ranges: []domain.RangeFilter{
			{MinParam: "minAmount", MaxParam: "maxAmount", Field: "amount"},
		},
		Statuses: []string{"draft", "issued", "paid", "void"},
		Initial:  "draft",
		Terminal: []string{"paid", "void"},
		Timestamps: map[string]string{
			"issued": "issuedAt",
			"paid":   "paidAt",
			"void":   "voidedAt",
		},
		Stats: domain.StatsSpec{
			SumField:  "amount",
			SumStatus: "paid",
		},
		Owned:           true,
		ReferencePrefix: "INV",
		ReferenceField:  "invoiceNumber",
	}
}

func dispute() domain.Resource {
	return domain.Resource{
		Name: "dispute",
		Path: "disputes",
		Schema: schema(`{
			"type": "object",
			"required": ["bookingId", "reason"],
			"properties": {
				"bookingId": {"type": "string", "minLength": 1},
				"reason":    {"type": "string", "minLength": 1},
				"details":   {"type": "string"}
			}
		}`),
		Filters: []domain.FieldFilter{
			{Param: "bookingId", Field: "bookingId", Kind: domain.FilterID},
			{Param: "reason", Field: "reason", Kind: domain.FilterMatch},
		},
		Statuses: []string{"open", "under_review", "resolved", "rejected"},
		Initial:  "open",
		Terminal: []string{"resolved", "rejected"},
		Timestamps: map[string]string{
			"resolved": "resolvedAt",
			"rejected": "rejectedAt",
		},
		Stats: domain.StatsSpec{GroupBy: []string{"reason"}},
		Owned: true,
	}
}

func feedback() domain.Resource {
	return domain.Resource{
		Name: "feedback",
		Path: "feedback",
		Schema: schema(`{
			"type": "object",
			"required": ["bookingId", "rating"],
			"properties": {
				"bookingId": {"type": "string", "minLength": 1},
				"rating":    {"type": "integer", "minimum": 1, "maximum": 5},
				"comment":   {"type": "string"}
			}
		}`),
		Filters: []domain.FieldFilter{
			{Param: "bookingId", Field: "bookingId", Kind: domain.FilterID},
			{Param: "rating", Field: "rating", Kind: domain.FilterExact},
		},
		Statuses: []string{"published", "hidden"},
		Initial:  "published",
		Stats:    domain.StatsSpec{GroupBy: []string{"rating"}},
		Owned:    true,
	}
}

func fleet() domain.Resource {
	return domain.Resource{
		Name: "fleet",
		Path: "fleets",
		Schema: schema(`{
			"type": "object",
			"required": ["companyName", "contactEmail"],
			"properties": {
				"companyName":  {"type": "string", "minLength": 1},
				"contactEmail": {"type": "string", "minLength": 3},
				"vehicleCount": {"type": "integer", "minimum": 0}
			}
		}`),
		Filters: []domain.FieldFilter{
			{Param: "companyName", Field: "companyName", Kind: domain.FilterMatch},
		},
		Ranges: []domain.RangeFilter{
			{MinParam: "minVehicles", MaxParam: "maxVehicles", Field: "vehicleCount"},
		},
		Statuses: []string{"active", "suspended"},
		Initial:  "active",
		Unique:   []string{"companyName"},
		Owned:    true,
	}
}

func part() domain.Resource {
	return domain.Resource{
		Name: "part",
		Path: "parts",
		Schema: schema(`{
			"type": "object",
			"required": ["name", "sku", "price"],
			"properties": {
				"name":     {"type": "string", "minLength": 1},
				"sku":      {"type": "string", "minLength": 1},
				"price":    {"type": "number", "minimum": 0},
				"category": {"type": "string"},
				"quantity": {"type": "integer", "minimum": 0}
			}
		}`),
		Filters: []domain.FieldFilter{
			{Param: "name", Field: "name", Kind: domain.FilterMatch},
			{Param: "category", Field: "category", Kind: domain.FilterExact},
			{Param: "sku", Field: "sku", Kind: domain.FilterExact},
		},
		Ranges: []domain.RangeFilter{
			{MinParam: "minPrice", MaxParam: "maxPrice", Field: "price"},
		},
		Statuses: []string{"in_stock", "out_of_stock", "discontinued"},
		Initial:  "in_stock",
		Terminal: []string{"discontinued"},
		Stats: domain.StatsSpec{
			GroupBy:  []string{"category"},
			SumField: "price",
		},
		Unique: []string{"sku"},
	}
}

func product() domain.Resource {
	return domain.Resource{
		Name: "product",
		Path: "products",
		Schema: schema(`{
			"type": "object",
			"required": ["name", "price"],
			"properties": {
				"name":     {"type": "string", "minLength": 1},
				"price":    {"type": "number", "minimum": 0},
				"category": {"type": "string"}
			}
		}`),
		Filters: []domain.FieldFilter{
			{Param: "name", Field: "name", Kind: domain.FilterMatch},
			{Param: "category", Field: "category", Kind: domain.FilterExact},
		},
		Ranges: []domain.RangeFilter{
			{MinParam: "minPrice", MaxParam: "maxPrice", Field: "price"},
		},
		Statuses: []string{"active", "archived"},
		Initial:  "active",
		Stats: domain.StatsSpec{
			GroupBy:  []string{"category"},
			SumField: "price",
		},
	}
}

func review() domain.Resource {
	return domain.Resource{
		Name: "review",
		Path: "reviews",
		Schema: schema(`{
			"type": "object",
			"required": ["mechanicId", "rating"],
			"properties": {
				"mechanicId": {"type": "string", "minLength": 1},
				"rating":     {"type": "integer", "minimum": 1, "maximum": 5},
				"comment":    {"type": "string"}
			}
		}`),
		Filters: []domain.FieldFilter{
			{Param: "mechanicId", Field: "mechanicId", Kind: domain.FilterID},
			{Param: "rating", Field: "rating", Kind: domain.FilterExact},
		},
		Statuses: []string{"pending", "approved", "rejected"},
		Initial:  "pending",
		Terminal: []string{"rejected"},
		Timestamps: map[string]string{
			"approved": "approvedAt",
		},
		Stats: domain.StatsSpec{GroupBy: []string{"rating"}},
		Owned: true,
	}
}

func roadside() domain.Resource {
	return domain.Resource{
		Name: "roadside",
		Path: "roadside",
		Schema: schema(`{
			"type": "object",
			"required": ["vehicleId", "location", "issueType"],
			"properties": {
				"vehicleId": {"type": "string", "minLength": 1},
				"location":  {"type": "string", "minLength": 1},
				"issueType": {"type": "string", "minLength": 1}
			}
		}`),
		Filters: []domain.FieldFilter{
			{Param: "vehicleId", Field: "vehicleId", Kind: domain.FilterID},
			{Param: "issueType", Field: "issueType", Kind: domain.FilterExact},
		},
		Statuses: []string{"requested", "dispatched", "on_site", "completed", "cancelled"},
		Initial:  "requested",
		Terminal: []string{"completed", "cancelled"},
		Timestamps: map[string]string{
			"dispatched": "dispatchedAt",
			"on_site":    "arrivedAt",
			"completed":  "completedAt",
			"cancelled":  "cancelledAt",
		},
		SortRules: []domain.SortRule{
			{WhenStatus: "requested", Field: "", Ascending: true},
		},
		Stats: domain.StatsSpec{
			GroupBy:   []string{"issueType"},
			SumField:  "actualCost",
			SumStatus: "completed",
		},
		Owned:           true,
		ReferencePrefix: "RA",
		ReferenceField:  "requestReference",
		Notify:          true,
	}
}

func tradeIn() domain.Resource {
	return domain.Resource{
		Name: "tradein",
		Path: "trade-ins",
		Schema: schema(`{
			"type": "object",
			"required": ["make", "model", "year", "mileage"],
			"properties": {
				"make":    {"type": "string", "minLength": 1},
				"model":   {"type": "string", "minLength": 1},
				"year":    {"type": "integer", "minimum": 1900},
				"mileage": {"type": "number", "minimum": 0}
			}
		}`),
		Filters: []domain.FieldFilter{
			{Param: "make", Field: "make", Kind: domain.FilterMatch},
			{Param: "model", Field: "model", Kind: domain.FilterMatch},
		},
		Ranges: []domain.RangeFilter{
			{MinParam: "minMileage", MaxParam: "maxMileage", Field: "mileage"},
			{MinParam: "minYear", MaxParam: "maxYear", Field: "year"},
		},
		Statuses: []string{"submitted", "appraised", "accepted", "declined"},
		Initial:  "submitted",
		Terminal: []string{"accepted", "declined"},
		Timestamps: map[string]string{
			"appraised": "appraisedAt",
			"accepted":  "acceptedAt",
			"declined":  "declinedAt",
		},
		Stats: domain.StatsSpec{
			SumField:  "offerAmount",
			SumStatus: "accepted",
		},
		Owned: true,
	}
}

func discount() domain.Resource {
	return domain.Resource{
		Name: "discount",
		Path: "discounts",
		Schema: schema(`{
			"type": "object",
			"required": ["code", "type", "value"],
			"properties": {
				"code":        {"type": "string", "minLength": 1},
				"type":        {"type": "string", "enum": ["percentage", "fixed"]},
				"value":       {"type": "number", "minimum": 0},
				"minAmount":   {"type": "number", "minimum": 0},
				"maxDiscount": {"type": "number", "minimum": 0},
				"validFrom":   {"type": "string"},
				"validUntil":  {"type": "string"}
			}
		}`),
		Filters: []domain.FieldFilter{
			{Param: "code", Field: "code", Kind: domain.FilterExact},
			{Param: "type", Field: "type", Kind: domain.FilterExact},
		},
		Statuses: []string{"active", "inactive"},
		Initial:  "active",
		Stats:    domain.StatsSpec{GroupBy: []string{"type"}},
		Unique:   []string{"code"},
	}
}

func schema(doc string) json.RawMessage {
	return json.RawMessage(doc)
}
