package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/autoyard/garageapi/internal/core/domain"
	"github.com/autoyard/garageapi/internal/core/usecase"
)

type ctxKey string

const (
	timeFormat             = "2006-01-02T15:04:05.999999999Z07:00"
	callerCtxKey    ctxKey = "caller"
	maxJSONBodySize        = 1 << 20
)

type Handler struct {
	catalog   *domain.Catalog
	resources *usecase.ResourceService
	discounts *usecase.DiscountService
	flags     *usecase.FlagService
	audits    *usecase.AuditService
	auth      *usecase.AuthService
}

func NewHandler(
	catalog *domain.Catalog,
	resources *usecase.ResourceService,
	discounts *usecase.DiscountService,
	flags *usecase.FlagService,
	audits *usecase.AuditService,
	auth *usecase.AuthService,
) *Handler {
	return &Handler{
		catalog:   catalog,
		resources: resources,
		discounts: discounts,
		flags:     flags,
		audits:    audits,
		auth:      auth,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "unknown resource or route")
	})
	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAuth)

		pr.Get("/v1/discounts/validate", h.validateDiscount)

		for _, res := range h.catalog.All() {
			base := "/v1/" + res.Path
			pr.Get(base, h.list(res))
			pr.Post(base, h.create(res))
			pr.Get(base+"/stats/overview", h.stats(res))
			pr.Get(base+"/{id}", h.get(res))
			pr.Put(base+"/{id}", h.update(res))
			pr.Patch(base+"/{id}/status", h.patchStatus(res))
			pr.Delete(base+"/{id}", h.delete(res))
		}

		pr.Get("/v1/flags", h.listFlags)
		pr.Get("/v1/flags/{name}", h.getFlag)

		pr.Group(func(ar chi.Router) {
			ar.Use(h.requireAdmin)
			ar.Put("/v1/flags/{name}", h.setFlag)
			ar.Get("/v1/audit", h.listAudit)
		})
	})

	return r
}

func (h *Handler) list(res domain.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := buildListQuery(res, r.URL.Query())
		if err != nil {
			h.fail(w, res.Name, err)
			return
		}

		records, page, err := h.resources.List(r.Context(), res, q)
		if err != nil {
			h.fail(w, res.Name, err)
			return
		}

		result := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			result = append(result, toRecordResponse(rec))
		}
		writeSuccess(w, http.StatusOK, result, &page, "")
	}
}

func (h *Handler) get(res domain.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := h.resources.Get(r.Context(), res, chi.URLParam(r, "id"))
		if err != nil {
			h.fail(w, res.Name, err)
			return
		}
		writeSuccess(w, http.StatusOK, toRecordResponse(rec), nil, "")
	}
}

func (h *Handler) create(res domain.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := readJSONBody(w, r)
		if !ok {
			return
		}

		rec, err := h.resources.Create(r.Context(), res, callerFromContext(r.Context()), payload)
		if err != nil {
			h.fail(w, res.Name, err)
			return
		}
		writeSuccess(w, http.StatusCreated, toRecordResponse(rec), nil, res.Name+" created")
	}
}

func (h *Handler) update(res domain.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := readJSONBody(w, r)
		if !ok {
			return
		}

		rec, err := h.resources.Update(r.Context(), res, callerFromContext(r.Context()), chi.URLParam(r, "id"), payload)
		if err != nil {
			h.fail(w, res.Name, err)
			return
		}
		writeSuccess(w, http.StatusOK, toRecordResponse(rec), nil, res.Name+" updated")
	}
}

func (h *Handler) patchStatus(res domain.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
		decoder := json.NewDecoder(r.Body)

		var patch usecase.StatusPatch
		if err := decoder.Decode(&patch); err != nil {
			writeFailure(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid json body")
			return
		}
		if err := ensureEOF(decoder); err != nil {
			writeFailure(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid json body")
			return
		}

		rec, err := h.resources.PatchStatus(r.Context(), res, callerFromContext(r.Context()), chi.URLParam(r, "id"), patch)
		if err != nil {
			h.fail(w, res.Name, err)
			return
		}
		writeSuccess(w, http.StatusOK, toRecordResponse(rec), nil, res.Name+" status updated")
	}
}

func (h *Handler) delete(res domain.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h.resources.Delete(r.Context(), res, callerFromContext(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			h.fail(w, res.Name, err)
			return
		}
		writeSuccess(w, http.StatusOK, map[string]bool{"deleted": true}, nil, res.Name+" deleted")
	}
}

func (h *Handler) stats(res domain.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := buildListQuery(res, r.URL.Query())
		if err != nil {
			h.fail(w, res.Name, err)
			return
		}

		overview, err := h.resources.Stats(r.Context(), res, q)
		if err != nil {
			h.fail(w, res.Name, err)
			return
		}
		writeSuccess(w, http.StatusOK, overview, nil, "")
	}
}

func (h *Handler) validateDiscount(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")

	amount := 0.0
	if raw := r.URL.Query().Get("amount"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "INVALID_AMOUNT", "amount must be a number")
			return
		}
		amount = parsed
	}

	quote, err := h.discounts.Validate(r.Context(), code, amount)
	if err != nil {
		h.fail(w, "discount", err)
		return
	}
	writeSuccess(w, http.StatusOK, quote, nil, "discount is valid")
}

func (h *Handler) listFlags(w http.ResponseWriter, r *http.Request) {
	flags, err := h.flags.List(r.Context())
	if err != nil {
		h.fail(w, "flag", err)
		return
	}
	if flags == nil {
		flags = []domain.Flag{}
	}
	writeSuccess(w, http.StatusOK, flags, nil, "")
}

func (h *Handler) getFlag(w http.ResponseWriter, r *http.Request) {
	flag, err := h.flags.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, "flag", err)
		return
	}
	writeSuccess(w, http.StatusOK, flag, nil, "")
}

type setFlagRequest struct {
	Enabled bool   `json:"enabled"`
	Note    string `json:"note"`
}

func (h *Handler) setFlag(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req setFlagRequest
	if err := decoder.Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid json body")
		return
	}
	if err := ensureEOF(decoder); err != nil {
		writeFailure(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid json body")
		return
	}

	caller := callerFromContext(r.Context())
	flag, err := h.flags.Set(r.Context(), chi.URLParam(r, "name"), req.Enabled, req.Note, caller.ID)
	if err != nil {
		h.fail(w, "flag", err)
		return
	}
	writeSuccess(w, http.StatusOK, flag, nil, "flag updated")
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	filter := domain.AuditFilter{
		Resource: values.Get("resource"),
		RecordID: values.Get("recordId"),
		Action:   values.Get("action"),
	}
	if raw := values.Get("afterId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "INVALID_PAGINATION", "afterId must be an integer")
			return
		}
		filter.AfterID = parsed
	}
	if raw := values.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "INVALID_PAGINATION", "limit must be an integer")
			return
		}
		filter.Limit = parsed
	}

	events, err := h.audits.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "audit", err)
		return
	}
	if events == nil {
		events = []domain.AuditEvent{}
	}
	writeSuccess(w, http.StatusOK, events, nil, "")
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]bool{"ok": true}, nil, "")
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.openapiSpec())
}

// requireAuth resolves the caller from either a bearer JWT or an API key
// and stores it in the request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var caller domain.Caller
		var err error

		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		apiKey := strings.TrimSpace(r.Header.Get("X-API-Key"))
		switch {
		case strings.HasPrefix(strings.ToLower(auth), "bearer "):
			caller, err = h.auth.AuthenticateBearer(r.Context(), auth[7:])
		case apiKey != "":
			caller, err = h.auth.AuthenticateAPIKey(r.Context(), apiKey)
		default:
			err = domain.ErrUnauthorized
		}

		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				writeFailure(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid credentials")
				return
			}
			log.Printf("authenticate: %v", err)
			writeFailure(w, http.StatusInternalServerError, "AUTH_ERROR", "unexpected error")
			return
		}

		ctx := context.WithValue(r.Context(), callerCtxKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !callerFromContext(r.Context()).IsAdmin() {
			writeFailure(w, http.StatusForbidden, "UNAUTHORIZED", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFromContext(ctx context.Context) domain.Caller {
	caller, _ := ctx.Value(callerCtxKey).(domain.Caller)
	return caller
}

// fail converts a service error into the failure envelope. Unexpected
// errors are logged and surfaced as the resource's generic 500 code.
func (h *Handler) fail(w http.ResponseWriter, resource string, err error) {
	var coded *domain.Error
	switch {
	case errors.As(err, &coded):
		writeFailure(w, coded.Status, coded.Code, coded.Message)
	case errors.Is(err, domain.ErrNotFound):
		notFound := domain.NotFoundError(resource)
		writeFailure(w, notFound.Status, notFound.Code, notFound.Message)
	case errors.Is(err, domain.ErrInvalidFlag):
		writeFailure(w, http.StatusBadRequest, "INVALID_FLAG_NAME", "flag name contains invalid characters")
	default:
		log.Printf("%s request failed: %v", resource, err)
		internal := domain.InternalError(resource)
		writeFailure(w, internal.Status, internal.Code, internal.Message)
	}
}

// toRecordResponse flattens a record for the envelope: the data fields at
// the top level with the system fields merged over them.
func toRecordResponse(rec domain.Record) map[string]any {
	out := rec.Fields()
	out["id"] = rec.ID
	out["ownerId"] = rec.OwnerID
	out["status"] = rec.Status
	out["createdAt"] = rec.CreatedAt.UTC().Format(timeFormat)
	out["updatedAt"] = rec.UpdatedAt.UTC().Format(timeFormat)
	return out
}

func readJSONBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)

	var payload json.RawMessage
	if err := decoder.Decode(&payload); err != nil {
		writeFailure(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid json body")
		return nil, false
	}
	if err := ensureEOF(decoder); err != nil {
		writeFailure(w, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid json body")
		return nil, false
	}
	return payload, true
}

type envelope struct {
	Success    bool         `json:"success"`
	Data       any          `json:"data,omitempty"`
	Pagination *domain.Page `json:"pagination,omitempty"`
	Error      string       `json:"error,omitempty"`
	Message    string       `json:"message,omitempty"`
	Timestamp  string       `json:"timestamp"`
}

func writeSuccess(w http.ResponseWriter, status int, data any, page *domain.Page, message string) {
	writeJSON(w, status, envelope{
		Success:    true,
		Data:       data,
		Pagination: page,
		Message:    message,
		Timestamp:  time.Now().UTC().Format(timeFormat),
	})
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{
		Success:   false,
		Error:     code,
		Message:   message,
		Timestamp: time.Now().UTC().Format(timeFormat),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("encode json response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("write response: %v", err)
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func (h *Handler) openapiSpec() map[string]any {
	paths := map[string]any{
		"/healthz":              map[string]any{"get": map[string]any{"summary": "Liveness probe"}},
		"/v1/discounts/validate": map[string]any{"get": map[string]any{"summary": "Validate a discount code against an amount"}},
		"/v1/flags":             map[string]any{"get": map[string]any{"summary": "List feature flags"}},
		"/v1/flags/{name}": map[string]any{
			"get": map[string]any{"summary": "Get a feature flag"},
			"put": map[string]any{"summary": "Set a feature flag (admin)"},
		},
		"/v1/audit": map[string]any{"get": map[string]any{"summary": "List audit events (admin)"}},
	}
	for _, res := range h.catalog.All() {
		base := "/v1/" + res.Path
		paths[base] = map[string]any{
			"get":  map[string]any{"summary": "List " + res.Path},
			"post": map[string]any{"summary": "Create a " + res.Name},
		}
		paths[base+"/stats/overview"] = map[string]any{
			"get": map[string]any{"summary": "Aggregate stats for " + res.Path},
		}
		paths[base+"/{id}"] = map[string]any{
			"get":    map[string]any{"summary": "Get a " + res.Name},
			"put":    map[string]any{"summary": "Update a " + res.Name},
			"delete": map[string]any{"summary": "Delete a " + res.Name},
		}
		paths[base+"/{id}/status"] = map[string]any{
			"patch": map[string]any{"summary": "Change the status of a " + res.Name},
		}
	}
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "garageapi",
			"version": "1.0.0",
		},
		"paths": paths,
	}
}
