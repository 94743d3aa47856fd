package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidFlag  = errors.New("invalid flag name")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a request-facing failure. Code ends up in the response envelope's
// `error` field, Status as the HTTP status code.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func NewError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func InvalidIDError() *Error {
	return NewError(http.StatusBadRequest, "INVALID_ID", "id must be a valid uuid")
}

func MissingFieldsError(fields []string) *Error {
	return NewError(http.StatusBadRequest, "MISSING_REQUIRED_FIELDS",
		"missing required fields: "+strings.Join(fields, ", "))
}

func NotFoundError(resource string) *Error {
	return NewError(http.StatusNotFound, resourceCode(resource, "NOT_FOUND"), resource+" not found")
}

func ForbiddenError() *Error {
	return NewError(http.StatusForbidden, "UNAUTHORIZED", "caller is neither owner nor admin")
}

func ConflictError(resource, field string) *Error {
	return NewError(http.StatusConflict, "DUPLICATE_"+strings.ToUpper(field),
		fmt.Sprintf("a %s with this %s already exists", resource, field))
}

func InternalError(resource string) *Error {
	return NewError(http.StatusInternalServerError, resourceCode(resource, "ERROR"), "unexpected error")
}

func resourceCode(resource, suffix string) string {
	return strings.ToUpper(strings.ReplaceAll(resource, "-", "_")) + "_" + suffix
}
