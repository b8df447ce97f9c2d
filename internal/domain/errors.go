package domain

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrConflict      ErrorCode = "CONFLICT"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrEmptyCart     ErrorCode = "EMPTY_CART"
	ErrNoActiveTable ErrorCode = "NO_ACTIVE_TABLE"
	ErrValidation    ErrorCode = "VALIDATION_ERROR"
	ErrSessionStale  ErrorCode = "SESSION_STALE"
	ErrInternal      ErrorCode = "INTERNAL_ERROR"
)

// Error is a recoverable failure surfaced to callers as a structured response.
type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode, message string, status int, details map[string]any) *Error {
	return &Error{Code: code, Message: message, StatusCode: status, Details: details}
}

func ConflictError(message string, details map[string]any) *Error {
	return newError(ErrConflict, message, http.StatusConflict, details)
}

func NotFoundError(entity string, id any) *Error {
	return newError(ErrNotFound, fmt.Sprintf("%s %v not found", entity, id), http.StatusNotFound, map[string]any{
		"entity": entity,
		"id":     id,
	})
}

func EmptyCartError() *Error {
	return newError(ErrEmptyCart, "Cart is empty", http.StatusUnprocessableEntity, nil)
}

func NoActiveTableError(details map[string]any) *Error {
	return newError(ErrNoActiveTable, "No active table with an open order for this session", http.StatusConflict, details)
}

func ValidationError(message string, details map[string]any) *Error {
	return newError(ErrValidation, message, http.StatusBadRequest, details)
}

func StaleSessionError(tableID int64) *Error {
	return newError(ErrSessionStale, "Table session is no longer active", http.StatusConflict, map[string]any{
		"tableId": tableID,
	})
}

// AsError unwraps err into a domain error when it carries one.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether err is a domain error with the given code.
func HasCode(err error, code ErrorCode) bool {
	de, ok := AsError(err)
	return ok && de.Code == code
}
