package api

import (
	"fmt"
	"net/http"
)

// Error is a client-facing failure rendered as {"message": ...}.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Client errors returned by the handlers.
var (
	ErrMissingParameter = &Error{Status: http.StatusBadRequest, Message: "Need to pass a station"}
	ErrMissingBody      = &Error{Status: http.StatusBadRequest, Message: "Need to pass the body with the new report parameters"}
	ErrInvalidBody      = &Error{Status: http.StatusBadRequest, Message: "The body of the new report must be a JSON object"}
	ErrIncompleteBody   = &Error{Status: http.StatusBadRequest, Message: "The new report must include station, date, report and panel attributes"}
	ErrDateParse        = &Error{Status: http.StatusBadRequest, Message: "The report date must have the format YYYY/MM/DD,HH:MM:SS"}
	ErrInvalidCursor    = &Error{Status: http.StatusBadRequest, Message: "Invalid next_key"}
	ErrRouteNotFound    = &Error{Status: http.StatusNotFound, Message: "Not Found"}
	ErrMethodNotAllowed = &Error{Status: http.StatusMethodNotAllowed, Message: "Method Not Allowed"}

	// ErrInternal is rendered by hosts that turn handler errors into responses.
	ErrInternal = &Error{Status: http.StatusInternalServerError, Message: "Internal server error"}
)

// NotFound is returned when a station has no reports.
func NotFound(station string) *Error {
	return &Error{Status: http.StatusNotFound, Message: fmt.Sprintf("Station '%s' not found", station)}
}
