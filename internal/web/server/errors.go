package server

import (
	"errors"
	"net/http"

	"github.com/conduit-lang/memdb/internal/orm/database"
	"github.com/conduit-lang/memdb/internal/orm/query"
	"github.com/conduit-lang/memdb/internal/orm/schema"
	"github.com/conduit-lang/memdb/internal/web/params"
)

var errRecordNotFound = errors.New("record not found")

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// statusFor maps store errors to HTTP statuses and error codes
func statusFor(err error) (int, string) {
	switch {
	case schema.IsUnknownEntity(err):
		return http.StatusNotFound, "unknown_entity"
	case errors.Is(err, errRecordNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, query.ErrUnknownRelation):
		return http.StatusBadRequest, "unknown_relation"
	case errors.Is(err, params.ErrInvalidParam),
		errors.Is(err, query.ErrInvalidOperator),
		schema.IsInvalidKeyShape(err):
		return http.StatusBadRequest, "bad_request"
	case database.IsNotStarted(err):
		return http.StatusServiceUnavailable, "not_started"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func renderError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	renderJSON(w, status, &ErrorResponse{
		Error:   "error",
		Message: err.Error(),
		Code:    code,
	})
}
