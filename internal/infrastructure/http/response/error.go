package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/infrastructure/blob"
)

// Error codes returned in ErrorDetail.Code. Clients map them back to domain errors.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeRoomConflict       = "ROOM_CONFLICT"
	CodeStaleTask          = "STALE_TASK"
	CodeActiveTask         = "ACTIVE_TASK_CONFLICT"
	CodeConflict           = "CONFLICT"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMedia   = "UNSUPPORTED_MEDIA_TYPE"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []ErrorField `json:"details,omitempty"`
}

// ErrorField describes a field-specific error.
type ErrorField struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// BadRequest sends a 400 Bad Request error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, CodeInvalidRequest, message, http.StatusBadRequest)
}

// ValidationError sends a 400 validation error with field details.
func ValidationError(w http.ResponseWriter, field, issue string) {
	write(w, http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    CodeValidation,
			Message: "validation failed",
			Details: []ErrorField{
				{Field: field, Issue: issue},
			},
		},
	})
}

// NotFound sends a 404 Not Found error.
func NotFound(w http.ResponseWriter, resource string) {
	Error(w, CodeNotFound, resource+" not found", http.StatusNotFound)
}

// Conflict sends a 409 Conflict error with a specific code.
func Conflict(w http.ResponseWriter, code, message string) {
	Error(w, code, message, http.StatusConflict)
}

// InternalError sends a 500 Internal Server Error.
// Logs the error server-side with request context but returns a generic message to the client.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		slog.ErrorContext(r.Context(), "Internal server error", "error", err)
	}
	Error(w, CodeInternal, "an internal error occurred", http.StatusInternalServerError)
}

// Error sends a generic error response.
func Error(w http.ResponseWriter, code, message string, statusCode int) {
	write(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// FromDomainError maps domain errors to HTTP responses.
func FromDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	// Field validation errors (400)
	case errors.Is(err, domain.ErrInvalidID):
		ValidationError(w, "id", "invalid ID format")
	case errors.Is(err, domain.ErrInvalidTaskStatus):
		ValidationError(w, "status", "invalid task status")
	case errors.Is(err, domain.ErrInvalidDate), errors.Is(err, domain.ErrDateRequired):
		ValidationError(w, "date", "expected YYYY-MM-DD")
	case errors.Is(err, domain.ErrRoomRequired):
		ValidationError(w, "room_id", "required field missing")
	case errors.Is(err, domain.ErrStaffRequired):
		ValidationError(w, "staff_id", "required field missing")
	case errors.Is(err, domain.ErrEmptyUpdateMask), errors.Is(err, domain.ErrUnknownField):
		ValidationError(w, "update_mask", err.Error())
	case errors.Is(err, blob.ErrInvalidName):
		ValidationError(w, "name", "invalid object name")
	case domain.IsValidation(err):
		Error(w, CodeValidation, err.Error(), http.StatusBadRequest)

	// Not found errors (404)
	case errors.Is(err, domain.ErrTaskNotFound):
		NotFound(w, "task")
	case errors.Is(err, domain.ErrRoomNotFound):
		NotFound(w, "room")
	case errors.Is(err, domain.ErrStaffNotFound):
		NotFound(w, "staff member")
	case errors.Is(err, blob.ErrNotFound):
		NotFound(w, "photo")
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, "resource")

	// Concurrency errors (409)
	case errors.Is(err, domain.ErrRoomConflict):
		Conflict(w, CodeRoomConflict, err.Error())
	case errors.Is(err, domain.ErrStaleTask):
		Conflict(w, CodeStaleTask, err.Error())
	case errors.Is(err, domain.ErrActiveTaskConflict):
		Conflict(w, CodeActiveTask, err.Error())
	case domain.IsConflict(err):
		Conflict(w, CodeConflict, err.Error())

	// Unknown errors (500) - Log server-side, return generic message to client
	default:
		InternalError(w, r, err)
	}
}
