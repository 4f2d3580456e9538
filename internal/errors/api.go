package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// NewAPIError creates a new APIError with the given parameters.
func NewAPIError(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

// Predefined API errors for common scenarios.
var (
	ErrInvalidRequest     = NewAPIError(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed   = NewAPIError(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")
	ErrNotFound           = NewAPIError(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrTemplateNotFound   = NewAPIError(http.StatusNotFound, "TEMPLATE_NOT_FOUND", "Template not found")
	ErrImportFailed       = NewAPIError(http.StatusUnprocessableEntity, "IMPORT_FAILED", "Import could not be completed")
	ErrInternalServer     = NewAPIError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrServiceUnavailable = NewAPIError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable")
)

// APIErrorFrom maps an ImportError onto an HTTP error response, carrying
// the recovery proposals as details when present.
func APIErrorFrom(err *ImportError, proposals []RecoveryProposal) *APIError {
	status := http.StatusUnprocessableEntity
	if !err.Recoverable {
		status = http.StatusInternalServerError
	}
	api := NewAPIError(status, string(err.Code), err.Message)
	if len(proposals) > 0 {
		api.Details = map[string]interface{}{"recovery_proposals": proposals}
	}
	return api
}

// ErrorResponse represents a standard error response envelope.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse creates a new error response.
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{Success: false, Error: err}
}

// Render implements the render.Renderer interface.
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}
