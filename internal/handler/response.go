package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Retry bool   `json:"retry,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{
		Error: err.Error(),
		Retry: code == http.StatusConflict || code == http.StatusServiceUnavailable,
	})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidCourierID),
		errors.Is(err, service.ErrInvalidOrderID),
		errors.Is(err, service.ErrInvalidBranchID),
		errors.Is(err, service.ErrInvalidCustomerID),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidOrderType),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrEmptyOrder):
		return http.StatusBadRequest

	// Illegal per the state machine - Unprocessable Entity
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrOrderTerminal),
		errors.Is(err, service.ErrNotDeliveryOrder),
		errors.Is(err, service.ErrCourierNotBound):
		return http.StatusUnprocessableEntity

	// Lost a concurrency race or exclusivity refusal - Conflict
	case errors.Is(err, service.ErrAssignmentConflict),
		errors.Is(err, service.ErrCourierBusy):
		return http.StatusConflict

	// Business rule / identity errors - Forbidden
	case errors.Is(err, service.ErrActorNotAllowed),
		errors.Is(err, service.ErrCourierInactive):
		return http.StatusForbidden

	// Live-state store down - Service Unavailable
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
