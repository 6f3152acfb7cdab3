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
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
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
	case errors.Is(err, service.ErrInvalidEmergencyType),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrMissingAddress),
		errors.Is(err, service.ErrInvalidBookingID),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidReply),
		errors.Is(err, service.ErrInvalidContact),
		errors.Is(err, service.ErrInvalidAmbulanceID),
		errors.Is(err, service.ErrInvalidVehicleNumber):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrAmbulanceExists),
		errors.Is(err, repository.ErrDuplicateID),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict

	// Service unavailable
	case errors.Is(err, service.ErrNoCandidateAvailable):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
