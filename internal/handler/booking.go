package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// BookingHandler handles HTTP requests for emergency bookings.
type BookingHandler struct {
	dispatchService *service.DispatchService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(dispatchService *service.DispatchService) *BookingHandler {
	return &BookingHandler{dispatchService: dispatchService}
}

// CreateBookingRequest is the HTTP request body for creating a booking.
type CreateBookingRequest struct {
	EmergencyType string          `json:"emergency_type"`
	Location      LocationPayload `json:"location"`
}

// UpdateStatusRequest is the HTTP request body for an operator status change.
type UpdateStatusRequest struct {
	Status         string `json:"status"`
	DriverResponse string `json:"driver_response,omitempty"`
}

// LocationPayload is a patient location.
type LocationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// CandidatePayload is the subset of the assigned candidate shown to clients.
type CandidatePayload struct {
	VehicleID        string `json:"vehicle_id"`
	DriverContact    string `json:"driver_contact"`
	CandidateAddress string `json:"candidate_address"`
}

// NotificationPayload reports how the driver notification went.
type NotificationPayload struct {
	Sent       bool   `json:"sent"`
	RetryCount int    `json:"retry_count"`
	Error      string `json:"error,omitempty"`
}

// StatusEntryPayload is one history entry.
type StatusEntryPayload struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Details   string `json:"details"`
}

// CreateBookingResponse is the HTTP response for creating a booking.
type CreateBookingResponse struct {
	BookingID         string              `json:"booking_id"`
	Status            string              `json:"status"`
	EmergencyType     string              `json:"emergency_type"`
	Location          LocationPayload     `json:"location"`
	AssignedCandidate CandidatePayload    `json:"assigned_candidate"`
	Notification      NotificationPayload `json:"notification"`
	CreatedAt         string              `json:"created_at"`
}

// GetBookingResponse is the HTTP response for getting a booking.
type GetBookingResponse struct {
	BookingID         string               `json:"booking_id"`
	Status            string               `json:"status"`
	EmergencyType     string               `json:"emergency_type"`
	Location          LocationPayload      `json:"location"`
	AssignedCandidate CandidatePayload     `json:"assigned_candidate"`
	StatusHistory     []StatusEntryPayload `json:"status_history"`
	Round             int                  `json:"round"`
	CreatedAt         string               `json:"created_at"`
	UpdatedAt         string               `json:"updated_at"`
}

// UpdateStatusResponse is the HTTP response for an operator status change.
type UpdateStatusResponse struct {
	Booking      GetBookingResponse   `json:"booking"`
	Applied      bool                 `json:"applied"`
	Reassigned   bool                 `json:"reassigned"`
	Cancelled    bool                 `json:"cancelled"`
	Confirmation *NotificationPayload `json:"confirmation,omitempty"`
	Dispatch     *NotificationPayload `json:"dispatch,omitempty"`
}

// CreateBooking handles POST /v1/emergency-bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.dispatchService.CreateBooking(c.Request.Context(), service.CreateBookingRequest{
		EmergencyType: req.EmergencyType,
		Latitude:      req.Location.Latitude,
		Longitude:     req.Location.Longitude,
		Address:       req.Location.Address,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	b := result.Booking
	respondJSON(c, http.StatusCreated, CreateBookingResponse{
		BookingID:         b.ID,
		Status:            string(b.Status),
		EmergencyType:     string(b.EmergencyType),
		Location:          toLocationPayload(b.Location),
		AssignedCandidate: toCandidatePayload(b.Candidate),
		Notification:      toNotificationPayload(result.Notification),
		CreatedAt:         b.CreatedAt.Format(time.RFC3339),
	})
}

// GetBooking handles GET /v1/emergency-bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.dispatchService.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toGetBookingResponse(booking))
}

// GetAll handles GET /v1/emergency-bookings
func (h *BookingHandler) GetAll(c *gin.Context) {
	bookings, err := h.dispatchService.ListBookings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]GetBookingResponse, len(bookings))
	for i, b := range bookings {
		response[i] = toGetBookingResponse(b)
	}

	respondJSON(c, http.StatusOK, response)
}

// UpdateStatus handles PUT /v1/emergency-bookings/:id/status
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.dispatchService.UpdateStatus(c.Request.Context(), service.UpdateStatusRequest{
		BookingID:      c.Param("id"),
		Status:         req.Status,
		DriverResponse: req.DriverResponse,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toUpdateStatusResponse(result))
}

func toUpdateStatusResponse(r *service.DecisionResult) UpdateStatusResponse {
	resp := UpdateStatusResponse{
		Booking:    toGetBookingResponse(r.Booking),
		Applied:    r.Applied,
		Reassigned: r.Reassigned,
		Cancelled:  r.Cancelled,
	}
	if r.Confirmation != nil {
		n := toNotificationPayload(*r.Confirmation)
		resp.Confirmation = &n
	}
	if r.Dispatch != nil {
		n := toNotificationPayload(*r.Dispatch)
		resp.Dispatch = &n
	}
	return resp
}

func toGetBookingResponse(b *domain.Booking) GetBookingResponse {
	history := make([]StatusEntryPayload, len(b.History))
	for i, e := range b.History {
		history[i] = StatusEntryPayload{
			Status:    string(e.Status),
			Timestamp: e.Timestamp.Format(time.RFC3339),
			Details:   e.Details,
		}
	}
	return GetBookingResponse{
		BookingID:         b.ID,
		Status:            string(b.Status),
		EmergencyType:     string(b.EmergencyType),
		Location:          toLocationPayload(b.Location),
		AssignedCandidate: toCandidatePayload(b.Candidate),
		StatusHistory:     history,
		Round:             b.Round,
		CreatedAt:         b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         b.UpdatedAt.Format(time.RFC3339),
	}
}

func toLocationPayload(l domain.Location) LocationPayload {
	return LocationPayload{Latitude: l.Latitude, Longitude: l.Longitude, Address: l.Address}
}

func toCandidatePayload(c domain.Candidate) CandidatePayload {
	return CandidatePayload{VehicleID: c.VehicleID, DriverContact: c.DriverContact, CandidateAddress: c.Address}
}

func toNotificationPayload(o service.DeliveryOutcome) NotificationPayload {
	return NotificationPayload{Sent: o.Sent, RetryCount: o.Attempts, Error: o.LastError}
}
