package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// AmbulanceHandler handles HTTP requests for the ambulance fleet.
type AmbulanceHandler struct {
	ambulanceService *service.AmbulanceService
}

// NewAmbulanceHandler creates a new AmbulanceHandler.
func NewAmbulanceHandler(ambulanceService *service.AmbulanceService) *AmbulanceHandler {
	return &AmbulanceHandler{ambulanceService: ambulanceService}
}

// RegisterAmbulanceRequest is the HTTP request body for ambulance registration.
type RegisterAmbulanceRequest struct {
	VehicleNumber string `json:"vehicle_number"`
	DriverName    string `json:"driver_name"`
	Phone         string `json:"phone"`
	DeviceToken   string `json:"device_token,omitempty"`
	BaseAddress   string `json:"base_address,omitempty"`
}

// UpdateLocationRequest is the HTTP request body for updating ambulance location.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UpdateDeviceTokenRequest is the HTTP request body for updating a push token.
type UpdateDeviceTokenRequest struct {
	DeviceToken string `json:"device_token"`
}

// AmbulanceResponse is the HTTP response for ambulance data.
type AmbulanceResponse struct {
	ID            string  `json:"id"`
	VehicleNumber string  `json:"vehicle_number"`
	DriverName    string  `json:"driver_name"`
	Phone         string  `json:"phone"`
	Status        string  `json:"status"`
	BaseAddress   string  `json:"base_address,omitempty"`
	HasApp        bool    `json:"has_app"`
	LastLat       float64 `json:"last_lat"`
	LastLng       float64 `json:"last_lng"`
}

// Register handles POST /v1/ambulances/register
func (h *AmbulanceHandler) Register(c *gin.Context) {
	var req RegisterAmbulanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ambulance, err := h.ambulanceService.Register(c.Request.Context(), service.RegisterAmbulanceRequest{
		VehicleNumber: req.VehicleNumber,
		DriverName:    req.DriverName,
		Phone:         req.Phone,
		DeviceToken:   req.DeviceToken,
		BaseAddress:   req.BaseAddress,
	})
	if errors.Is(err, service.ErrAmbulanceExists) {
		c.JSON(http.StatusConflict, gin.H{
			"message":   "Ambulance already registered",
			"ambulance": toAmbulanceResponse(ambulance),
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAmbulanceResponse(ambulance))
}

// GetAll handles GET /v1/ambulances
func (h *AmbulanceHandler) GetAll(c *gin.Context) {
	ambulances, err := h.ambulanceService.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]AmbulanceResponse, 0, len(ambulances))
	for _, a := range ambulances {
		response = append(response, toAmbulanceResponse(a))
	}

	c.JSON(http.StatusOK, response)
}

// UpdateLocation handles POST /v1/ambulances/:id/location
func (h *AmbulanceHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	err := h.ambulanceService.UpdateLocation(c.Request.Context(), service.UpdateLocationRequest{
		AmbulanceID: c.Param("id"),
		Lat:         req.Lat,
		Lng:         req.Lng,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UpdateDeviceToken handles PUT /v1/ambulances/:id/device-token
func (h *AmbulanceHandler) UpdateDeviceToken(c *gin.Context) {
	var req UpdateDeviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DeviceToken == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "device_token is required"})
		return
	}

	if err := h.ambulanceService.UpdateDeviceToken(c.Request.Context(), c.Param("id"), req.DeviceToken); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SetOffline handles POST /v1/ambulances/:id/offline
func (h *AmbulanceHandler) SetOffline(c *gin.Context) {
	if err := h.ambulanceService.SetOffline(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func toAmbulanceResponse(a *domain.Ambulance) AmbulanceResponse {
	return AmbulanceResponse{
		ID:            a.ID,
		VehicleNumber: a.VehicleNumber,
		DriverName:    a.DriverName,
		Phone:         a.Phone,
		Status:        string(a.Status),
		BaseAddress:   a.BaseAddress,
		HasApp:        a.DeviceToken != "",
		LastLat:       a.LastLatitude,
		LastLng:       a.LastLongitude,
	}
}
