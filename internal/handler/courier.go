package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// CourierHandler handles HTTP requests for couriers.
type CourierHandler struct {
	courierService *service.CourierService
	courierRepo    repository.CourierRepository
}

// NewCourierHandler creates a new CourierHandler.
func NewCourierHandler(courierService *service.CourierService, courierRepo repository.CourierRepository) *CourierHandler {
	return &CourierHandler{
		courierService: courierService,
		courierRepo:    courierRepo,
	}
}

// RegisterCourierRequest is the HTTP request body for registering a courier.
type RegisterCourierRequest struct {
	BranchID    string `json:"branch_id"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	VehicleType string `json:"vehicle_type,omitempty"` // BIKE, CAR, FOOT
}

// ReportLocationRequest is the HTTP request body for a location report.
type ReportLocationRequest struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	ReportedAt string  `json:"reported_at,omitempty"` // RFC3339; empty means now
}

// SetOnlineRequest is the HTTP request body for a shift toggle.
type SetOnlineRequest struct {
	Online bool `json:"online"`
}

// CourierResponse is the HTTP representation of a courier.
type CourierResponse struct {
	ID          string  `json:"id"`
	BranchID    string  `json:"branch_id"`
	Name        string  `json:"name"`
	Phone       string  `json:"phone"`
	VehicleType string  `json:"vehicle_type"`
	Rating      float64 `json:"rating"`
	IsOnline    bool    `json:"is_online"`
	IsAvailable bool    `json:"is_available"`
	IsActive    bool    `json:"is_active"`
}

// CandidateResponse is one entry of the ranked candidate listing.
type CandidateResponse struct {
	CourierResponse
	Lat        float64 `json:"lat,omitempty"`
	Lng        float64 `json:"lng,omitempty"`
	ReportedAt string  `json:"reported_at,omitempty"`
	Fresh      bool    `json:"fresh"`
}

// LocationResponse is the HTTP representation of a location.
type LocationResponse struct {
	CourierID  string  `json:"courier_id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	ReportedAt string  `json:"reported_at"`
	Fresh      bool    `json:"fresh"`
}

func toCourierResponse(c *domain.Courier) CourierResponse {
	return CourierResponse{
		ID:          c.ID,
		BranchID:    c.BranchID,
		Name:        c.Name,
		Phone:       c.Phone,
		VehicleType: string(c.VehicleType),
		Rating:      c.Rating,
		IsOnline:    c.IsOnline,
		IsAvailable: c.IsAvailable,
		IsActive:    c.IsActive,
	}
}

// Register handles POST /v1/couriers/register
func (h *CourierHandler) Register(c *gin.Context) {
	var req RegisterCourierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	vehicleType := domain.VehicleType(req.VehicleType)
	if vehicleType == "" {
		vehicleType = domain.VehicleTypeBike
	}

	courier, err := h.courierService.Register(c.Request.Context(), service.RegisterCourierRequest{
		BranchID:    req.BranchID,
		Name:        req.Name,
		Phone:       req.Phone,
		VehicleType: vehicleType,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toCourierResponse(courier))
}

// ReportLocation handles POST /v1/couriers/:id/location
func (h *CourierHandler) ReportLocation(c *gin.Context) {
	courierID := c.Param("id")

	var req ReportLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var reportedAt time.Time
	if req.ReportedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ReportedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid reported_at"})
			return
		}
		reportedAt = parsed
	}

	err := h.courierService.ReportLocation(c.Request.Context(), service.ReportLocationRequest{
		CourierID:  courierID,
		Lat:        req.Lat,
		Lng:        req.Lng,
		ReportedAt: reportedAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// GetLocation handles GET /v1/couriers/:id/location
func (h *CourierHandler) GetLocation(c *gin.Context) {
	courierID := c.Param("id")

	point, err := h.courierService.GetLocation(c.Request.Context(), courierID)
	if err != nil {
		respondError(c, err)
		return
	}

	if point == nil {
		respondJSON(c, http.StatusOK, gin.H{"courier_id": courierID, "known": false})
		return
	}

	respondJSON(c, http.StatusOK, LocationResponse{
		CourierID:  courierID,
		Lat:        point.Lat,
		Lng:        point.Lng,
		ReportedAt: point.RecordedAt.Format(time.RFC3339),
		Fresh:      point.Fresh(time.Now()),
	})
}

// SetOnline handles POST /v1/couriers/:id/online
func (h *CourierHandler) SetOnline(c *gin.Context) {
	courierID := c.Param("id")

	var req SetOnlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.courierService.SetOnline(c.Request.Context(), courierID, req.Online); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"status": "ok", "online": req.Online})
}

// ListCandidates handles GET /v1/branches/:id/couriers
func (h *CourierHandler) ListCandidates(c *gin.Context) {
	branchID := c.Param("id")

	candidates, err := h.courierService.ListCandidates(c.Request.Context(), branchID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]CandidateResponse, 0, len(candidates))
	for _, candidate := range candidates {
		entry := CandidateResponse{
			CourierResponse: toCourierResponse(candidate.Courier),
			Fresh:           candidate.Fresh,
		}
		if candidate.Location != nil {
			entry.Lat = candidate.Location.Lat
			entry.Lng = candidate.Location.Lng
			entry.ReportedAt = candidate.Location.RecordedAt.Format(time.RFC3339)
		}
		response = append(response, entry)
	}

	respondJSON(c, http.StatusOK, response)
}

// FindNearby handles GET /v1/couriers/nearby?lat=&lng=&radius_km=
func (h *CourierHandler) FindNearby(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid lat"})
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid lng"})
		return
	}
	radiusKm := 0.0
	if raw := c.Query("radius_km"); raw != "" {
		radiusKm, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid radius_km"})
			return
		}
	}

	candidates, err := h.courierService.FindNearby(c.Request.Context(), lat, lng, radiusKm)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]CandidateResponse, 0, len(candidates))
	for _, candidate := range candidates {
		entry := CandidateResponse{
			CourierResponse: toCourierResponse(candidate.Courier),
			Fresh:           candidate.Fresh,
		}
		if candidate.Location != nil {
			entry.Lat = candidate.Location.Lat
			entry.Lng = candidate.Location.Lng
			entry.ReportedAt = candidate.Location.RecordedAt.Format(time.RFC3339)
		}
		response = append(response, entry)
	}

	respondJSON(c, http.StatusOK, response)
}

// GetByID handles GET /v1/couriers/:id
func (h *CourierHandler) GetByID(c *gin.Context) {
	courier, err := h.courierService.GetCourier(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toCourierResponse(courier))
}

// ListAvailable handles GET /v1/couriers/available
func (h *CourierHandler) ListAvailable(c *gin.Context) {
	couriers, err := h.courierService.ListAvailable(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]CourierResponse, 0, len(couriers))
	for _, courier := range couriers {
		response = append(response, toCourierResponse(courier))
	}

	respondJSON(c, http.StatusOK, response)
}

// GetAll handles GET /v1/couriers
func (h *CourierHandler) GetAll(c *gin.Context) {
	couriers, err := h.courierRepo.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]CourierResponse, 0, len(couriers))
	for _, courier := range couriers {
		response = append(response, toCourierResponse(courier))
	}

	c.JSON(http.StatusOK, response)
}

// Deactivate handles POST /v1/couriers/:id/deactivate
func (h *CourierHandler) Deactivate(c *gin.Context) {
	courierID := c.Param("id")

	if err := h.courierService.Deactivate(c.Request.Context(), courierID); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}
