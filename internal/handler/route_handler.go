package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet-journeys/internal/service"
	"fleet-journeys/pkg/response"
)

// RouteHandler handles HTTP requests for route geometry and measurements.
type RouteHandler struct {
	service *service.JourneyService
}

// NewRouteHandler creates a new route handler.
func NewRouteHandler(service *service.JourneyService) *RouteHandler {
	return &RouteHandler{service: service}
}

// GetRoute handles GET /api/v1/vehicles/:vehicle/route?date=YYYY-MM-DD
func (h *RouteHandler) GetRoute(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		response.Error(c, http.StatusBadRequest, "date is required", nil)
		return
	}

	samples, err := h.service.RawRoute(c.Request.Context(), c.Param("vehicle"), date)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get route", err)
		return
	}
	response.Success(c, samples)
}

// GetMatchedRoute handles GET /api/v1/vehicles/:vehicle/route/matched?date=YYYY-MM-DD
func (h *RouteHandler) GetMatchedRoute(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		response.Error(c, http.StatusBadRequest, "date is required", nil)
		return
	}

	points, err := h.service.MatchedRoute(c.Request.Context(), c.Param("vehicle"), date)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to reconstruct route", err)
		return
	}
	response.Success(c, points)
}

// MeasureRequest is the body of POST /api/v1/measure.
type MeasureRequest struct {
	VehicleID string `json:"vehicle_id" binding:"required"`
	TripDate  string `json:"trip_date" binding:"required"`
	StartTS   int64  `json:"start_ts" binding:"required"`
	EndTS     int64  `json:"end_ts" binding:"required"`
}

// Measure handles POST /api/v1/measure
func (h *RouteHandler) Measure(c *gin.Context) {
	var req MeasureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	m, err := h.service.Measure(c.Request.Context(), req.VehicleID, req.TripDate, req.StartTS, req.EndTS)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to measure", err)
		return
	}
	response.Success(c, m)
}
