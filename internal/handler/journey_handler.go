package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet-journeys/internal/models"
	"fleet-journeys/internal/service"
	"fleet-journeys/pkg/response"
)

// JourneyHandler handles HTTP requests for journeys and dates.
type JourneyHandler struct {
	service *service.JourneyService
	fleet   []models.VehicleConfig
}

// NewJourneyHandler creates a new journey handler.
func NewJourneyHandler(service *service.JourneyService, fleet []models.VehicleConfig) *JourneyHandler {
	return &JourneyHandler{service: service, fleet: fleet}
}

// GetVehicles handles GET /api/v1/vehicles
func (h *JourneyHandler) GetVehicles(c *gin.Context) {
	ids := make([]string, 0, len(h.fleet))
	for _, v := range h.fleet {
		ids = append(ids, v.ID())
	}
	response.Success(c, ids)
}

// GetAllDates handles GET /api/v1/dates
func (h *JourneyHandler) GetAllDates(c *gin.Context) {
	dates, err := h.service.AllDates(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get dates", err)
		return
	}
	response.Success(c, dates)
}

// GetDates handles GET /api/v1/vehicles/:vehicle/dates
func (h *JourneyHandler) GetDates(c *gin.Context) {
	dates, err := h.service.Dates(c.Request.Context(), c.Param("vehicle"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get dates", err)
		return
	}
	response.Success(c, dates)
}

// GetJourneys handles GET /api/v1/vehicles/:vehicle/journeys?date=YYYY-MM-DD
func (h *JourneyHandler) GetJourneys(c *gin.Context) {
	journeys, err := h.service.Journeys(c.Request.Context(), c.Param("vehicle"), c.Query("date"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get journeys", err)
		return
	}
	response.Success(c, journeys)
}
