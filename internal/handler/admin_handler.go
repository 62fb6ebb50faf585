package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleet-journeys/internal/tracker"
	"fleet-journeys/pkg/response"
)

// AdminHandler exposes the janitor and the corrector as preview/apply
// operations.
type AdminHandler struct {
	janitor   *tracker.Janitor
	corrector *tracker.Corrector
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(janitor *tracker.Janitor, corrector *tracker.Corrector) *AdminHandler {
	return &AdminHandler{janitor: janitor, corrector: corrector}
}

// RunJanitor handles POST /api/v1/admin/janitor?apply=true
func (h *AdminHandler) RunJanitor(c *gin.Context) {
	apply := c.Query("apply") == "true"

	stale, err := h.janitor.Sweep(c.Request.Context(), time.Now(), apply)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Janitor sweep failed", err)
		return
	}
	response.Success(c, gin.H{"applied": apply, "stale": stale})
}

// RunCorrector handles POST /api/v1/admin/corrector?apply=true
func (h *AdminHandler) RunCorrector(c *gin.Context) {
	apply := c.Query("apply") == "true"

	candidates, err := h.corrector.Run(c.Request.Context(), apply)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Corrector run failed", err)
		return
	}
	response.Success(c, gin.H{"applied": apply, "candidates": candidates})
}
