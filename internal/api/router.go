package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"fleet-journeys/internal/handler"
)

// SetupRouter wires the query surface.
func SetupRouter(journeys *handler.JourneyHandler, routes *handler.RouteHandler, admin *handler.AdminHandler, metricsHandler http.Handler) *gin.Engine {
	r := gin.Default()
	r.Use(cors.Default())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Fleet journey tracker is running",
		})
	})
	r.GET("/metrics", gin.WrapH(metricsHandler))

	api := r.Group("/api/v1")
	{
		api.GET("/vehicles", journeys.GetVehicles)
		api.GET("/dates", journeys.GetAllDates)

		vehicles := api.Group("/vehicles/:vehicle")
		{
			vehicles.GET("/dates", journeys.GetDates)
			vehicles.GET("/journeys", journeys.GetJourneys)
			vehicles.GET("/route", routes.GetRoute)
			vehicles.GET("/route/matched", routes.GetMatchedRoute)
		}

		api.POST("/measure", routes.Measure)

		adminGroup := api.Group("/admin")
		{
			adminGroup.POST("/janitor", admin.RunJanitor)
			adminGroup.POST("/corrector", admin.RunCorrector)
		}
	}

	return r
}
