// README: HTTP router registration (public reads, reservation writes, admin inventory routes).
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tourstay/internal/http/middleware"
)

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Logging(s.logger), middleware.Recovery(s.logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")
	api.GET("/departures/:id/availability", s.departures.GetAvailability)
	api.GET("/rooms/:id/availability", s.calendar.Read)
	api.POST("/quotes", s.pricing.Quote)

	reservations := api.Group("/reservations", middleware.Auth(s.verifier))
	reservations.POST("", s.departures.CreateReservation)
	reservations.GET("/:id", s.departures.GetReservation)
	reservations.PATCH("/:id", s.departures.UpdateReservation)
	reservations.POST("/:id/status", s.departures.ChangeReservationStatus)

	holds := api.Group("/rooms/:id/holds", middleware.Auth(s.verifier))
	holds.POST("", s.calendar.Hold)
	holds.DELETE("", s.calendar.Release)

	admin := api.Group("/admin", middleware.Auth(s.verifier), middleware.RequireRole(middleware.RoleAdmin))
	admin.POST("/departures", s.departures.CreateDeparture)
	admin.POST("/departure-recalculations", s.departures.RecalculateMany)
	admin.POST("/departures/:id/recalculate", s.departures.Recalculate)
	admin.POST("/departures/:id/cancel", s.departures.Cancel)
	admin.POST("/departures/:id/complete", s.departures.Complete)
	admin.DELETE("/reservations/:id", s.departures.DeleteReservation)
	admin.PUT("/rooms/:id/availability", s.calendar.Apply)
	admin.GET("/homestays/:id/pricing-rules", s.pricing.ListRules)
	admin.POST("/homestays/:id/pricing-rules", s.pricing.CreateRule)
	admin.POST("/pricing-rules/:id/status", s.pricing.SetRuleStatus)

	return r
}
