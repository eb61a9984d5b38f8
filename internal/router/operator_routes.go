package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/handler"    // operator handlers
	"github.com/iliyamo/studio-booking/internal/middleware" // JWT + role middlewares
)

// RegisterOperator registers staff-scoped endpoints under /v1/operator.
// All routes require a valid JWT with the operator role.
func RegisterOperator(e *echo.Echo, o *handler.OperatorHandler, jwtSecret string) {
	// Attach middlewares at group construction time for clarity.
	g := e.Group(
		"/v1/operator",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(handler.RoleOperator),
	)

	// ---- Bookings ----
	g.GET("/bookings", o.ListBookings)
	g.GET("/bookings/:id", o.GetBooking)
	g.POST("/bookings/:id/confirm", o.Confirm)
	g.POST("/bookings/:id/cancel", o.Cancel)
	g.POST("/bookings/:id/complete", o.Complete)

	// ---- Settings ----
	g.GET("/settings", o.GetSettings)
	g.PUT("/settings", o.UpdateSettings)
}
