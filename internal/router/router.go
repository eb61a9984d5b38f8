package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/studio-booking/internal/handler" // import the handlers that implement business logic
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring systems probe this endpoint to
	// verify that the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the operator login endpoint.  There is no
// registration or refresh: the studio runs on one operator account
// configured via environment variables, and access tokens are simply
// re-issued by logging in again.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
}

// RegisterPublic registers the customer-facing API: catalog browsing,
// availability queries, quotes and the booking flow.  None of it
// requires authentication; a booking is addressed by the unguessable
// UUID returned at creation.
//
// cache wraps the read-heavy catalog and availability GETs; limiter
// wraps the endpoints a misbehaving client could use to hammer the
// database or the payment provider.  Either may be nil.
func RegisterPublic(e *echo.Echo, cat *handler.CatalogHandler, av *handler.AvailabilityHandler, bk *handler.BookingHandler, pay *handler.PaymentHandler, cache, limiter echo.MiddlewareFunc) {
	cached := []echo.MiddlewareFunc{}
	if cache != nil {
		cached = append(cached, cache)
	}
	limited := []echo.MiddlewareFunc{}
	if limiter != nil {
		limited = append(limited, limiter)
	}

	// ---- Catalog ----
	e.GET("/v1/locations", cat.ListLocations, cached...)
	e.GET("/v1/addons", cat.ListAddOns, cached...)
	e.GET("/v1/inventory", cat.ListInventory, cached...)

	// ---- Availability ----
	e.GET("/v1/locations/:id/slots", av.Slots, cached...)
	e.GET("/v1/locations/:id/next-free", av.NextFree, cached...)
	e.POST("/v1/quote", av.Quote, limited...)

	// ---- Bookings ----
	e.POST("/v1/bookings", bk.Create, limited...)
	e.GET("/v1/bookings/:id", bk.Get)
	e.GET("/v1/bookings/:id/checkout", bk.Checkout)

	// ---- Payments ----
	// The webhook is what the provider's servers call; the status
	// endpoint is what the customer's browser polls while waiting.
	e.POST("/v1/payments/callback", pay.Webhook)
	e.GET("/v1/bookings/:id/payment/status", pay.CheckStatus, limited...)
}
