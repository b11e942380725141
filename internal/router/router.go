package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/freight-load-board/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/freight-load-board/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated load board endpoints.  These
// routes serve guests (and drivers browsing before they sign in) sanitized
// views of AVAILABLE loads only; no JWT or role middleware applies here.
// The optional cache middleware is threaded through so search responses can
// be served from Redis when caching is enabled.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	// Search available loads with filters, sort and pagination.
	if cache != nil {
		e.GET("/v1/loads", p.SearchLoads, cache)
		e.GET("/v1/loads/:id", p.GetLoad, cache)
		return
	}
	e.GET("/v1/loads", p.SearchLoads)
	e.GET("/v1/loads/:id", p.GetLoad)
}

// RegisterBroker registers every endpoint reserved for users holding the
// BROKER role: posting and maintaining loads, and deciding the fate of
// bookings made against them.  All routes in this group require a valid
// access token and the BROKER role.
func RegisterBroker(e *echo.Echo, b *handler.BrokerHandler, jwtSecret string) {
	g := e.Group("/v1")
	// Apply the JWTAuth middleware to the protected group using the provided secret.
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(middleware.RoleBroker))

	// Post a new load onto the board.
	g.POST("/loads", b.CreateLoad)
	// Owner views of the broker's own loads, regardless of status.
	g.GET("/my-loads", b.ListMyLoads)
	g.GET("/my-loads/:id", b.GetMyLoad)
	// Edit a still-AVAILABLE load's details.
	g.PUT("/my-loads/:id", b.UpdateLoad)
	// Withdraw a load from the board, or put a rejected one back on it.
	g.POST("/my-loads/:id/cancel", b.CancelLoad)
	g.POST("/my-loads/:id/relist", b.RelistLoad)
	// Every booking ever made against one of the broker's loads.
	g.GET("/my-loads/:id/bookings", b.ListLoadBookings)

	// Booking decisions.  Confirm and reject act on PENDING bookings;
	// complete settles a DELIVERED one and records payment.
	g.POST("/bookings/:id/confirm", b.ConfirmBooking)
	g.POST("/bookings/:id/reject", b.RejectBooking)
	g.POST("/bookings/:id/complete", b.CompleteBooking)
}

// RegisterDriver registers every endpoint reserved for users holding the
// DRIVER role: claiming loads and reporting progress on the haul.
func RegisterDriver(e *echo.Echo, d *handler.DriverHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(middleware.RoleDriver))

	// Claim an AVAILABLE load.  When two drivers race for the same load the
	// compare-and-swap inside the booking transaction picks exactly one
	// winner; the other request receives a 409.
	g.POST("/loads/:id/book", d.CreateBooking)
	// Progress reports on an accepted haul.
	g.POST("/bookings/:id/pickup", d.MarkPickedUp)
	g.POST("/bookings/:id/delivery", d.MarkDelivered)
	// The driver's own booking history, newest first.
	g.GET("/my-bookings", d.ListMyBookings)
}

// RegisterShared registers endpoints available to both roles.  GET
// /v1/bookings/:id serves whichever side of the deal asks for it: the driver
// who holds the booking or the broker who owns the load.
func RegisterShared(e *echo.Echo, d *handler.DriverHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(middleware.RoleBroker, middleware.RoleDriver))

	g.GET("/bookings/:id", d.GetBooking)
}
