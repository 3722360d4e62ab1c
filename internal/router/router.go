// Package router defines how HTTP routes are registered for the API.
package router

import (
    "github.com/labstack/echo/v4"

    "github.com/dinebook/table-reservation/internal/handler"
    "github.com/dinebook/table-reservation/internal/middleware"
    "github.com/dinebook/table-reservation/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
    // Used by load balancers and monitoring systems to verify the service is up.
    e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware. Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
    g := e.Group("/v1/auth")
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    // /refresh rotates the refresh token; /refresh-access issues a new
    // access token without rotation.
    g.POST("/refresh", a.Refresh)
    g.POST("/refresh-access", a.RefreshAccess)
    // Logout does not require JWT authentication. The handler accepts a
    // JSON body containing a `refresh_token` and invalidates that token.
    g.POST("/logout", a.Logout)

    auth := e.Group("/v1")
    auth.Use(middleware.JWTAuth(jwtSecret))
    auth.Use(middleware.RequireRole(model.RoleGuest, model.RoleManager))
    auth.GET("/me", a.Me)

    // Top-level alias so clients can call either /v1/auth/logout or
    // /v1/logout with a valid refresh token in the body.
    e.POST("/v1/logout", a.Logout)
}

// RegisterPublic registers unauthenticated browse endpoints. These return
// restaurant listings, meal services and availability snapshots, and are
// wrapped with the Redis response cache since they are read-heavy and
// tolerate short staleness.
func RegisterPublic(e *echo.Echo, p *handler.AvailabilityHandler, cache echo.MiddlewareFunc) {
    e.GET("/v1/restaurants", p.ListRestaurants, cache)
    e.GET("/v1/restaurants/:id/meal-services", p.ListMealServices, cache)
    // Availability sweeps expired holds before reading, so the snapshot is
    // current as of the request minus the cache TTL.
    e.GET("/v1/restaurants/:id/availability", p.Availability, cache)
}

// RegisterGuest registers the reservation endpoints available to any
// authenticated user. Managers are allowed too so they can make their own
// bookings; restaurant administration lives under RegisterManager.
func RegisterGuest(e *echo.Echo, b *handler.BookingHandler, cx *handler.CancellationHandler, jwtSecret string) {
    g := e.Group("/v1")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole(model.RoleGuest, model.RoleManager))

    // Buffet-only bookings confirm immediately against the capacity ledger.
    g.POST("/restaurants/:id/buffet-bookings", b.BookBuffet)

    // Table bookings are two-phase: hold, then confirm. Holds expire on
    // their own if the guest walks away.
    g.POST("/restaurants/:id/holds", b.HoldTables)
    g.POST("/restaurants/:id/confirm", b.ConfirmTables)
    g.DELETE("/restaurants/:id/holds", b.ReleaseHolds)

    g.GET("/reservations", b.ListMine)
    g.GET("/reservations/:id", b.GetMine)

    g.GET("/reservations/:id/refund-quote", cx.QuoteRefund)
    g.POST("/reservations/:id/cancel", cx.Cancel)
}

// RegisterManager registers venue administration endpoints under /v1/admin.
// The role middleware admits only MANAGER tokens; per-restaurant ownership
// is verified in the service layer.
func RegisterManager(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
    g := e.Group("/v1/admin")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole(model.RoleManager))

    g.POST("/restaurants/:id/capacity", a.PopulateCapacity)
    g.POST("/restaurants/:id/capacity/disable", a.DisableDay)
    g.POST("/restaurants/:id/slots/status", a.SetSlotStatus)
    g.GET("/restaurants/:id/reservations", a.ListReservations)
}
