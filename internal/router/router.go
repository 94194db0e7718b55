// Package router maps the HTTP surface onto the handlers and applies the
// auth, role, cache and rate-limit middleware per route.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// Handlers groups every handler the router mounts.
type Handlers struct {
	Health   handler.Health
	Auth     *handler.AuthHandler
	Events   *handler.EventHandler
	Tickets  *handler.TicketHandler
	Payments *handler.PaymentHandler
	Catalog  *handler.CatalogHandler
	Admin    *handler.AdminHandler
}

// Options carries the middleware settings. A nil Redis disables caching
// and rate limiting.
type Options struct {
	JWTSecret string
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Log       *logrus.Logger
}

// Register mounts all routes on e.
func Register(e *echo.Echo, h Handlers, o Options) {
	cache := middleware.NewRedisCache(o.Cache, o.Redis)
	limit := middleware.NewTokenBucket(o.RateLimit, o.Redis, o.Log)
	auth := middleware.JWTAuth(o.JWTSecret)
	organizer := middleware.RequireRoles(model.RoleOrganizer, model.RoleAdmin)
	staff := middleware.RequireRoles(model.RoleStaff, model.RoleAdmin)
	admin := middleware.RequireRoles(model.RoleAdmin)

	e.GET("/healthz", h.Health.Check)
	e.GET("/metrics", metrics.Handler())

	v1 := e.Group("/v1")

	// public
	v1.GET("/events", h.Events.List)
	v1.GET("/events/:id", h.Events.Get)
	v1.GET("/events/:id/availability", h.Events.Availability, cache)
	v1.GET("/events/:id/ticket-types", h.Events.TicketTypes, cache)
	v1.GET("/ticket-types", h.Catalog.TicketTypes, cache)
	v1.GET("/departments", h.Catalog.Departments, cache)
	v1.GET("/departments/:id/cities", h.Catalog.Cities, cache)
	v1.POST("/payments/payu/confirmation", h.Payments.Confirmation)
	v1.POST("/payments/payu/webhook", h.Payments.Confirmation)

	a := v1.Group("/auth")
	a.POST("/register", h.Auth.Register, limit)
	a.POST("/login", h.Auth.Login, limit)
	a.POST("/refresh", h.Auth.Refresh)
	a.POST("/refresh-access", h.Auth.RefreshAccess)
	a.POST("/logout", h.Auth.Logout)

	me := v1.Group("/me", auth)
	me.GET("", h.Auth.Me)
	me.PATCH("", h.Auth.UpdateMe)
	me.POST("/password", h.Auth.ChangePassword)
	me.GET("/tickets", h.Tickets.Mine)
	me.GET("/events", h.Events.Attending)
	me.GET("/payments", h.Payments.History)

	v1.POST("/events/:id/tickets", h.Tickets.Purchase, auth, limit)
	v1.POST("/tickets/:id/pay", h.Payments.Init, auth, limit)
	v1.POST("/tickets/validate", h.Tickets.Validate, auth, staff)
	v1.GET("/tickets/:id", h.Tickets.Get, auth)
	v1.GET("/tickets/:id/access-logs", h.Tickets.AccessLogs, auth, staff)

	v1.POST("/events", h.Events.Create, auth, organizer)
	v1.PUT("/events/:id", h.Events.Update, auth, organizer)
	v1.POST("/events/:id/cancel", h.Events.Cancel, auth, organizer)
	v1.DELETE("/events/:id", h.Events.Delete, auth, organizer)
	v1.GET("/organizer/events", h.Events.Mine, auth, organizer)
	v1.POST("/ticket-types", h.Catalog.CreateTicketType, auth, organizer)

	adm := v1.Group("/admin", auth, admin)
	adm.PATCH("/tickets/:id", h.Tickets.Update)
	adm.POST("/tickets/:id/cancel", h.Tickets.Cancel)
	adm.GET("/events/:id/attendees", h.Events.Attendees)
	adm.GET("/events/:id/changes", h.Events.Changes)
	adm.GET("/users", h.Admin.ListUsers)
	adm.POST("/users/:id/roles/:role", h.Admin.AssignRole)
	adm.DELETE("/users/:id/roles/:role", h.Admin.RemoveRole)
	adm.GET("/users/:id/changes", h.Admin.UserChanges)
}
