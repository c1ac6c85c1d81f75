// Package router registers the HTTP routes and their middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/task-tracker/internal/config"
	"github.com/iliyamo/task-tracker/internal/handler"
	"github.com/iliyamo/task-tracker/internal/hub"
	"github.com/iliyamo/task-tracker/internal/middleware"
	"github.com/iliyamo/task-tracker/internal/model"
)

// Register wires every route of the API server. Credential endpoints
// sit behind the Redis rate limiter, the task list behind the response
// cache; both degrade to pass-through when rdb is nil.
func Register(
	e *echo.Echo,
	cfg config.Config,
	rdb *redis.Client,
	auth *handler.AuthHandler,
	tasks *handler.TaskHandler,
	users *handler.UsersHandler,
	notifications *handler.NotificationsHandler,
	liveHub *hub.Hub,
) {
	e.GET("/healthz", handler.Health)

	jwtAuth := middleware.JWTAuth(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	manage := middleware.RequireRole(model.RoleAdmin, model.RoleManager)
	adminOnly := middleware.RequireRole(model.RoleAdmin)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	// Credential endpoints: no session required, brute-force limited.
	ag := e.Group("/api/auth")
	ag.POST("/register", auth.Register, limiter)
	ag.POST("/login", auth.Login, limiter)
	ag.POST("/refresh-token", auth.Refresh, limiter)
	ag.POST("/logout", auth.Logout, jwtAuth)
	ag.GET("/me", auth.Me, jwtAuth)

	// Task endpoints: any authenticated role may read and change status;
	// create, update, delete and assign are for managers and admins.
	tg := e.Group("/api/tasks", jwtAuth)
	tg.GET("", tasks.List, cache)
	tg.GET("/my", tasks.My)
	tg.GET("/overdue", tasks.Overdue)
	tg.GET("/:id", tasks.Get)
	tg.POST("", tasks.Create, manage)
	tg.PUT("/:id", tasks.Update, manage)
	tg.DELETE("/:id", tasks.Delete, manage)
	tg.POST("/:id/assign", tasks.Assign, manage)
	tg.PATCH("/:id/status", tasks.UpdateStatus)

	// Administrative user management.
	ug := e.Group("/api/users", jwtAuth, manage)
	ug.GET("", users.List)
	ug.GET("/active", users.ListActive)
	ug.GET("/:id", users.Get)
	ug.PUT("/:id", users.Update)
	ug.POST("", users.Create, adminOnly)
	ug.DELETE("/:id", users.Delete, adminOnly)
	ug.PUT("/:id/role", users.UpdateRole, adminOnly)

	// Notification triggers.
	ng := e.Group("/api/notifications", jwtAuth)
	ng.POST("/email", notifications.SendEmail)
	ng.POST("/task-alert", notifications.SendTaskAlert)

	// Live-update channel. Carries only event-type strings, no data and
	// no credentials, so it is not behind JWT auth.
	e.GET("/hub/notifications", liveHub.Serve)
}
