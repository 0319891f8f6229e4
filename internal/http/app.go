// Package http holds the pieces shared by the router and the domain modules
// that mount routes on it.
package http

import (
	"context"

	"lead_engine_backend/platform/config"
	"lead_engine_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// RouterConfig is the configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
}

// HealthChecker backs GET /api/health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Module mounts one bounded context's routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is handed to every Module during registration.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is /api/v1, already behind the per-IP limiter.
	V1 *gin.RouterGroup
	// SendLimit guards routes that dispatch messages. One limiter is shared by all modules.
	SendLimit gin.HandlerFunc
}

// App is assembled by the composition root and consumed by router.New.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Nil reports healthy.
	Health  HealthChecker
	Modules []Module
}
