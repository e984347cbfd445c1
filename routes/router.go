package routes

import (
	"context"
	"net/http"
	"time"

	"masterclass-pods/internal/auth"
	"masterclass-pods/internal/delivery"
	"masterclass-pods/internal/pod"
	"masterclass-pods/internal/telemetry"
	"masterclass-pods/middleware"
	"masterclass-pods/models"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
)

// AuditStore is the read side of the admin audit log.
type AuditStore interface {
	QueryAuditLogs(ctx context.Context, filter bson.M, page, pageSize int) ([]models.AuditEvent, int64, error)
	VerifyChain(ctx context.Context, actorID string) (bool, int, error)
}

// Deps holds what the HTTP handlers need. Redis, Audit and Metrics are
// optional.
type Deps struct {
	Manager     *pod.Manager
	Poller      *delivery.Poller
	Tokens      *auth.TokenService
	Blueprints  []models.Blueprint
	Redis       redis.Cmdable
	Auditor     middleware.Auditor
	Audit       AuditStore
	Metrics     *telemetry.Metrics
	CORSOrigins []string
	RateLimit   int
	RateWindow  time.Duration
	ServiceName string
}

// SetupRouter builds the gin engine with the middleware chain and all routes.
func SetupRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	if d.ServiceName != "" {
		router.Use(middleware.TracingMiddleware(d.ServiceName))
	}
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(d.Metrics))
	if len(d.CORSOrigins) > 0 {
		router.Use(middleware.CORSMiddlewareWithOrigins(d.CORSOrigins))
	}
	router.Use(middleware.RequestSizeLimit(1 << 20))
	router.Use(middleware.RateLimitMiddleware(d.Redis, d.RateLimit, d.RateWindow))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	authMiddleware := middleware.NewAuthMiddleware(d.Tokens)

	SetupAuthRoutes(router, d.Tokens)
	SetupPodRoutes(router, d.Manager)
	SetupAdminRoutes(router, d, authMiddleware)

	return router
}
