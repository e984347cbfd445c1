package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"masterclass-pods/internal/app"
	"masterclass-pods/internal/auth"
	"masterclass-pods/internal/config"
	"masterclass-pods/internal/logger"
	"masterclass-pods/models"
	"masterclass-pods/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatal("Failed to initialize:", err)
	}
	defer a.Close()

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL(), cfg.AdminUser, cfg.AdminPasswordHash, a.Redis)
	if err != nil {
		log.Fatal("Failed to initialize auth:", err)
	}

	auditCtx, auditCancel := context.WithTimeout(context.Background(), 10*time.Second)
	auditor, err := models.NewAuditLogger(auditCtx, a.DB)
	auditCancel()
	if err != nil {
		log.Fatal("Failed to initialize audit log:", err)
	}

	router := routes.SetupRouter(routes.Deps{
		Manager:     a.Manager,
		Poller:      a.Poller,
		Tokens:      tokens,
		Blueprints:  a.Blueprints,
		Redis:       a.Redis,
		Auditor:     auditor,
		Audit:       auditor,
		Metrics:     a.Metrics,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimitReqs,
		RateWindow:  time.Duration(cfg.RateLimitWindow) * time.Second,
		ServiceName: "masterclass-pods",
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "delivery_mode", a.Dispatcher.Mode())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	logger.Info("Server exited")
}
