package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/fluxmarket/availability-api/api/swagger"
	"github.com/fluxmarket/availability-api/internal/handler"
	"github.com/fluxmarket/availability-api/internal/middleware"
	"github.com/fluxmarket/availability-api/internal/models"
	"github.com/fluxmarket/availability-api/internal/repository"
	"github.com/fluxmarket/availability-api/internal/service"
	"github.com/fluxmarket/availability-api/pkg/cache"
	"github.com/fluxmarket/availability-api/pkg/config"
	"github.com/fluxmarket/availability-api/pkg/database"
	"github.com/fluxmarket/availability-api/pkg/logger"
	corsmiddleware "github.com/fluxmarket/availability-api/pkg/middleware/cors"
	reqidmiddleware "github.com/fluxmarket/availability-api/pkg/middleware/requestid"
)

// @title Flux Availability API
// @version 0.1.0
// @description Provider availability and booking-conflict resolution service
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, calendar cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	availabilityRepo := repository.NewAvailabilityRepository(db)
	providerRepo := repository.NewProviderRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(providerRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	calendarSvc := service.NewCalendarService(availabilityRepo, cacheRepo, metricsSvc, validate, logr, service.CalendarServiceConfig{
		BookingDuration: cfg.Calendar.BookingDuration,
		CacheTTL:        cfg.Calendar.CacheTTL,
	})

	exportSvc, err := service.NewExportService(calendarSvc, validate, logr, service.ExportServiceConfig{
		Enabled:         cfg.Exports.Enabled,
		StorageDir:      cfg.Exports.StorageDir,
		SignedURLSecret: cfg.Exports.SignedURLSecret,
		SignedURLTTL:    cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
		Workers:         cfg.Exports.WorkerConcurrency,
		MaxRetries:      cfg.Exports.WorkerRetries,
	})
	if err != nil {
		logr.Sugar().Fatalw("failed to init export service", "error", err)
	}
	exportSvc.Start(context.Background())
	defer exportSvc.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	availabilityHandler := handler.NewAvailabilityHandler(calendarSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Signed token is the credential; no JWT on the download route.
	r.GET("/exports/download", exportHandler.Download)

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/auth/login", authHandler.Login)

		providers := api.Group("/providers/:providerID", middleware.JWT(authSvc), middleware.CalendarOwner())
		{
			providers.GET("/calendar", availabilityHandler.GetCalendar)
			providers.POST("/calendar/refresh", availabilityHandler.RefreshCalendar)
			providers.POST("/calendar/recurring", availabilityHandler.CreateRecurringSlot)
			providers.POST("/calendar/blocks", availabilityHandler.CreateBlock)
			providers.POST("/calendar/slots", availabilityHandler.CreateOneOffSlot)
			providers.DELETE("/calendar/events/:eventID", availabilityHandler.DeleteEvent)
			providers.GET("/calendar/max-duration", availabilityHandler.MaxDuration)

			providers.POST("/exports", exportHandler.Create)
			providers.GET("/exports/:jobID", exportHandler.Status)
		}

		admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/metrics", metricsHandler.Snapshot)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
