package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/campaign-contacts-api/api/swagger"
	"github.com/noah-isme/campaign-contacts-api/internal/app"
	"github.com/noah-isme/campaign-contacts-api/internal/handler"
	"github.com/noah-isme/campaign-contacts-api/internal/middleware"
	"github.com/noah-isme/campaign-contacts-api/pkg/cache"
	"github.com/noah-isme/campaign-contacts-api/pkg/config"
	"github.com/noah-isme/campaign-contacts-api/pkg/database"
	"github.com/noah-isme/campaign-contacts-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campaign-contacts-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campaign-contacts-api/pkg/middleware/requestid"
)

const shutdownTimeout = 15 * time.Second

// @title Campaign Contacts API
// @version 1.0.0
// @description Contact list ingestion and campaign recipient management
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, stats cache disabled", zap.Error(err))
		rdb = nil
	}

	container, err := app.Build(cfg, db, rdb, logr)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer container.Close()
	container.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newEngine(cfg, container),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logr.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newEngine(cfg *config.Config, c *app.Container) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(c.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(c.Metrics, "/metrics", "/health", "/ready"))

	checks := map[string]handler.Pinger{"postgres": c.DB}
	if c.CacheStore != nil {
		checks["redis"] = c.CacheStore
	}
	metricsHandler := handler.NewMetricsHandler(c.Metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(middleware.NewTokenValidator(cfg.JWT.Secret)))
	router := &handler.Router{
		Imports:    handler.NewImportHandler(c.Imports, cfg.Import.MaxFileSizeBytes),
		Recipients: handler.NewRecipientHandler(c.Recipients, c.Archives),
		Campaigns:  handler.NewCampaignHandler(c.Campaigns, c.Reconciler),
		Archives:   handler.NewArchiveHandler(c.Archives),
	}
	router.Register(api)

	return r
}
