package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/neuroscan/neuroscan-api/internal/config"
	"github.com/neuroscan/neuroscan-api/internal/email"
	authHandler "github.com/neuroscan/neuroscan-api/internal/handler/auth"
	"github.com/neuroscan/neuroscan-api/internal/handler/health"
	patientHandler "github.com/neuroscan/neuroscan-api/internal/handler/patient"
	predictHandler "github.com/neuroscan/neuroscan-api/internal/handler/predict"
	"github.com/neuroscan/neuroscan-api/internal/middleware"
	"github.com/neuroscan/neuroscan-api/internal/model"
	"github.com/neuroscan/neuroscan-api/internal/predictor"
	"github.com/neuroscan/neuroscan-api/internal/reasoner"
	"github.com/neuroscan/neuroscan-api/internal/repository/postgres"
	"github.com/neuroscan/neuroscan-api/internal/router"
	authService "github.com/neuroscan/neuroscan-api/internal/service/auth"
	patientService "github.com/neuroscan/neuroscan-api/internal/service/patient"
	scanService "github.com/neuroscan/neuroscan-api/internal/service/scan"
	"github.com/neuroscan/neuroscan-api/internal/storage"
	"github.com/neuroscan/neuroscan-api/pkg/auth"
	"github.com/neuroscan/neuroscan-api/pkg/logger"
	"github.com/neuroscan/neuroscan-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := model.RegisterValidations(v); err != nil {
			log.Fatal().Err(err).Msg("failed to register validations")
		}
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	scanRepo := postgres.NewScanRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// External clients
	classifier := predictor.NewHTTPClassifier(cfg.Classifier, appLogger)
	reasonerClient := reasoner.NewHTTPReasoner(cfg.Reasoner, appLogger)
	assetStore := storage.NewAssetStore(cfg.Storage, appLogger)
	mailer := email.NewSMTPService(cfg.SMTP, appLogger)

	appMetrics := metrics.NewMetrics("neuroscan")

	// Services
	jwtSvc := auth.NewJWTService(cfg.JWT)
	authSvc := authService.NewService(userRepo, jwtSvc)
	patientSvc := patientService.NewService(patientRepo, scanRepo)
	scanSvc := scanService.NewService(
		scanRepo, patientRepo, userRepo, outboxRepo,
		classifier, reasonerClient, assetStore, mailer,
		appMetrics, appLogger,
	)

	// Handlers and router
	authMW := middleware.NewAuthMiddleware(jwtSvc)
	r := router.NewRouter(
		authMW,
		authHandler.NewHandler(authSvc),
		patientHandler.NewHandler(patientSvc, scanSvc),
		predictHandler.NewHandler(scanSvc),
		health.NewHandler(db),
		router.DefaultConfig(),
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
