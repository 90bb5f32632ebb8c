package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/esgledger-backend/internal/clients/specservice"
	"github.com/yungbote/esgledger-backend/internal/data/repos"
	"github.com/yungbote/esgledger-backend/internal/db"
	"github.com/yungbote/esgledger-backend/internal/events"
	"github.com/yungbote/esgledger-backend/internal/handlers"
	"github.com/yungbote/esgledger-backend/internal/platform/logger"
	"github.com/yungbote/esgledger-backend/internal/server"
	"github.com/yungbote/esgledger-backend/internal/services"
	"github.com/yungbote/esgledger-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	datasetRepo := repos.NewDatasetRepo(thePG, log)
	dataPointRepo := repos.NewDataPointRepo(thePG, log)
	compositionRepo := repos.NewCompositionRepo(thePG, log)
	qaReviewRepo := repos.NewQaReviewRepo(thePG, log)
	datasetQaReportRepo := repos.NewDatasetQaReportRepo(thePG, log)
	dataPointQaReportRepo := repos.NewDataPointQaReportRepo(thePG, log)

	// Clients
	log.Info("Setting up clients from main...")
	specClient, err := specservice.New(log, specservice.Config{
		BaseURL: utils.GetEnv("SPEC_SERVICE_URL", "http://localhost:8081", log),
	})
	if err != nil {
		log.Error("Could not init spec service client", "error", err)
		os.Exit(1)
	}
	bus, err := events.NewRedisBus(log)
	if err != nil {
		log.Error("Could not init redis bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	// Services
	log.Info("Setting up Services from main...")
	specRegistry := services.NewSpecRegistry(specClient, log)
	datasetService := services.NewDatasetService(thePG, log, specRegistry, datasetRepo, dataPointRepo, compositionRepo, specClient, bus)
	reviewService := services.NewReviewService(thePG, log, qaReviewRepo, datasetRepo, dataPointRepo, compositionRepo, bus)
	qaReportService := services.NewQaReportService(thePG, log, specRegistry, datasetRepo, dataPointRepo, compositionRepo, datasetQaReportRepo, dataPointQaReportRepo, qaReviewRepo, specClient, bus)
	migrationService := services.NewMigrationService(thePG, log, specRegistry, compositionRepo, datasetQaReportRepo, dataPointQaReportRepo)
	listener := services.NewQaEventListener(thePG, log, qaReviewRepo, datasetRepo, dataPointRepo, compositionRepo, datasetQaReportRepo, dataPointQaReportRepo, bus)

	// Handlers
	log.Info("Setting up handlers from main...")
	datasetHandler := handlers.NewDatasetHandler(datasetService)
	qaHandler := handlers.NewQaHandler(reviewService, qaReportService, migrationService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		DatasetHandler: datasetHandler,
		QaHandler:      qaHandler,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := listener.Start(ctx); err != nil {
		log.Error("Could not start qa event listener", "error", err)
		os.Exit(1)
	}

	port := utils.GetEnv("PORT", "8080", log)
	srv := &http.Server{Addr: ":" + port, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
