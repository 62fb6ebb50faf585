package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"fleet-journeys/internal/api"
	"fleet-journeys/internal/config"
	"fleet-journeys/internal/database"
	"fleet-journeys/internal/feed"
	"fleet-journeys/internal/handler"
	"fleet-journeys/internal/logger"
	"fleet-journeys/internal/metrics"
	"fleet-journeys/internal/models"
	"fleet-journeys/internal/repository"
	"fleet-journeys/internal/routematch"
	"fleet-journeys/internal/service"
	"fleet-journeys/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logg := logger.Setup(cfg.LogLevel, cfg.LogFile)

	fleet, err := models.LoadFleet(cfg.FleetPath)
	if err != nil {
		logg.WithError(err).Fatal("failed to load fleet configuration")
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logg.WithError(err).Fatal("failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logg.WithError(err).Fatal("failed to migrate database")
	}

	coll := metrics.NewCollector()
	repo := repository.NewJourneyRepository(db, cfg.Location)

	trk := tracker.NewTracker(repo, cfg.Tracking, coll, logg)
	janitor := tracker.NewJanitor(repo, trk, cfg.Tracking, coll, logg)
	corrector := tracker.NewCorrector(repo, cfg.Tracking, cfg.Location, coll, logg)

	poller := feed.NewTrackAppClient(cfg.Feeds, logg)
	manager := tracker.NewManager(cfg, fleet, trk, poller, coll, logg)

	matcher := routematch.NewOSRMClient(cfg.Matching, logg)
	recon := routematch.NewReconstructor(matcher, cfg.Matching, coll, logg)
	svc := service.NewJourneyService(repo, recon)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go manager.Run(ctx)
	go janitor.Run(ctx)

	router := api.SetupRouter(
		handler.NewJourneyHandler(svc, fleet),
		handler.NewRouteHandler(svc),
		handler.NewAdminHandler(janitor, corrector),
		coll.Handler(),
	)

	logg.Infof("server starting on %s", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		logg.WithError(err).Fatal("server exited")
	}
}
