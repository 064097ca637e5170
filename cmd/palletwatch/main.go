package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/palletworks/palletwatch/internal/alert"
	"github.com/palletworks/palletwatch/internal/api"
	"github.com/palletworks/palletwatch/internal/api/ws"
	"github.com/palletworks/palletwatch/internal/config"
	"github.com/palletworks/palletwatch/internal/db"
	"github.com/palletworks/palletwatch/internal/service"
	"github.com/palletworks/palletwatch/internal/track"
	"github.com/palletworks/palletwatch/internal/version"
	"github.com/palletworks/palletwatch/internal/zones"
)

var configPath = flag.String("config", "", "Path to YAML config (overrides PALLETWATCH_CONFIG)")

func main() {
	flag.Parse()

	if *configPath != "" {
		os.Setenv("PALLETWATCH_CONFIG", *configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("palletwatch %s", version.String())

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()
	if err := database.MigrateUp(); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	store := db.NewObjectStore(database, cfg.AlertThreshold(), cfg.TolerancePct)
	engine := track.NewEngine(store, store, track.Config{
		TolerancePct: cfg.TolerancePct,
		GraceWindow:  cfg.GraceWindow(),
	})
	zoneManager := zones.NewManager(cfg.ZonesPath)
	hub := ws.NewHub()

	var notifier alert.Notifier = alert.LogNotifier{}
	if cfg.WebhookURL != "" {
		notifier = alert.NewWebhookNotifier(cfg.WebhookURL, nil)
	}
	dispatcher := alert.NewDispatcher(database, notifier, hub, cfg.AlertResendWindow())

	var source service.DetectionSource
	if cfg.DetectorURL != "" {
		source = service.NewHTTPDetectionSource(cfg.DetectorURL, nil)
	}
	worker := service.NewWorker(engine, database, store, dispatcher, source, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker.Start()
	defer worker.Stop()
	log.Printf("cycle worker started (interval %s)", worker.Interval)

	mux := api.NewServer(database, store, zoneManager, cfg, worker, hub).ServeMux()
	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: api.LoggingMiddleware(mux),
	}

	go func() {
		log.Printf("listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Printf("graceful shutdown complete")
}
