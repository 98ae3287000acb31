package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Jisangain/find-my-br-train/internal/api"
	"github.com/Jisangain/find-my-br-train/internal/config"
	"github.com/Jisangain/find-my-br-train/internal/geo"
	"github.com/Jisangain/find-my-br-train/internal/metrics"
	"github.com/Jisangain/find-my-br-train/internal/publisher"
	"github.com/Jisangain/find-my-br-train/internal/reports"
	"github.com/Jisangain/find-my-br-train/internal/routes"
	"github.com/Jisangain/find-my-br-train/internal/schedule"
	"github.com/Jisangain/find-my-br-train/internal/timetable"
	"github.com/Jisangain/find-my-br-train/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Static dataset
	log.Printf("Loading dataset from %s", cfg.DataFile)
	data, err := timetable.Load(cfg.DataFile)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	log.Printf("Dataset revision %d: %d trains, %d stations", data.Revision, len(data.Trains), len(data.Stations))

	loc, err := time.LoadLocation(cfg.ScheduleTZ)
	if err != nil {
		log.Fatalf("Invalid SCHEDULE_TZ %q: %v", cfg.ScheduleTZ, err)
	}
	estimator := schedule.NewEstimator(data, loc)

	collector := metrics.NewCollector(data.Revision)
	metricsSrv := collector.Serve(cfg.MetricsAddr)

	// Position store
	var store tracker.Store
	switch cfg.StoreBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
		}
		defer rdb.Close()
		log.Printf("Using Redis position store at %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
		store = tracker.NewRedisStore(rdb, estimator)
	default:
		mem := tracker.NewMemoryStore(estimator, cfg.SweepInterval)
		go mem.Run(ctx)
		log.Printf("Using in-memory position store (sweep every %s)", cfg.SweepInterval)
		store = mem
	}

	// Route discovery
	started := time.Now()
	table, err := routes.LoadOrBuildTable(ctx, cfg.RouteCacheFile, data)
	if err != nil {
		log.Fatalf("Failed to build interchange routes: %v", err)
	}
	collector.PrecomputeDuration.Observe(time.Since(started).Seconds())
	log.Printf("Interchange table ready: %d station pairs", len(table.Routes))

	index := geo.BuildDistanceIndex(data)
	finder := routes.NewNearbyFinder(data, index, routes.ProjectRoutes(data))

	// Issue reports
	reportStore, err := reports.Open(cfg.ReportsDatabase)
	if err != nil {
		log.Fatalf("Failed to open reports database %s: %v", cfg.ReportsDatabase, err)
	}
	defer reportStore.Close()

	// Event bus (optional)
	var events api.EventPublisher
	if cfg.NATSURL != "" {
		nats, err := publisher.NewNATS(cfg.NATSURL, "trains.position", collector)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer nats.Close()
		collector.EventBusConnected.Set(1)
		events = nats
		log.Printf("Publishing position events to %s", cfg.NATSURL)
	}

	go watchStore(ctx, store, collector)

	router := api.NewRouter(api.Handlers{
		Positions: api.NewPositionHandler(store, collector, events),
		Routes:    api.NewRouteHandler(data, table, finder),
		Reports:   api.NewReportHandler(reportStore),
		Data:      api.NewDataHandler(data, store, cfg.StoreBackend),
	}, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}
	log.Println("Shutdown complete")
}

// watchStore refreshes store-derived gauges every 15 seconds.
func watchStore(ctx context.Context, store tracker.Store, collector *metrics.Collector) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if store.Healthy(ctx) {
				collector.StoreHealthy.Set(1)
			} else {
				collector.StoreHealthy.Set(0)
			}
			if ids, err := store.ActiveTrains(ctx); err == nil {
				collector.ActiveTrains.Set(float64(len(ids)))
			}
		}
	}
}
