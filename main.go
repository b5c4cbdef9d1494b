package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"insta-archive/internal/cache"
	"insta-archive/internal/database"
	"insta-archive/internal/handlers"
	"insta-archive/internal/indexer"
	"insta-archive/internal/logging"
	"insta-archive/internal/middleware"
	"insta-archive/internal/scanner"
	"insta-archive/internal/startup"
	"insta-archive/internal/watcher"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error("failed to close database: %v", err)
		}
	}()

	cch := cache.New(config.CacheTTL)
	scan := scanner.New(config.DataDir)

	startup.LogIndexerInit(config.IndexInterval)
	coord := indexer.New(db, scan, cch)
	coord.Schedule("startup")

	// Periodic reindex as a safety net for changes the watcher misses.
	ticker := time.NewTicker(config.IndexInterval)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			coord.Schedule("interval")
		}
	}()

	var w *watcher.Watcher
	if config.WatchEnabled {
		w = watcher.New(config.DataDir, coord)
		go w.Watch()
	}

	h := handlers.New(db, coord, cch, config.DataDir)
	router := setupRouter(h)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(
		middleware.Metrics(middleware.DefaultMetricsConfig())(router))

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:        ":" + config.MetricsPort,
			Handler:     metricsMux,
			ReadTimeout: 15 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, w)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.Version).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/reindex", h.TriggerReindex).Methods("POST")
	api.HandleFunc("/indexer/status", h.IndexerStatus).Methods("GET")
	api.HandleFunc("/accounts", h.ListAccounts).Methods("GET")
	api.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	api.HandleFunc("/accounts/{id}/posts", h.ListAccountPosts).Methods("GET")
	api.HandleFunc("/accounts/{id}/highlights", h.ListAccountHighlights).Methods("GET")
	api.HandleFunc("/posts/{account}/{id}", h.GetPost).Methods("GET")
	api.HandleFunc("/tags", h.ListTags).Methods("GET")
	api.HandleFunc("/tags/{tag}/posts", h.ListTagPosts).Methods("GET")
	api.HandleFunc("/search", h.SearchPosts).Methods("GET")

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, w *watcher.Watcher) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if w != nil {
		w.Stop()
		startup.LogShutdownStepComplete("Watcher stopped")
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
