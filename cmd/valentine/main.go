// CLAUDE:SUMMARY Entry point for the valentine page server: config, event store, manifest watcher, chi router, graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hazyhaar/valentine/dbopen"
	"github.com/hazyhaar/valentine/observability"
	"github.com/hazyhaar/valentine/valentine"
)

func main() {
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Config: optional YAML file, then env overrides.
	cfg := &valentine.Config{}
	if path := os.Getenv("CONFIG"); path != "" {
		loaded, err := valentine.LoadConfigFile(path)
		if err != nil {
			slog.Error("load config", "path", path, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Listen = ":" + strings.TrimPrefix(port, ":")
	}
	cfg.Manifest = env("MANIFEST", cfg.Manifest)
	cfg.AssetsDir = env("ASSETS_DIR", cfg.AssetsDir)
	cfg.EventsDB = env("EVENTS_DB", cfg.EventsDB)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var opts []valentine.Option

	// Event store. Without EVENTS_DB activity is only logged.
	if cfg.EventsDB != "" {
		eventsDB, events, err := openEventStore(cfg.EventsDB, logger)
		if err != nil {
			slog.Error("events db", "error", err)
			os.Exit(1)
		}
		defer eventsDB.Close()
		opts = append(opts, valentine.WithEventLogger(events))
		go observability.RunRetention(ctx, eventsDB, observability.RetentionConfig{
			EventLogsDays: cfg.EventsRetention,
		}, 24*time.Hour, logger)
	}

	svc, err := valentine.New(cfg, logger, opts...)
	if err != nil {
		slog.Error("valentine", "error", err)
		os.Exit(1)
	}
	svc.LoadManifest(ctx)
	go svc.WatchManifest(ctx)
	go svc.Run(ctx)

	// WriteTimeout stays zero: render streams are long-lived.
	srv := &http.Server{
		Addr:              svc.Config().Listen,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("valentine starting", "addr", srv.Addr, "manifest", cfg.Manifest)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	// Streams only end once their session closes.
	svc.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// openEventStore opens (creating if needed) the event log database.
func openEventStore(path string, logger *slog.Logger) (*sql.DB, *observability.EventLogger, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(observability.Schema))
	if err != nil {
		return nil, nil, err
	}
	return db, observability.NewEventLogger(db, observability.WithLogger(logger)), nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
