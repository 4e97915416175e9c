package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"

	"github.com/handsomefox/upcoming-watchlist/internal/env"
	"github.com/handsomefox/upcoming-watchlist/internal/handlers"
	"github.com/handsomefox/upcoming-watchlist/internal/logger"
	"github.com/handsomefox/upcoming-watchlist/internal/store"
	syncsvc "github.com/handsomefox/upcoming-watchlist/internal/sync"
	"github.com/handsomefox/upcoming-watchlist/internal/tmdb"

	_ "github.com/joho/godotenv/autoload"
)

const (
	defaultPort      = "8080"
	defaultDBPath    = "./data/watchlist.db"
	defaultImageBase = "https://image.tmdb.org/t/p/w300"
)

func main() {
	level := slog.LevelDebug
	if env.Current == env.Production {
		level = slog.LevelInfo
	}
	slog.SetDefault(logger.New(level))

	if err := run(); err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}

func run() error {
	apiKey := os.Getenv("TMDB_API_KEY")
	readToken := os.Getenv("TMDB_API_READ_TOKEN")
	if apiKey == "" && readToken == "" {
		return errors.New("TMDB_API_KEY or TMDB_API_READ_TOKEN is required")
	}

	st, err := store.Open(envOr("DB_PATH", defaultDBPath))
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close DB", logger.Error(err))
		}
	}()

	client := tmdb.New(apiKey, readToken)
	syncer := syncsvc.New(client, st, slog.Default())

	app, err := handlers.New(&handlers.Config{
		Store:     st,
		TMDB:      client,
		Sync:      syncer,
		ImageBase: envOr("TMDB_IMAGE_BASE", defaultImageBase),
	})
	if err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	// Optional catalog refresh at startup, before the server takes traffic.
	if pages := syncPagesFromEnv(); pages > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		report, err := syncer.Run(ctx, pages)
		cancel()
		if err != nil {
			slog.Error("startup sync failed", logger.Error(err))
		} else {
			slog.Info("startup sync finished", slog.String("summary", report.Summary()))
		}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(httplog.RequestLogger(slog.Default(), &httplog.Options{
		Level:         slog.LevelInfo,
		RecoverPanics: true,
	}))
	r.Route("/api", app.RegisterRoutes)

	addr := ":" + envOr("PORT", defaultPort)
	log.Printf("listening on %s", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func syncPagesFromEnv() int {
	raw := os.Getenv("SYNC_PAGES")
	if raw == "" {
		return 0
	}
	pages, err := strconv.Atoi(raw)
	if err != nil || pages < 0 {
		slog.Warn("ignoring bad SYNC_PAGES", slog.String("value", raw))
		return 0
	}
	return pages
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
