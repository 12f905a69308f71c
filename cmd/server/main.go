package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/runesmith/dashboard/internal/apiclient"
	"github.com/runesmith/dashboard/internal/dashboard"
	"github.com/runesmith/dashboard/internal/db"
	"github.com/runesmith/dashboard/internal/handlers"
	"github.com/runesmith/dashboard/internal/live"
	"github.com/runesmith/dashboard/internal/metrics"
	"github.com/runesmith/dashboard/internal/middleware"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

type config struct {
	BackendURL   string
	BackendToken string
	APIToken     string
	DBPath       string
	Port         string
}

// loadDotEnv loads ./.env when present. Variables already set in the
// environment win.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadConfig reads service configuration from environment variables and
// applies defaults. It returns an error when a required variable is absent.
func loadConfig() (config, error) {
	cfg := config{
		BackendURL:   os.Getenv("BACKEND_URL"),
		BackendToken: os.Getenv("BACKEND_TOKEN"),
		APIToken:     os.Getenv("API_TOKEN"),
		DBPath:       getenv("DB_PATH", "./runesmith_dashboard.db"),
		Port:         getenv("PORT", "8080"),
	}
	if cfg.BackendURL == "" {
		return cfg, fmt.Errorf("BACKEND_URL environment variable is required")
	}
	return cfg, nil
}

// newMux registers every route. Mutating routes require apiToken when it
// is non-empty.
func newMux(h *handlers.Handler, apiToken string) *http.ServeMux {
	mux := http.NewServeMux()
	route := func(pattern, path string, next http.Handler) {
		mux.Handle(pattern, metrics.Middleware(path, next))
	}

	// Health, metrics and docs: no auth
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /openapi.yaml", handlers.OpenAPISpec)
	mux.HandleFunc("GET /docs", handlers.Docs)

	// Read-only views
	route("GET /api/v1/dashboard", "/api/v1/dashboard", http.HandlerFunc(h.Dashboard))
	route("GET /api/v1/items", "/api/v1/items", http.HandlerFunc(h.Items))
	route("GET /api/v1/theme", "/api/v1/theme", http.HandlerFunc(h.GetTheme))
	route("GET /api/v1/live", "/api/v1/live", http.HandlerFunc(h.Live))

	// Mutations: Bearer token auth when API_TOKEN is set
	route("POST /api/v1/forge", "/api/v1/forge", middleware.Auth(apiToken, http.HandlerFunc(h.Forge)))
	route("PUT /api/v1/theme", "/api/v1/theme", middleware.Auth(apiToken, http.HandlerFunc(h.PutTheme)))

	return mux
}

func main() {
	if err := loadDotEnv(); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	logger := slog.Default()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	client, err := apiclient.NewClient(cfg.BackendURL, cfg.BackendToken, logger)
	if err != nil {
		log.Fatalf("failed to create backend client: %v", err)
	}

	app := dashboard.New(client, logger, dashboard.Options{})
	metrics.Register(app.Store())

	hub := live.NewHub(func() any { return app.View() }, logger)
	app.OnChange(func() { hub.Publish(app.View()) })

	h := &handlers.Handler{App: app, DB: database, Hub: hub, Version: version, Commit: commit}

	skip := func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	}
	handler := middleware.RequestLogger(logger, skip, newMux(h, cfg.APIToken))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Forge waits for reconciliation before it responds.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	app.Start()

	go func() {
		logger.Info("listening", slog.String("port", cfg.Port), slog.String("backend", cfg.BackendURL))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	app.Close()
	if err := database.Close(); err != nil {
		logger.Error("database close error", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
}
