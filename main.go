package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"hpm-lightning/internal/cache"
	"hpm-lightning/internal/ledger"
)

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	InitLogger()
	cfg := LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cacheBackend := newCacheBackend(cfg)

	var ldg *ledger.Ledger
	if cfg.DatabaseURL != "" {
		var err error
		ldg, err = ledger.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("ledger unavailable, continuing without boost history", "error", err)
		} else {
			slog.Info("boost ledger enabled")
		}
	}

	var nwc *NWCClient
	if uri := NWCConnectionString(); uri != "" {
		nwcConfig, err := ParseNWCURI(uri)
		if err != nil {
			slog.Error("invalid NWC connection string", "error", err)
		} else {
			nwc = NewNWCClient(nwcConfig)
		}
	}

	// No browser here, so no injected WebLN provider: the direct wallet slot
	// stays empty and the router falls back accordingly.
	svc := NewPaymentService(cfg, nil, nwc, cacheBackend, ldg)
	svc.Connect(ctx)
	defer svc.Close()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLoggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/boost", svc.handleBoost)
		r.Get("/wallet/status", svc.handleWalletStatus)
		r.Get("/wallet/balance", svc.handleWalletBalance)
		r.Get("/transactions", svc.handleTransactions)
		r.Post("/invoice", svc.handleMakeInvoice)
		r.Get("/invoice/qr", svc.handleInvoiceQR)
	})
	r.Get("/health", svc.handleHealth)
	r.Get("/metrics", metricsHandler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newCacheBackend selects Redis when configured and falls back to the
// in-memory cache otherwise.
func newCacheBackend(cfg *Config) cache.Backend {
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.RedisURL, "hpml:")
		if err != nil {
			slog.Warn("redis unavailable, using in-memory cache", "error", err)
		} else {
			slog.Info("using redis cache")
			return rc
		}
	}
	return cache.NewMemoryCache(10000, 5*time.Minute)
}
