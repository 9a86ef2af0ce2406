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

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"rfq-proxy-app/internal/config"
	"rfq-proxy-app/internal/httpapi"
	"rfq-proxy-app/internal/metrics"
	"rfq-proxy-app/internal/repository"
	"rfq-proxy-app/internal/shopify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.ProxyDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()

	var tokens shopify.TokenSource = shopify.StaticToken(cfg.ShopifyAdminToken)
	if cfg.ShopifyAdminToken == "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database pool", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		tokens = repository.NewShopRepository(pool)
		logger.Info("admin token read from shops table", "shop", cfg.ShopDomain)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	admin := shopify.NewAdminClient(shopify.AdminConfig{
		ShopDomain: cfg.ShopDomain,
		APIVersion: cfg.ShopifyAPIVersion,
		Timeout:    cfg.AdminHTTPTimeout,
	}, tokens, logger).WithObserver(m)

	if cfg.SkipProxyVerify {
		logger.Warn("app proxy signature verification is DISABLED")
	}

	h := httpapi.NewHandlers(cfg, admin, m, logger)
	r := httpapi.NewRouter(h, reg)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr, "mount", cfg.ProxyMountPrefix)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown timed out, forcing close", "err", err)
		_ = server.Close()
		os.Exit(1)
	}
	logger.Info("server stopped")
}
