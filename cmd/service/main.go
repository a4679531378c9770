package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/hablas/internal/app"
	"github.com/dropDatabas3/hablas/internal/bootstrap"
	"github.com/dropDatabas3/hablas/internal/config"
	httpx "github.com/dropDatabas3/hablas/internal/http"
	"github.com/dropDatabas3/hablas/internal/observability/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional, env overrides)")
	noMigrate := flag.Bool("no-migrate", false, "Skip automatic migrations on startup")
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("error loading .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	lg, err := logger.New(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "hablas-auth",
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()
	zap.ReplaceGlobals(lg)
	for _, w := range cfg.Warnings {
		lg.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, lg, app.Options{Migrate: !*noMigrate})
	if err != nil {
		lg.Fatal("wiring failed", logger.Err(err))
	}
	defer a.Close()

	if _, err := bootstrap.CheckAndCreateAdmin(ctx, bootstrap.AdminConfig{
		Service:  a.Auth,
		Email:    cfg.Bootstrap.AdminEmail,
		Password: cfg.Bootstrap.AdminPassword,
	}); err != nil {
		lg.Warn("admin bootstrap failed", logger.Err(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	handler, err := a.Handler(reg)
	if err != nil {
		lg.Fatal("http wiring failed", logger.Err(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.RunWorkers(gctx) })
	g.Go(func() error { return httpx.Start(gctx, httpx.NewServer(cfg.Server.Addr, handler), lg) })

	lg.Info("service up",
		logger.String("env", cfg.App.Env),
		logger.String("addr", cfg.Server.Addr),
		logger.String("limiter_mode", string(a.Limiter.Mode())),
		logger.Bool("durable_store", a.PG != nil),
	)
	if err := g.Wait(); err != nil {
		lg.Error("service stopped with error", logger.Err(err))
		return
	}
	lg.Info("service stopped")
}
