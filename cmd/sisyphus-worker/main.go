package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sisyphus-worker/internal/client/api"
	"github.com/sisyphus-worker/internal/client/apprise"
	"github.com/sisyphus-worker/internal/config"
	"github.com/sisyphus-worker/internal/executor"
	"github.com/sisyphus-worker/internal/fonts"
	"github.com/sisyphus-worker/internal/handler"
	"github.com/sisyphus-worker/internal/module"
	"github.com/sisyphus-worker/internal/probe"
	"github.com/sisyphus-worker/internal/queue"
	"github.com/sisyphus-worker/internal/service/processor"
	"github.com/sisyphus-worker/internal/status"
	"github.com/sisyphus-worker/internal/telemetry"
	"github.com/sisyphus-worker/internal/version"
	"github.com/sisyphus-worker/pkg/logger"
)

func main() {
	isDev := os.Getenv("ENV") != "production"
	logger.Init(isDev)
	defer logger.Sync()

	if len(os.Args) > 1 && os.Args[1] == "check-fonts" {
		os.Exit(checkFonts(os.Args[2:]))
	}

	version.PrintBanner(nil)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	logger.Infof("📁 Loading config: %s", configPath)
	cfgMgr, err := config.NewManager(configPath)
	if err != nil {
		logger.Fatalf("❌ Config error: %v", err)
	}
	defer cfgMgr.Stop()
	cfg := cfgMgr.Get()
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		logger.Warnf("⚠️ Ignoring log level: %v", err)
	}
	cfgMgr.OnChange(func(_, cur *config.Config) {
		if err := logger.SetLevel(cur.Log.Level); err != nil {
			logger.Warnf("⚠️ Ignoring log level: %v", err)
		}
	})

	hostname := cfg.Hostname()
	workerID := cfg.WorkerID()
	board := status.NewBoard(hostname, version.Version)
	logger.Infof("🖥️  Worker: %s (%s)", hostname, workerID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Clients
	var redisClient *redis.Client
	if cfg.Queue.Backend == "redis" || cfg.Telemetry.Sink == "redis" {
		redisClient = queue.NewRedisClient(cfg.Redis)
		defer redisClient.Close()
		logger.Infof("🧰 Redis: %s (db=%d)", cfg.Redis.Addr(), cfg.Redis.DB)
	}
	apiClient := api.NewClient(cfg.API)
	logger.Infof("🌐 API: %s", cfg.API.URL)

	// Telemetry
	var sink telemetry.Sink
	if cfg.Telemetry.Sink == "redis" {
		sink = telemetry.NewRedisSink(redisClient, workerID, 3*cfg.Telemetry.HeartbeatInterval, cfg.Telemetry.ProgressExpiry)
	} else {
		sink = telemetry.NewHTTPSink(apiClient, workerID)
	}
	logger.Infof("💓 Heartbeat: %s sink every %s", cfg.Telemetry.Sink, cfg.Telemetry.HeartbeatInterval)
	go telemetry.NewHeartbeat(board, sink, cfg.Telemetry.HeartbeatInterval).Run(ctx)
	progress := telemetry.NewProgressPublisher(board, sink, cfg.Telemetry.ProgressMinInterval)
	go progress.Run(ctx)

	// Modules
	runner := executor.NewRunner(nil)
	if isDev {
		runner.Output = os.Stderr
	}
	prober := probe.NewFFprobe(cfg.Binaries.Ffprobe)
	envFactory := func(jobTitle string) module.Env {
		return module.Env{
			JobTitle: jobTitle,
			Config:   cfgMgr.Get(),
			Progress: progress,
			Probe:    prober,
			Fonts:    fonts.SFNTReader{},
			Profiles: apiClient,
			Runner:   runner,
		}
	}

	var notifier processor.Notifier
	if cfg.Apprise.Enabled {
		appriseClient := apprise.NewClient(cfg.Apprise, hostname)
		notifier = appriseClient
		if err := appriseClient.NotifyInfo(ctx, "Worker online", fmt.Sprintf("sisyphus-worker %s started", version.Version)); err != nil {
			logger.Warnf("⚠️ Startup notification failed: %v", err)
		}
		logger.Infof("🔔 Notifications: enabled (key=%s)", cfg.Apprise.Key)
	} else {
		logger.Info("🔔 Notifications: disabled")
	}

	registry := module.NewRegistry()
	logger.Infof("🧩 Modules: %v", registry.Names())
	proc := processor.New(registry, board, envFactory, notifier)

	// Job source
	var source queue.Source
	if cfg.Queue.Backend == "redis" {
		source = queue.NewRedisSource(redisClient, cfg.Redis.QueueName, cfg.Queue.PollTimeout)
	} else {
		source = queue.NewHTTPSource(apiClient, workerID, cfg.API.URL)
	}
	worker := queue.NewWorker(source, proc, board, func() config.QueueConfig { return cfgMgr.Get().Queue })

	// Status API
	var srv *http.Server
	if cfg.Server.Port > 0 {
		h := handler.New(board, worker, workerID)
		srv = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      handler.NewRouter(h, !isDev),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatalf("❌ Server error: %v", err)
			}
		}()
		logger.Infof("🌐 Status API: http://localhost:%d/api/v1/status", cfg.Server.Port)
	}

	if delay := cfg.Worker.StartupDelay; delay > 0 {
		logger.Infof("⏳ Starting in %s", delay)
		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}

	logger.Info("────────────────────────────────────────────────────────────────")
	logger.Infof("✅  Ready! Polling %s", source.Describe())
	logger.Info("────────────────────────────────────────────────────────────────")

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("❌ Worker stopped: %v", err)
	}

	logger.Info("")
	logger.Info("🛑 Shutting down...")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("❌ Shutdown error: %v", err)
		}
	}

	stats := worker.Stats()
	logger.Infof("📊 Jobs: %d completed, %d failed, %d rejected", stats.Completed, stats.Failed, stats.Rejected)
	logger.Info("👋 Goodbye!")
}

// checkFonts resolves the fonts a subtitle file needs and reports the first style
// without a match.
func checkFonts(args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: sisyphus-worker check-fonts <font-directory> <subtitle-file>")
		return 2
	}
	found, err := fonts.Check(args[0], args[1], fonts.SFNTReader{})
	if err != nil {
		var fnf *fonts.FontNotFoundError
		if errors.As(err, &fnf) {
			fmt.Printf("Missing font for style '%s': %s/%s\n", fnf.Style.Name, fnf.Style.Family, fnf.Style.Subfamily)
		} else {
			fmt.Fprintf(os.Stderr, "check-fonts: %v\n", err)
		}
		return 1
	}
	for _, f := range found {
		fmt.Printf("  %s (%s %s)\n", f.File, f.Family, f.Subfamily)
	}
	fmt.Println("All fonts found")
	return 0
}
