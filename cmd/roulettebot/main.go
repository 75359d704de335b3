package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hoodx/roulettebot/config"
	"github.com/hoodx/roulettebot/internal/adapters/feed"
	"github.com/hoodx/roulettebot/internal/adapters/notify"
	"github.com/hoodx/roulettebot/internal/adapters/pragmatic"
	"github.com/hoodx/roulettebot/internal/adapters/storage"
	"github.com/hoodx/roulettebot/internal/api"
	"github.com/hoodx/roulettebot/internal/domain"
	"github.com/hoodx/roulettebot/internal/operator"
	"github.com/hoodx/roulettebot/internal/session"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	reportUser := flag.String("report", "", "print the stored session report for a user and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)
	log := slog.Default()

	slog.Info("roulettebot starting",
		"config", *configPath,
		"table", cfg.Provider.TableID,
		"api_addr", cfg.API.Addr,
	)

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	if *reportUser != "" {
		printStoredReport(store, *reportUser)
		return
	}

	provider := pragmatic.NewProvider(pragmatic.AuthConfig{
		CasinoBase:    cfg.Casino.BaseURL,
		GameSlug:      cfg.Casino.GameSlug,
		Currency:      cfg.Casino.Currency,
		LaunchBase:    cfg.Provider.LaunchBase,
		GameSymbol:    cfg.Provider.GameSymbol,
		EnvironmentID: cfg.Provider.EnvironmentID,
		CasinoID:      cfg.Provider.CasinoID,
		SecureLogin:   cfg.Provider.SecureLogin,
		LobbyURL:      cfg.Provider.LobbyURL,
		CountryCode:   cfg.Provider.CountryCode,
	})

	registry := session.NewRegistry(provider, session.Config{
		RenewalInterval:    cfg.RenewalInterval(),
		MaxRenewalAttempts: cfg.Engine.MaxRenewalAttempts,
	}, log)

	dialer := pragmatic.NewDialer(pragmatic.DialerConfig{
		WSBase:    cfg.Provider.WSBase,
		TableID:   cfg.Provider.TableID,
		Heartbeat: cfg.HeartbeatInterval(),
	}, log)

	rounds := feed.NewClient(feed.Config{BaseURL: cfg.Feed.BaseURL})

	sup := operator.NewSupervisor(operator.Config{
		Staking: domain.StakingConfig{
			BaseStake:   cfg.Engine.BaseStake,
			Multipliers: cfg.Engine.StakeMultipliers,
		},
		PollInterval:         cfg.PollInterval(),
		FeedLimit:            cfg.Feed.Limit,
		ReconnectBackoff:     cfg.ReconnectBackoff(),
		ReconnectCeiling:     cfg.ReconnectCeiling(),
		ReconnectMaxAttempts: cfg.Engine.ReconnectMaxAttempts,
		HistoryLimit:         cfg.Engine.HistoryLimit,
	}, registry, dialer, rounds, store, notify.NewConsole(), log)

	server := &http.Server{
		Addr:    cfg.API.Addr,
		Handler: api.NewServer(sup, log).Router(cfg.API.AllowedOrigins),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		slog.Info("api listening", "addr", cfg.API.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api server failed", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("api shutdown error", "err", err)
	}
	sup.Shutdown()

	slog.Info("roulettebot stopped cleanly")
}

func printStoredReport(store *storage.SQLiteStore, userID string) {
	ctx := context.Background()
	stats, status, err := store.Report(ctx, userID)
	if err != nil {
		slog.Error("no stored report", "user", userID, "err", err)
		os.Exit(1)
	}
	history, err := store.History(ctx, userID, 50)
	if err != nil {
		slog.Warn("history read failed", "user", userID, "err", err)
	}
	if err := notify.NewConsole().Report(userID, status, stats, history); err != nil {
		slog.Error("report render failed", "err", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
