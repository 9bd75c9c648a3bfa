package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/satbox/satbox-server/internal/app"
	"github.com/satbox/satbox-server/internal/config"
	"github.com/satbox/satbox-server/internal/log"
)

func main() {
	var (
		configPath string
		overrides  config.Config
	)

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flag.StringVar(&overrides.DataDir, "data-dir", "", "directory for the message keyspace")
	flag.StringVar(&overrides.RelayURL, "relay-url", "", "settlement relay base URL")
	flag.StringVar(&overrides.Network, "network", "", "Stacks network (mainnet or testnet)")
	flag.Int64Var(&overrides.PriceSats, "price-sats", 0, "per-message price in sats")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.Parse()

	bootLogger := log.New("info")

	cfg, configFile, err := config.Load(bootLogger, configPath)
	if err != nil {
		stdlog.Fatalf("load config: %v", err)
	}
	cfg.UpdateFrom(overrides)

	logger := log.New(cfg.LogLevel)
	logger.Info().Str("config", configFile).Str("network", cfg.Network).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting satbox server")
	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}
