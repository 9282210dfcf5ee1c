package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sodap/config"
	"sodap/core"
	"sodap/core/genesis"
	"sodap/integrations/indexer"
	"sodap/integrations/kafka"
	"sodap/integrations/webhooks"
	"sodap/observability/logging"
	telemetry "sodap/observability/otel"
	"sodap/rpc"
	"sodap/storage"
)

const genesisPathEnv = "SODAP_GENESIS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides SODAP_GENESIS and config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.SetupWithOptions(logging.Options{
		Service:    "sodapd",
		Env:        strings.TrimSpace(os.Getenv("SODAP_ENV")),
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	genesisPath := resolveGenesisPath(*genesisFlag, cfg.GenesisFile, os.LookupEnv)
	if err := run(ctx, cfg, genesisPath, logger); err != nil {
		logger.Error("sodapd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// resolveGenesisPath prefers the CLI flag, then the environment, then the
// config file.
func resolveGenesisPath(flagValue, configValue string, lookup func(string) (string, bool)) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if lookup != nil {
		if v, ok := lookup(genesisPathEnv); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(configValue)
}

func openStorage(cfg *config.Config) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "memory":
		return storage.NewMemDB(), nil
	case "leveldb", "":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("prepare data dir: %w", err)
		}
		return storage.NewLevelDBWithOptions(cfg.DataDir, storage.LevelDBOptions{
			CacheMB:   cfg.Storage.CacheMB,
			OpenFiles: cfg.Storage.OpenFiles,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func loadGenesis(path string) (*genesis.GenesisSpec, error) {
	if path == "" {
		return nil, nil
	}
	spec, err := genesis.LoadGenesisSpec(path)
	if err != nil {
		return nil, fmt.Errorf("load genesis spec: %w", err)
	}
	return spec, nil
}

func run(ctx context.Context, cfg *config.Config, genesisPath string, logger *slog.Logger) error {
	db, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	spec, err := loadGenesis(genesisPath)
	if err != nil {
		return err
	}
	ledger, err := core.Open(db, spec, core.Options{Logger: logger})
	if err != nil {
		if errors.Is(err, core.ErrNoGenesis) {
			return fmt.Errorf("empty data dir and no genesis file; pass --genesis or set %s", genesisPathEnv)
		}
		return err
	}
	logger.Info("ledger opened",
		slog.Uint64("chainId", ledger.ChainID()),
		slog.Uint64("height", ledger.Height()),
		slog.String("stateRoot", ledger.StateRoot().Hex()))

	if cfg.Telemetry.Metrics || cfg.Telemetry.Traces {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: "sodapd",
			Environment: cfg.NetworkName,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
			SampleRatio: cfg.Telemetry.SampleRatio,
			ChainID:     ledger.ChainID(),
		})
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	if dsn := strings.TrimSpace(cfg.Indexer.DSN); dsn != "" {
		ix, err := indexer.Open(cfg.Indexer.Driver, dsn, logger)
		if err != nil {
			return fmt.Errorf("indexer: %w", err)
		}
		defer ix.Close()
		ledger.OnCommit(ix.Hook())
		logger.Info("indexer enabled", slog.String("driver", cfg.Indexer.Driver))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, 0, logger)
		publisher.Start(ctx)
		defer func() {
			publisher.Close()
			publisher.WaitClosed()
		}()
		ledger.OnCommit(publisher.Hook())
		logger.Info("kafka publisher enabled", slog.String("topic", cfg.Kafka.Topic))
	}

	if url := strings.TrimSpace(cfg.Webhook.URL); url != "" {
		secret := cfg.ResolveWebhookSecret()
		if secret == "" {
			return fmt.Errorf("webhook: %s is not set", cfg.Webhook.SecretEnv)
		}
		dispatcher, err := webhooks.NewDispatcher(url, []byte(secret),
			webhooks.WithEventFilter(cfg.Webhook.Events),
			webhooks.WithRetryPolicy(cfg.Webhook.MaxAttempts, 0, 0),
			webhooks.WithLogger(logger))
		if err != nil {
			return err
		}
		defer dispatcher.Close()
		ledger.OnCommit(dispatcher.Hook())
		logger.Info("webhooks enabled", slog.Int("filters", len(cfg.Webhook.Events)))
	}

	var idem *rpc.IdempotencyStore
	if cfg.RPC.IdempotencyDB != "" {
		idem, err = rpc.OpenIdempotencyStore(cfg.RPC.IdempotencyDB, time.Duration(cfg.RPC.IdempotencyTTLSec)*time.Second)
		if err != nil {
			return fmt.Errorf("idempotency store: %w", err)
		}
		defer idem.Close()
		go pruneIdempotency(ctx, idem, logger)
	}

	authToken := cfg.ResolveAuthToken()
	var jwtCfg *rpc.JWTConfig
	if secret := cfg.ResolveJWTSecret(); secret != "" {
		jwtCfg = &rpc.JWTConfig{Secret: secret, Issuer: cfg.RPC.JWTIssuer, Audience: cfg.RPC.JWTAudience}
	}
	if authToken == "" && jwtCfg == nil {
		logger.Warn("rpc auth not configured; sodap_sendTransaction is disabled")
	}
	server := rpc.NewServer(ledger, rpc.ServerConfig{
		AuthToken:       authToken,
		JWT:             jwtCfg,
		RateLimitPerSec: cfg.RPC.RateLimitPerSec,
		RateLimitBurst:  cfg.RPC.RateLimitBurst,
		MaxBodyBytes:    cfg.RPC.MaxBodyBytes,
		ReadTimeout:     time.Duration(cfg.RPC.ReadTimeoutSec) * time.Second,
		WriteTimeout:    time.Duration(cfg.RPC.WriteTimeoutSec) * time.Second,
		TrustedProxies:  cfg.RPC.TrustedProxies,
		EnableWebsocket: cfg.RPC.EnableWebsocket,
		Idempotency:     idem,
		Logger:          logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(cfg.RPC.Address) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func pruneIdempotency(ctx context.Context, store *rpc.IdempotencyStore, logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n, err := store.Prune(now); err != nil {
				logger.Warn("idempotency prune failed", slog.Any("error", err))
			} else if n > 0 {
				logger.Debug("idempotency records pruned", slog.Int("count", n))
			}
		}
	}
}
