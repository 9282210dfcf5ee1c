package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"sodap/config"
	"sodap/integrations/exports"
	"sodap/integrations/indexer"
	"sodap/observability/logging"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	storeAddr := flag.String("store", "", "Export only this store's receipts")
	outDir := flag.String("out", "", "Output directory (defaults to exports.Dir)")
	decimals := flag.Uint("decimals", 6, "Token decimals used for display amounts")
	flag.Parse()

	logger := logging.Setup("sodap-export", strings.TrimSpace(os.Getenv("SODAP_ENV")))

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	dir := strings.TrimSpace(*outDir)
	if dir == "" {
		dir = cfg.Exports.Dir
	}
	if dir == "" {
		logger.Error("no output directory; pass --out or set exports.Dir")
		os.Exit(1)
	}
	if strings.TrimSpace(cfg.Indexer.DSN) == "" {
		logger.Error("indexer.DSN is not configured")
		os.Exit(1)
	}
	if *decimals > 18 {
		logger.Error("decimals must be at most 18")
		os.Exit(1)
	}

	ix, err := indexer.Open(cfg.Indexer.Driver, cfg.Indexer.DSN, logger)
	if err != nil {
		logger.Error("open indexer", slog.Any("error", err))
		os.Exit(1)
	}
	defer ix.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	manifest, err := exports.Run(ctx, ix, dir, strings.TrimSpace(*storeAddr), uint8(*decimals), time.Now())
	if err != nil {
		logger.Error("export failed", slog.Any("error", err))
		os.Exit(1)
	}
	encoded, _ := json.MarshalIndent(manifest, "", "  ")
	fmt.Println(string(encoded))
}
