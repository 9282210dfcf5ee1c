package exports

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sodap/integrations/indexer"
)

// Manifest describes one export run.
type Manifest struct {
	Store       string    `json:"store,omitempty"`
	Count       int       `json:"count"`
	CSV         string    `json:"csv"`
	CSVChecksum string    `json:"csvChecksum"`
	JSONL       string    `json:"jsonl"`
	JSONLSum    string    `json:"jsonlChecksum"`
	Parquet     string    `json:"parquet"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Run exports the indexed receipts of storeAddr (all stores when empty) into
// dir as CSV, JSON Lines and parquet, and writes a manifest next to them.
func Run(ctx context.Context, ix *indexer.Indexer, dir, storeAddr string, decimals uint8, now time.Time) (*Manifest, error) {
	receipts, err := ix.Receipts(ctx, storeAddr)
	if err != nil {
		return nil, fmt.Errorf("exports: load receipts: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("exports: create dir: %w", err)
	}
	base := "receipts-all"
	if storeAddr != "" {
		short := strings.TrimPrefix(storeAddr, "0x")
		if len(short) > 16 {
			short = short[:16]
		}
		base = "receipts-" + short
	}
	base += "-" + now.UTC().Format("20060102T150405Z")

	manifest := &Manifest{Store: storeAddr, Count: len(receipts), GeneratedAt: now.UTC()}

	csvData, csvSum, err := ReceiptsCSV(receipts, decimals)
	if err != nil {
		return nil, err
	}
	manifest.CSV = filepath.Join(dir, base+".csv")
	manifest.CSVChecksum = csvSum
	if err := os.WriteFile(manifest.CSV, csvData, 0o644); err != nil {
		return nil, fmt.Errorf("exports: write csv: %w", err)
	}

	jsonl, jsonlSum, err := ReceiptsJSONL(receipts, decimals)
	if err != nil {
		return nil, err
	}
	manifest.JSONL = filepath.Join(dir, base+".jsonl")
	manifest.JSONLSum = jsonlSum
	if err := os.WriteFile(manifest.JSONL, jsonl, 0o644); err != nil {
		return nil, fmt.Errorf("exports: write jsonl: %w", err)
	}

	manifest.Parquet = filepath.Join(dir, base+".parquet")
	if err := WriteReceiptsParquet(manifest.Parquet, receipts); err != nil {
		return nil, err
	}

	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, base+".manifest.json"), encoded, 0o644); err != nil {
		return nil, fmt.Errorf("exports: write manifest: %w", err)
	}
	return manifest, nil
}
