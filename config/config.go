package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DataDir     string `toml:"DataDir"`
	GenesisFile string `toml:"GenesisFile"`
	NetworkName string `toml:"NetworkName"`

	Log       Log       `toml:"log"`
	Storage   Storage   `toml:"storage"`
	RPC       RPC       `toml:"rpc"`
	Telemetry Telemetry `toml:"telemetry"`
	Indexer   Indexer   `toml:"indexer"`
	Kafka     Kafka     `toml:"kafka"`
	Exports   Exports   `toml:"exports"`
	Webhook   Webhook   `toml:"webhook"`
}

type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Storage selects the state backend. Backend is "leveldb" or "memory".
type Storage struct {
	Backend   string `toml:"Backend"`
	CacheMB   int    `toml:"CacheMB"`
	OpenFiles int    `toml:"OpenFiles"`
}

type RPC struct {
	Address string `toml:"Address"`
	// AuthToken guards write methods. AuthTokenEnv names an environment
	// variable to read it from instead.
	AuthToken         string   `toml:"AuthToken"`
	AuthTokenEnv      string   `toml:"AuthTokenEnv"`
	RateLimitPerSec   float64  `toml:"RateLimitPerSec"`
	RateLimitBurst    int      `toml:"RateLimitBurst"`
	IdempotencyDB     string   `toml:"IdempotencyDB"`
	IdempotencyTTLSec int      `toml:"IdempotencyTTLSec"`
	ReadTimeoutSec    int      `toml:"ReadTimeoutSec"`
	WriteTimeoutSec   int      `toml:"WriteTimeoutSec"`
	MaxBodyBytes      int64    `toml:"MaxBodyBytes"`
	TrustedProxies    []string `toml:"TrustedProxies"`
	EnableWebsocket   bool     `toml:"EnableWebsocket"`
	// JWTSecretEnv names the environment variable holding an HS256 key.
	// When set, bearer JWTs carrying the tx:send scope may submit writes.
	JWTSecretEnv string `toml:"JWTSecretEnv"`
	JWTIssuer    string `toml:"JWTIssuer"`
	JWTAudience  string `toml:"JWTAudience"`
}

type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Metrics     bool    `toml:"Metrics"`
	Traces      bool    `toml:"Traces"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Indexer mirrors committed records into SQL. Driver is "postgres" or
// "sqlite"; an empty DSN disables it.
type Indexer struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Kafka publishes committed events. No brokers disables it.
type Kafka struct {
	Brokers []string `toml:"Brokers"`
	Topic   string   `toml:"Topic"`
}

type Exports struct {
	Dir string `toml:"Dir"`
}

// Webhook delivers signed commerce events to an HTTP endpoint. An empty URL
// disables it. The signing secret is read from SecretEnv.
type Webhook struct {
	URL         string   `toml:"URL"`
	SecretEnv   string   `toml:"SecretEnv"`
	Events      []string `toml:"Events"`
	MaxAttempts int      `toml:"MaxAttempts"`
}

// Default returns a configuration suitable for a local single node.
func Default() *Config {
	return &Config{
		DataDir:     "./sodap-data",
		NetworkName: "sodap-local",
		Log:         Log{Level: "info"},
		Storage:     Storage{Backend: "leveldb", CacheMB: 64, OpenFiles: 256},
		RPC: RPC{
			Address:           "127.0.0.1:8545",
			RateLimitPerSec:   20,
			RateLimitBurst:    40,
			IdempotencyTTLSec: 86400,
			ReadTimeoutSec:    15,
			WriteTimeoutSec:   15,
			MaxBodyBytes:      1 << 20,
			TrustedProxies:    []string{},
			EnableWebsocket:   true,
		},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Insecure: true, SampleRatio: 1},
		Kafka:     Kafka{Brokers: []string{}, Topic: "sodap.events"},
		Webhook:   Webhook{SecretEnv: "SODAP_WEBHOOK_SECRET", Events: []string{}, MaxAttempts: 5},
	}
}

// Load loads the configuration from the given path, writing the defaults
// there first when the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "sodap-local"
	}
	if cfg.RPC.TrustedProxies == nil {
		cfg.RPC.TrustedProxies = []string{}
	}
	if cfg.Kafka.Brokers == nil {
		cfg.Kafka.Brokers = []string{}
	}
	if cfg.Webhook.Events == nil {
		cfg.Webhook.Events = []string{}
	}
	if cfg.RPC.IdempotencyDB == "" {
		cfg.RPC.IdempotencyDB = filepath.Join(cfg.DataDir, "idempotency.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// ResolveAuthToken returns the RPC bearer token, preferring the environment
// variable named by AuthTokenEnv.
func (c *Config) ResolveAuthToken() string {
	if env := strings.TrimSpace(c.RPC.AuthTokenEnv); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(c.RPC.AuthToken)
}

// ResolveJWTSecret reads the RPC JWT signing key from the environment.
func (c *Config) ResolveJWTSecret() string {
	if env := strings.TrimSpace(c.RPC.JWTSecretEnv); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// ResolveWebhookSecret reads the webhook signing secret from the environment.
func (c *Config) ResolveWebhookSecret() string {
	if env := strings.TrimSpace(c.Webhook.SecretEnv); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	cfg.RPC.IdempotencyDB = filepath.Join(cfg.DataDir, "idempotency.db")
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
