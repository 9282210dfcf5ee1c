package config

import (
	"fmt"
	"strings"
)

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Storage.Backend)) {
	case "leveldb":
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("DataDir must be set for the leveldb backend")
		}
	case "memory":
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	if strings.TrimSpace(c.RPC.Address) == "" {
		return fmt.Errorf("rpc: Address must be set")
	}
	if c.RPC.RateLimitPerSec < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.RPC.RateLimitPerSec > 0 && c.RPC.RateLimitBurst == 0 {
		return fmt.Errorf("rpc: RateLimitBurst must be positive when RateLimitPerSec is set")
	}
	if c.RPC.MaxBodyBytes < 0 {
		return fmt.Errorf("rpc: MaxBodyBytes must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	if strings.TrimSpace(c.Indexer.DSN) != "" {
		switch strings.ToLower(strings.TrimSpace(c.Indexer.Driver)) {
		case "postgres", "sqlite":
		default:
			return fmt.Errorf("indexer: unknown driver %q", c.Indexer.Driver)
		}
	}
	if len(c.Kafka.Brokers) > 0 && strings.TrimSpace(c.Kafka.Topic) == "" {
		return fmt.Errorf("kafka: Topic must be set when Brokers are configured")
	}
	if strings.TrimSpace(c.Webhook.URL) != "" {
		if !strings.HasPrefix(c.Webhook.URL, "http://") && !strings.HasPrefix(c.Webhook.URL, "https://") {
			return fmt.Errorf("webhook: URL must be http or https")
		}
		if c.Webhook.MaxAttempts < 0 {
			return fmt.Errorf("webhook: MaxAttempts must not be negative")
		}
	}
	return nil
}
