package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the delegation API. Values are
// read from the environment, optionally seeded from a .env file.
type Config struct {
	Stage   string `env:"STAGE" envDefault:"development"`
	APIPort string `env:"API_PORT" envDefault:"8000"`

	DatabaseURL string `env:"DATABASE_URL"`

	// Chain settings for the authorization write.
	RPCURL          string `env:"RPC_URL"`
	ChainID         int64  `env:"CHAIN_ID" envDefault:"10"`
	ContractAddress string `env:"DELEGATOR_CONTRACT_ADDRESS" envDefault:"0x08b7ECFac2c5754ABafb789c84F8fa37c9f088B0"`

	// Off-chain indexer serving delegation and allowlist state.
	IndexerURL   string        `env:"INDEXER_URL"`
	SyncInterval time.Duration `env:"INDEXER_SYNC_INTERVAL" envDefault:"30s"`

	// Confirmation polling. A zero bound polls indefinitely.
	PollInterval      time.Duration `env:"CONFIRMATION_POLL_INTERVAL" envDefault:"5s"`
	ConfirmationBound time.Duration `env:"CONFIRMATION_BOUND" envDefault:"15m"`

	// WebAuthn relying party identity for key backup.
	RPID   string `env:"WEBAUTHN_RP_ID" envDefault:"news.kiwistand.com"`
	RPName string `env:"WEBAUTHN_RP_NAME" envDefault:"Kiwi News"`

	// Accepted clock drift on signed message timestamps.
	TimestampTolerance time.Duration `env:"MESSAGE_TIMESTAMP_TOLERANCE" envDefault:"10m"`
}

// Load reads configuration from the environment. A missing .env file is not
// an error; explicit environment variables always win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings that the API server cannot run without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if c.IndexerURL == "" {
		return fmt.Errorf("INDEXER_URL environment variable is required")
	}
	return nil
}
