package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// .env is optional
	_ = godotenv.Load()
}

// Config represents the application configuration
type Config struct {
	Server ServerConfig
	Ledger LedgerConfig
	Market MarketConfig
	Auth   AuthConfig
	Signer SignerConfig
	Log    LogConfig
}

// ServerConfig contains server related configurations
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"45s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// LedgerConfig contains the fullnode endpoint and its timing bounds
type LedgerConfig struct {
	NodeURL        string        `envconfig:"LEDGER_NODE_URL" default:"https://fullnode.testnet.aptoslabs.com/v1"`
	RequestTimeout time.Duration `envconfig:"LEDGER_REQUEST_TIMEOUT" default:"10s"`
	ConfirmTimeout time.Duration `envconfig:"LEDGER_CONFIRM_TIMEOUT" default:"30s"`
	PollInterval   time.Duration `envconfig:"LEDGER_POLL_INTERVAL" default:"500ms"`
}

// MarketConfig identifies the marketplace contract and tunes the views built on it
type MarketConfig struct {
	ModuleAddress      string        `envconfig:"MARKET_MODULE_ADDRESS" default:"0xf87c7acfed155f11fae502d5d3c2f2a8bda1c96d89cfd0252bca321fa0cc5402"`
	ModuleName         string        `envconfig:"MARKET_MODULE_NAME" default:"NFTMarketplace"`
	MarketplaceAddress string        `envconfig:"MARKET_ADDRESS" default:"0xf87c7acfed155f11fae502d5d3c2f2a8bda1c96d89cfd0252bca321fa0cc5402"`
	PageSize           int           `envconfig:"MARKET_PAGE_SIZE" default:"8"`
	DebounceInterval   time.Duration `envconfig:"MARKET_DEBOUNCE_INTERVAL" default:"300ms"`
	AnalyticsInterval  time.Duration `envconfig:"MARKET_ANALYTICS_INTERVAL" default:"30s"`
	ListingLimit       int           `envconfig:"MARKET_LISTING_LIMIT" default:"100"`
}

// AuthConfig contains wallet session configurations
type AuthConfig struct {
	JWTSecret     string        `envconfig:"JWT_SECRET"`
	JWTExpiration time.Duration `envconfig:"JWT_EXPIRATION" default:"24h"`

	// ChallengeLimit caps outstanding login challenges
	ChallengeLimit int `envconfig:"AUTH_CHALLENGE_LIMIT" default:"10000"`
}

// SignerConfig holds the key used by the built-in signer. Empty disables write endpoints.
type SignerConfig struct {
	PrivateKeyHex string `envconfig:"SIGNER_PRIVATE_KEY"`
}

// LogConfig controls zerolog output
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Function returns the fully qualified entry or view function name.
func (m *MarketConfig) Function(name string) string {
	return fmt.Sprintf("%s::%s::%s", m.ModuleAddress, m.ModuleName, name)
}

// ResourceType returns the type tag of the marketplace resource.
func (m *MarketConfig) ResourceType() string {
	return fmt.Sprintf("%s::%s::Marketplace", m.ModuleAddress, m.ModuleName)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Market.PageSize <= 0 {
		return nil, fmt.Errorf("MARKET_PAGE_SIZE must be positive, got %d", cfg.Market.PageSize)
	}

	if cfg.Auth.JWTSecret == "" {
		// Sessions will not survive a restart, which matches the in-memory catalog.
		randomBytes := make([]byte, 32)
		if _, err := rand.Read(randomBytes); err != nil {
			return nil, err
		}
		cfg.Auth.JWTSecret = base64.StdEncoding.EncodeToString(randomBytes)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
