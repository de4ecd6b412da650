// Package config defines the engine's configuration and validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields are populated from a TOML file and
// then optionally overridden by POLYARB_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Scanner    ScannerConfig    `toml:"scanner"`
	Trading    TradingConfig    `toml:"trading"`
	Redis      RedisConfig      `toml:"redis"`
	Notify     NotifyConfig     `toml:"notify"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds the trading wallet credentials. All fields empty means
// detection-only mode: the engine watches and reports but never trades.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	FunderAddress    string `toml:"funder_address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds API endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost        string `toml:"clob_host"`
	GammaHost       string `toml:"gamma_host"`
	WsHost          string `toml:"ws_host"`
	ChainID         int    `toml:"chain_id"`
	ExchangeAddress string `toml:"exchange_address"`
	SignatureType   int    `toml:"signature_type"`
}

// ScannerConfig holds discovery, detection, and reporting parameters.
type ScannerConfig struct {
	RefreshInterval  duration `toml:"refresh_interval"`
	SnapshotInterval duration `toml:"snapshot_interval"`
	ReconnectDelay   duration `toml:"reconnect_delay"`
	PageSize         int      `toml:"page_size"`
	MinVolume        float64  `toml:"min_volume"`
	MinLiquidity     float64  `toml:"min_liquidity"`
	MaxMarkets       int      `toml:"max_markets"`
	MinProfit        float64  `toml:"min_profit"`
	SnapshotPath     string   `toml:"snapshot_path"`
}

// TradingConfig holds order-submission parameters.
type TradingConfig struct {
	Enabled   bool    `toml:"enabled"`
	TradeSize float64 `toml:"trade_size"`
}

// RedisConfig holds the optional Redis opportunity bus parameters. Leave Addr
// empty to disable the bus.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	Channel    string `toml:"channel"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration to support TOML string decoding ("5s", "2m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. These
// match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:        "https://clob.polymarket.com",
			GammaHost:       "https://gamma-api.polymarket.com",
			WsHost:          "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			ChainID:         137,
			ExchangeAddress: "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E",
			SignatureType:   0,
		},
		Scanner: ScannerConfig{
			RefreshInterval:  duration{5 * time.Minute},
			SnapshotInterval: duration{5 * time.Second},
			ReconnectDelay:   duration{5 * time.Second},
			PageSize:         100,
			MinVolume:        10_000,
			MinLiquidity:     1_000,
			MaxMarkets:       100,
			MinProfit:        0.01,
			SnapshotPath:     "opportunities.json",
		},
		Trading: TradingConfig{
			Enabled:   false,
			TradeSize: 100,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
			Channel:    "polyarb.opportunities",
		},
		Notify: NotifyConfig{
			Events: []string{"arb_detected", "order_submitted", "error"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found. A missing wallet is not an
// error: the engine degrades to detection-only mode.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket endpoints
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.WsHost == "" {
		errs = append(errs, "polymarket: ws_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.ExchangeAddress == "" {
		errs = append(errs, "polymarket: exchange_address must not be empty")
	}
	if c.Polymarket.SignatureType < 0 || c.Polymarket.SignatureType > 2 {
		errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 0 (EOA), 1 (proxy), or 2 (Safe), got %d", c.Polymarket.SignatureType))
	}

	// Wallet: only constrain when something is set.
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Scanner
	if c.Scanner.RefreshInterval.Duration <= 0 {
		errs = append(errs, "scanner: refresh_interval must be > 0")
	}
	if c.Scanner.SnapshotInterval.Duration <= 0 {
		errs = append(errs, "scanner: snapshot_interval must be > 0")
	}
	if c.Scanner.ReconnectDelay.Duration <= 0 {
		errs = append(errs, "scanner: reconnect_delay must be > 0")
	}
	if c.Scanner.PageSize < 1 {
		errs = append(errs, "scanner: page_size must be >= 1")
	}
	if c.Scanner.MinVolume < 0 {
		errs = append(errs, "scanner: min_volume must be >= 0")
	}
	if c.Scanner.MinLiquidity < 0 {
		errs = append(errs, "scanner: min_liquidity must be >= 0")
	}
	if c.Scanner.MaxMarkets < 1 {
		errs = append(errs, "scanner: max_markets must be >= 1")
	}
	if c.Scanner.MinProfit <= 0 || c.Scanner.MinProfit >= 1 {
		errs = append(errs, fmt.Sprintf("scanner: min_profit must be in (0, 1), got %v", c.Scanner.MinProfit))
	}

	// Trading
	if c.Trading.Enabled {
		if c.Trading.TradeSize <= 0 {
			errs = append(errs, "trading: trade_size must be > 0 when enabled")
		}
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "trading: a wallet (private_key or encrypted_key_path) is required when enabled")
		}
		if c.Wallet.FunderAddress == "" {
			errs = append(errs, "trading: wallet funder_address is required when enabled")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.Channel == "" {
			errs = append(errs, "redis: channel must not be empty when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
