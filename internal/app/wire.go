package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgaray/polyarb/internal/arbitrage"
	"github.com/dgaray/polyarb/internal/cache/redis"
	"github.com/dgaray/polyarb/internal/config"
	"github.com/dgaray/polyarb/internal/crypto"
	"github.com/dgaray/polyarb/internal/domain"
	"github.com/dgaray/polyarb/internal/executor"
	"github.com/dgaray/polyarb/internal/feed"
	"github.com/dgaray/polyarb/internal/notify"
	"github.com/dgaray/polyarb/internal/platform/polymarket"
	"github.com/dgaray/polyarb/internal/registry"
	"github.com/dgaray/polyarb/internal/scanner"
)

// Dependencies bundles everything the run loop needs. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Registry  *registry.Registry
	Detector  *arbitrage.Detector
	Stream    *feed.Stream
	Refresher *scanner.Refresher
	Reporter  *scanner.Reporter

	// Executor is nil in detection-only mode.
	Executor *executor.Executor

	Notifier *notify.Notifier

	// Bus is nil when the Redis opportunity bus is disabled.
	Bus *redis.OpportunityBus
}

// Wire constructs all concrete dependencies from the given configuration and
// returns them with a cleanup function to call on shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Registry: registry.New(),
		Detector: arbitrage.NewDetector(cfg.Scanner.MinProfit),
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.New(senders, cfg.Notify.Events, logger)

	// --- Redis opportunity bus (optional) ---
	if cfg.Redis.Enabled {
		client, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		deps.Bus = redis.NewOpportunityBus(client, cfg.Redis.Channel)
	}

	// --- Trading (optional; absence means detection-only) ---
	keySource := crypto.KeySource{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	}
	if cfg.Trading.Enabled && keySource.Configured() {
		key, err := crypto.LoadKey(keySource)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: load key: %w", err)
		}
		signer, err := crypto.NewSigner(key, cfg.Polymarket.ChainID, cfg.Polymarket.ExchangeAddress)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
		clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost)
		deps.Executor = executor.New(clob, signer, deps.Registry, deps.Notifier, executor.Config{
			FunderAddress: cfg.Wallet.FunderAddress,
			SignatureType: cfg.Polymarket.SignatureType,
			TradeSize:     cfg.Trading.TradeSize,
		}, logger)
		logger.Info("trading enabled",
			slog.String("signer", signer.Address().Hex()),
			slog.Float64("trade_size", cfg.Trading.TradeSize))
	} else {
		logger.Info("running in detection-only mode")
	}

	// --- Stream ---
	onOpportunity := opportunitySink(deps, logger)
	deps.Stream = feed.NewStream(
		cfg.Polymarket.WsHost,
		deps.Registry,
		deps.Detector,
		cfg.Scanner.ReconnectDelay.Duration,
		onOpportunity,
		logger,
	)

	// --- Reporting ---
	deps.Reporter = scanner.NewReporter(deps.Registry, deps.Detector, deps.Stream.Stats(), scanner.ReporterConfig{
		Interval:     cfg.Scanner.SnapshotInterval.Duration,
		SnapshotPath: cfg.Scanner.SnapshotPath,
	}, os.Stdout, logger)

	// --- Discovery ---
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	deps.Refresher = scanner.NewRefresher(gamma, deps.Registry, deps.Stream, scanner.RefresherConfig{
		Interval:     cfg.Scanner.RefreshInterval.Duration,
		PageSize:     cfg.Scanner.PageSize,
		MinVolume:    cfg.Scanner.MinVolume,
		MinLiquidity: cfg.Scanner.MinLiquidity,
		MaxMarkets:   cfg.Scanner.MaxMarkets,
	}, logger)

	return deps, cleanup, nil
}

// opportunitySink fans a live detection out to the recorder, the notifier,
// the bus, and the executor. Slow consumers run on their own goroutines so
// the stream loop is never blocked behind an HTTP call.
func opportunitySink(deps *Dependencies, logger *slog.Logger) feed.OpportunityHandler {
	return func(ctx context.Context, opp domain.Opportunity) {
		deps.Reporter.Record(opp)

		go func() {
			if err := deps.Notifier.Opportunity(ctx, opp); err != nil {
				logger.Warn("notification failed", slog.Any("error", err))
			}
		}()

		if deps.Bus != nil {
			go func() {
				if err := deps.Bus.Publish(ctx, opp); err != nil {
					logger.Warn("bus publish failed", slog.Any("error", err))
				}
			}()
		}

		if deps.Executor != nil {
			go deps.Executor.ExecuteOpportunity(ctx, opp)
		}
	}
}
