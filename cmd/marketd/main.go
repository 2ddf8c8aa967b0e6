// Command marketd serves the NFT marketplace catalog, search views and
// transaction endpoints over HTTP and WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/satonic/nft-marketplace/internal/config"
	"github.com/satonic/nft-marketplace/internal/handlers"
	"github.com/satonic/nft-marketplace/internal/ledger"
	"github.com/satonic/nft-marketplace/internal/logtrace"
	"github.com/satonic/nft-marketplace/internal/services"
	"github.com/satonic/nft-marketplace/internal/store"
)

func main() {
	cfg := config.MustLoad()
	logtrace.InitLogger(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	slog := log.With().Str("state", "init").Logger()

	gateway := ledger.NewRESTGateway(cfg.Ledger.NodeURL, cfg.Ledger.RequestTimeout, cfg.Ledger.PollInterval)
	catalog := store.NewCatalogStore(gateway, ledger.ResourceSelector{
		Address: cfg.Market.MarketplaceAddress,
		Type:    cfg.Market.ResourceType(),
	})

	// the daemon starts even if the node is down; the catalog stays empty until a refresh succeeds
	if snap, err := catalog.Refresh(ctx); err != nil {
		slog.Warn().Err(err).Msg("initial catalog load failed")
	} else {
		slog.Info().Uint64("version", snap.Version).Int("records", snap.Len()).Msg("catalog loaded")
	}

	wallets := services.NewWalletService(gateway)
	auth := services.NewAuthService(wallets, cfg.Auth)
	analytics := services.NewAnalyticsService(gateway, cfg.Market)

	deps := handlers.Dependencies{
		NFTs:      services.NewNFTService(catalog, gateway, cfg.Market),
		Wallets:   wallets,
		Auth:      auth,
		Analytics: analytics,
	}

	if cfg.Signer.PrivateKeyHex != "" {
		key, err := services.NewKeySigner(cfg.Signer.PrivateKeyHex, gateway)
		if err != nil {
			return fmt.Errorf("loading signer: %w", err)
		}
		signer := services.NewSessionSigner(key, auth)
		deps.Transactions = services.NewTransactionService(catalog, signer, gateway, cfg.Market, cfg.Ledger.ConfirmTimeout)
		slog.Info().Str("address", key.Address()).Msg("signer configured, log in with its wallet to enable writes")
	} else {
		slog.Info().Msg("no signer configured, write endpoints are disabled")
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := handlers.NewHub(catalog, cfg.Market.PageSize, cfg.Market.DebounceInterval)
	go hub.Run(hubCtx)
	deps.Hub = hub

	cancelCatalogFeed := catalog.OnChange(hub.CatalogChanged)
	defer cancelCatalogFeed()
	analytics.OnUpdate(hub.AnalyticsUpdated)
	analytics.Start(cfg.Market.AnalyticsInterval)
	defer analytics.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handlers.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info().Str("address", srv.Addr).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
