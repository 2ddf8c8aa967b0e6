package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/satonic/nft-marketplace/internal/apperrors"
	"github.com/satonic/nft-marketplace/internal/config"
	"github.com/satonic/nft-marketplace/internal/decoder"
	"github.com/satonic/nft-marketplace/internal/ledger"
	"github.com/satonic/nft-marketplace/internal/models"
)

// pollTimeout bounds one background poll
const pollTimeout = 30 * time.Second

// AnalyticsService polls marketplace aggregates from the ledger. It reads
// the ledger directly and is independent of the catalog snapshot.
type AnalyticsService struct {
	gateway ledger.Gateway
	market  config.MarketConfig

	mu        sync.RWMutex
	stats     models.MarketStats
	lastErr   error
	listeners []func(models.MarketStats)

	ticker   *time.Ticker
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(gateway ledger.Gateway, market config.MarketConfig) *AnalyticsService {
	return &AnalyticsService{
		gateway: gateway,
		market:  market,
		stats: models.MarketStats{
			AveragePrice:    decimal.Zero,
			RarityHistogram: emptyHistogram(),
			Listings:        []models.Listing{},
		},
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Stats returns the last successfully computed aggregates and the error of
// the most recent poll, if it failed
func (s *AnalyticsService) Stats() (models.MarketStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, s.lastErr
}

// OnUpdate registers fn to be called after every successful poll
func (s *AnalyticsService) OnUpdate(fn func(models.MarketStats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Poll fetches every aggregate. On failure the previous values are kept and
// returned together with the error.
func (s *AnalyticsService) Poll(ctx context.Context) (models.MarketStats, error) {
	stats, err := s.fetch(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		prev := s.stats
		s.mu.Unlock()
		log.Warn().Err(err).Msg("analytics poll failed, keeping previous stats")
		return prev, err
	}

	s.mu.Lock()
	s.stats = stats
	s.lastErr = nil
	listeners := append([]func(models.MarketStats){}, s.listeners...)
	s.mu.Unlock()

	log.Debug().Uint64("total_nfts", stats.TotalNFTs).Int("listings", len(stats.Listings)).Msg("analytics updated")
	for _, fn := range listeners {
		fn(stats)
	}
	return stats, nil
}

// Start polls immediately and then every interval until Close
func (s *AnalyticsService) Start(interval time.Duration) {
	s.ticker = time.NewTicker(interval)
	go s.backgroundPoll()
	log.Info().Dur("interval", interval).Msg("analytics polling started")
}

// Close stops background polling and waits for an in-flight poll to finish
func (s *AnalyticsService) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.ticker != nil {
			s.ticker.Stop()
			<-s.done
		}
	})
}

func (s *AnalyticsService) backgroundPoll() {
	defer close(s.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.pollOnce(ctx)
	for {
		select {
		case <-s.ticker.C:
			s.pollOnce(ctx)
		case <-s.stop:
			return
		}
	}
}

func (s *AnalyticsService) pollOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, pollTimeout)
	defer cancel()
	_, _ = s.Poll(ctx)
}

func (s *AnalyticsService) fetch(ctx context.Context) (models.MarketStats, error) {
	var stats models.MarketStats
	var err error

	if stats.TotalNFTs, err = s.scalar(ctx, "get_total_nfts"); err != nil {
		return stats, err
	}
	if stats.TotalSales, err = s.scalar(ctx, "get_total_sales"); err != nil {
		return stats, err
	}
	if stats.TotalAuctions, err = s.scalar(ctx, "get_total_auctions"); err != nil {
		return stats, err
	}

	listed, err := s.view(ctx, "get_all_nfts_for_sale", s.market.MarketplaceAddress, strconv.Itoa(s.market.ListingLimit), "0")
	if err != nil {
		return stats, err
	}
	stats.Listings, stats.AveragePrice, err = listings(listed)
	if err != nil {
		return stats, err
	}

	stats.RarityHistogram = make([]models.RarityCount, 0, len(models.AllRarities))
	for _, r := range models.AllRarities {
		ids, err := s.view(ctx, "get_nfts_by_rarity", s.market.MarketplaceAddress, uint8(r))
		if err != nil {
			return stats, err
		}
		stats.RarityHistogram = append(stats.RarityHistogram, models.RarityCount{
			Rarity: r,
			Label:  r.String(),
			Count:  len(ids.Array()),
		})
	}

	stats.UpdatedAt = time.Now().UTC()
	return stats, nil
}

// view calls a marketplace view function and returns its first result
func (s *AnalyticsService) view(ctx context.Context, name string, args ...any) (gjson.Result, error) {
	fn := s.market.Function(name)
	out, err := s.gateway.View(ctx, fn, args)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: %w", name, err)
	}
	if len(out) == 0 {
		return gjson.Result{}, apperrors.ErrDecode.Msg(fmt.Sprintf("%s returned no values", name))
	}
	return out[0], nil
}

func (s *AnalyticsService) scalar(ctx context.Context, name string) (uint64, error) {
	v, err := s.view(ctx, name, s.market.MarketplaceAddress)
	if err != nil {
		return 0, err
	}
	n, err := decoder.MinorUnits(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

// listings decodes the for-sale set and its average display price
// (sum of minor units / (10^8 * count), 0 when empty)
func listings(listed gjson.Result) ([]models.Listing, decimal.Decimal, error) {
	items := listed.Array()
	out := make([]models.Listing, 0, len(items))
	sum := decimal.Zero
	for _, item := range items {
		id, err := decoder.MinorUnits(item.Get("id"))
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("listing id: %w", err)
		}
		price, err := decoder.MinorUnits(item.Get("price"))
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("listing %d price: %w", id, err)
		}
		display := decoder.NormalizePrice(price)
		sum = sum.Add(display)
		out = append(out, models.Listing{
			ID:     id,
			Price:  display,
			Rarity: models.Rarity(item.Get("rarity").Uint()),
		})
	}
	if len(out) == 0 {
		return out, decimal.Zero, nil
	}
	return out, sum.DivRound(decimal.NewFromInt(int64(len(out))), decoder.PriceDecimals), nil
}

func emptyHistogram() []models.RarityCount {
	h := make([]models.RarityCount, 0, len(models.AllRarities))
	for _, r := range models.AllRarities {
		h = append(h, models.RarityCount{Rarity: r, Label: r.String()})
	}
	return h
}
