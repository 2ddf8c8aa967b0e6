package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/satonic/nft-marketplace/internal/apperrors"
	"github.com/satonic/nft-marketplace/internal/config"
	"github.com/satonic/nft-marketplace/internal/decoder"
	"github.com/satonic/nft-marketplace/internal/ledger"
	"github.com/satonic/nft-marketplace/internal/models"
	"github.com/satonic/nft-marketplace/internal/search"
)

// detailWorkers bounds concurrent get_nft_details calls
const detailWorkers = 8

// NFTService handles NFT-related reads
type NFTService struct {
	catalog Catalog
	gateway ledger.Gateway
	market  config.MarketConfig
}

// NewNFTService creates a new NFTService
func NewNFTService(catalog Catalog, gateway ledger.Gateway, market config.MarketConfig) *NFTService {
	return &NFTService{
		catalog: catalog,
		gateway: gateway,
		market:  market,
	}
}

// GetByID retrieves an NFT from the current snapshot
func (s *NFTService) GetByID(id uint64) (*models.NFT, error) {
	rec, ok := s.catalog.Snapshot().Find(id)
	if !ok {
		return nil, apperrors.ErrNotFound.Msg(fmt.Sprintf("nft %d not found", id))
	}
	return &rec, nil
}

// Snapshot returns the catalog snapshot currently served
func (s *NFTService) Snapshot() *models.Snapshot {
	return s.catalog.Snapshot()
}

// List materializes one page of the catalog
func (s *NFTService) List(filters models.Filters, page, pageSize int) models.Page {
	if pageSize <= 0 {
		pageSize = s.market.PageSize
	}
	return search.ComputeView(s.catalog.Snapshot(), filters, page, pageSize)
}

// Refresh reloads the catalog from the ledger
func (s *NFTService) Refresh(ctx context.Context) (*models.Snapshot, error) {
	return s.catalog.Refresh(ctx)
}

// OwnedBy lists the NFTs owned by an address straight from the ledger. Ids
// whose details cannot be fetched are skipped.
func (s *NFTService) OwnedBy(ctx context.Context, owner string) (*models.NFTListResponse, error) {
	if !addressPattern.MatchString(owner) {
		return nil, apperrors.ErrValidation.Msg(fmt.Sprintf("invalid address %q", owner))
	}

	out, err := s.gateway.View(ctx, s.market.Function("get_all_nfts_for_owner"),
		[]any{s.market.MarketplaceAddress, owner, strconv.Itoa(s.market.ListingLimit), "0"})
	if err != nil {
		return nil, fmt.Errorf("get_all_nfts_for_owner: %w", err)
	}
	if len(out) == 0 {
		return &models.NFTListResponse{NFTs: []models.NFT{}}, nil
	}

	var ids []uint64
	for _, v := range out[0].Array() {
		id, err := decoder.MinorUnits(v)
		if err != nil {
			log.Warn().Err(err).Str("owner", owner).Msg("skipping malformed nft id")
			continue
		}
		ids = append(ids, id)
	}

	records := make([]*models.NFT, len(ids))
	sem := make(chan struct{}, detailWorkers)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			rec, err := s.details(ctx, id)
			if err != nil {
				log.Warn().Err(err).Uint64("nft_id", id).Msg("failed to fetch nft details")
				return
			}
			records[i] = rec
		}()
	}
	wg.Wait()

	snap := s.catalog.Snapshot()
	nfts := make([]models.NFT, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		// the details view has no auction fields; take them from the catalog
		if known, ok := snap.Find(rec.ID); ok {
			rec.IsAuction = known.IsAuction
			rec.AuctionEndTime = known.AuctionEndTime
			rec.HighestBid = known.HighestBid
			rec.HighestBidder = known.HighestBidder
		}
		nfts = append(nfts, *rec)
	}

	return &models.NFTListResponse{NFTs: nfts, TotalCount: len(nfts)}, nil
}

func (s *NFTService) details(ctx context.Context, id uint64) (*models.NFT, error) {
	out, err := s.gateway.View(ctx, s.market.Function("get_nft_details"),
		[]any{s.market.MarketplaceAddress, strconv.FormatUint(id, 10)})
	if err != nil {
		return nil, err
	}
	rec, err := decoder.DecodeDetails(out)
	if err != nil {
		return nil, err
	}
	if rec.ID != id {
		return nil, errors.New("details returned for a different id")
	}
	return &rec, nil
}
