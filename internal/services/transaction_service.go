package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/satonic/nft-marketplace/internal/apperrors"
	"github.com/satonic/nft-marketplace/internal/config"
	"github.com/satonic/nft-marketplace/internal/decoder"
	"github.com/satonic/nft-marketplace/internal/ledger"
	"github.com/satonic/nft-marketplace/internal/models"
)

// Catalog is the part of the catalog store the write path needs
type Catalog interface {
	Snapshot() *models.Snapshot
	Refresh(ctx context.Context) (*models.Snapshot, error)
}

// TransactionService builds, submits and confirms marketplace writes. The
// catalog is only ever updated by a refresh after the ledger confirms.
type TransactionService struct {
	catalog        Catalog
	signer         Signer
	gateway        ledger.Gateway
	market         config.MarketConfig
	confirmTimeout time.Duration
	locks          *entityLocks
	now            func() time.Time
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(catalog Catalog, signer Signer, gateway ledger.Gateway, market config.MarketConfig, confirmTimeout time.Duration) *TransactionService {
	return &TransactionService{
		catalog:        catalog,
		signer:         signer,
		gateway:        gateway,
		market:         market,
		confirmTimeout: confirmTimeout,
		locks:          newEntityLocks(),
		now:            time.Now,
	}
}

// Signer returns the account writes are submitted from
func (s *TransactionService) Signer() Signer {
	return s.signer
}

// Mint creates a new NFT owned by the signer
func (s *TransactionService) Mint(ctx context.Context, req models.MintRequest) (*models.TxReceipt, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	payload := s.payload("mint_nft",
		s.market.MarketplaceAddress,
		decoder.EncodeField(req.Name),
		decoder.EncodeField(req.Description),
		decoder.EncodeField(req.URI),
		uint8(req.Rarity),
	)
	return s.execute(ctx, models.TxMint, nil, payload)
}

// ListForSale lists an owned NFT at a fixed price
func (s *TransactionService) ListForSale(ctx context.Context, req models.ListRequest) (*models.TxReceipt, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	minor, err := parseAmount("price", req.Price)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locks.lock(ctx, req.NFTID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	payload := s.payload("list_for_sale", s.market.MarketplaceAddress, idArg(req.NFTID), strconv.FormatUint(minor, 10))
	return s.execute(ctx, models.TxList, &req.NFTID, payload)
}

// Purchase buys a listed NFT at its list price
func (s *TransactionService) Purchase(ctx context.Context, req models.PurchaseRequest) (*models.TxReceipt, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if rec, ok := s.catalog.Snapshot().Find(req.NFTID); ok {
		if !rec.ForSale {
			return nil, apperrors.ErrValidation.Msg(fmt.Sprintf("nft %d is not listed for sale", req.NFTID))
		}
		if rec.IsAuction {
			return nil, apperrors.ErrValidation.Msg(fmt.Sprintf("nft %d is on auction, place a bid instead", req.NFTID))
		}
	}

	unlock, err := s.locks.lock(ctx, req.NFTID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	payload := s.payload("purchase_nft", s.market.MarketplaceAddress, idArg(req.NFTID))
	return s.execute(ctx, models.TxPurchase, &req.NFTID, payload)
}

// PlaceBid bids on an auctioned NFT
func (s *TransactionService) PlaceBid(ctx context.Context, req models.BidRequest) (*models.TxReceipt, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	minor, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	if rec, ok := s.catalog.Snapshot().Find(req.NFTID); ok {
		if err := s.checkBid(rec, decoder.NormalizePrice(minor)); err != nil {
			return nil, err
		}
	}

	unlock, err := s.locks.lock(ctx, req.NFTID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	payload := s.payload("place_bid", s.market.MarketplaceAddress, idArg(req.NFTID), strconv.FormatUint(minor, 10))
	return s.execute(ctx, models.TxBid, &req.NFTID, payload)
}

// Transfer moves an NFT to another account
func (s *TransactionService) Transfer(ctx context.Context, req models.TransferRequest) (*models.TxReceipt, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	recipient := strings.TrimSpace(req.Recipient)
	if strings.EqualFold(recipient, s.signer.Address()) {
		return nil, apperrors.ErrValidation.Msg("cannot transfer an NFT to yourself")
	}

	unlock, err := s.locks.lock(ctx, req.NFTID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	payload := s.payload("transfer_ownership", s.market.MarketplaceAddress, idArg(req.NFTID), recipient)
	return s.execute(ctx, models.TxTransfer, &req.NFTID, payload)
}

// checkBid applies the auction rules the ledger enforces, so obviously bad
// bids fail before anything is signed
func (s *TransactionService) checkBid(rec models.NFT, amount decimal.Decimal) error {
	if !rec.IsAuction {
		return apperrors.ErrValidation.Msg(fmt.Sprintf("nft %d is not on auction", rec.ID))
	}
	if rec.AuctionEnded(s.now()) {
		return apperrors.ErrValidation.Msg("auction has ended")
	}
	if rec.HighestBid != nil {
		if amount.LessThanOrEqual(*rec.HighestBid) {
			return apperrors.ErrValidation.Msg(fmt.Sprintf("bid must be higher than the current bid of %s", rec.HighestBid))
		}
		return nil
	}
	if amount.LessThan(rec.Price) {
		return apperrors.ErrValidation.Msg(fmt.Sprintf("bid must be at least the start price of %s", rec.Price))
	}
	return nil
}

func (s *TransactionService) payload(name string, args ...any) models.EntryFunctionPayload {
	return models.EntryFunctionPayload{
		Type:          "entry_function_payload",
		Function:      s.market.Function(name),
		TypeArguments: []string{},
		Arguments:     args,
	}
}

func (s *TransactionService) execute(ctx context.Context, kind models.TxKind, nftID *uint64, payload models.EntryFunctionPayload) (*models.TxReceipt, error) {
	logger := log.With().Str("kind", string(kind)).Str("function", payload.Function).Logger()

	handle, err := s.signer.SignAndSubmit(ctx, payload)
	if err != nil {
		mapped := mapSubmitError(err)
		logger.Warn().Err(err).Str("error_kind", string(apperrors.KindOf(mapped))).Msg("transaction not submitted")
		return nil, mapped
	}
	logger = logger.With().Str("hash", handle.Hash).Logger()
	logger.Info().Msg("transaction submitted")

	conf, err := s.gateway.AwaitConfirmation(ctx, handle, s.confirmTimeout)
	if err != nil {
		logger.Error().Err(err).Msg("transaction confirmation failed")
		return nil, err
	}
	if !conf.Success {
		abort := abortError(conf.VMStatus)
		logger.Warn().Str("vm_status", conf.VMStatus).Str("error_kind", string(abort.Kind)).Msg("transaction aborted")
		return nil, abort
	}

	receipt := &models.TxReceipt{
		Hash:          handle.Hash,
		Kind:          kind,
		NFTID:         nftID,
		LedgerVersion: conf.Version,
		ConfirmedAt:   time.Now().UTC(),
	}

	snap, err := s.catalog.Refresh(ctx)
	if err != nil && !errors.Is(err, apperrors.ErrStaleData) {
		// the write is committed; the next refresh will pick it up
		logger.Warn().Err(err).Msg("catalog refresh after confirmed transaction failed")
	}
	if snap != nil {
		receipt.CatalogVersion = snap.Version
	}

	logger.Info().Uint64("ledger_version", conf.Version).Msg("transaction confirmed")
	return receipt, nil
}

// parseAmount parses a display amount and converts it to minor units. The
// amount must stay positive after rounding to 8 decimals.
func parseAmount(field, raw string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperrors.ErrValidation.MsgErr(fmt.Sprintf("%s %q is not a number", field, raw), err)
	}
	if !d.IsPositive() {
		return 0, apperrors.ErrValidation.Msg(fmt.Sprintf("%s must be positive", field))
	}
	minor, err := decoder.DenormalizePrice(d)
	if err != nil {
		return 0, err
	}
	if minor == 0 {
		return 0, apperrors.ErrValidation.Msg(fmt.Sprintf("%s is below the smallest unit", field))
	}
	return minor, nil
}

func idArg(id uint64) string {
	return strconv.FormatUint(id, 10)
}
