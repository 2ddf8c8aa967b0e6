// Package decoder turns raw ledger records into display-ready NFTs. Ledger
// strings arrive as hex-encoded byte vectors and prices as integer minor units.
package decoder

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/satonic/nft-marketplace/internal/apperrors"
	"github.com/satonic/nft-marketplace/internal/models"
)

// PriceDecimals is the fixed-point scale of ledger prices: display = minor / 10^8.
const PriceDecimals = 8

// MinorUnitsPerCoin is 10^PriceDecimals.
const MinorUnitsPerCoin = 100_000_000

// DecodeField interprets bytesHex (optionally 0x-prefixed) as raw bytes and
// decodes them as UTF-8.
func DecodeField(bytesHex string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(bytesHex, "0x"), "0X")
	if len(trimmed)%2 != 0 {
		return "", apperrors.ErrDecode.Msg(fmt.Sprintf("odd length hex field %q", bytesHex))
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return "", apperrors.ErrDecode.MsgErr(fmt.Sprintf("invalid hex field %q", bytesHex), err)
	}
	if !utf8.Valid(raw) {
		return "", apperrors.ErrDecode.Msg(fmt.Sprintf("field %q is not valid UTF-8", bytesHex))
	}
	return string(raw), nil
}

// DecodeFieldOrRaw is the recoverable form of DecodeField: malformed input is
// returned unchanged.
func DecodeFieldOrRaw(bytesHex string) string {
	s, err := DecodeField(bytesHex)
	if err != nil {
		log.Debug().Err(err).Msg("falling back to raw field")
		return bytesHex
	}
	return s
}

// EncodeField is the inverse of DecodeField.
func EncodeField(s string) string {
	return "0x" + hex.EncodeToString([]byte(s))
}

// NormalizePrice converts integer minor units to a display price.
func NormalizePrice(raw uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -PriceDecimals)
}

// DenormalizePrice converts a display price back to minor units, rounding to
// the nearest unit.
func DenormalizePrice(display decimal.Decimal) (uint64, error) {
	if display.IsNegative() {
		return 0, apperrors.ErrValidation.Msg(fmt.Sprintf("negative price %s", display))
	}
	minor := display.Shift(PriceDecimals).Round(0).BigInt()
	if !minor.IsUint64() {
		return 0, apperrors.ErrValidation.Msg(fmt.Sprintf("price %s out of range", display))
	}
	return minor.Uint64(), nil
}

// MinorUnits reads a u64 that the ledger may encode as a JSON string or number.
func MinorUnits(r gjson.Result) (uint64, error) {
	if !r.Exists() || r.Type == gjson.Null {
		return 0, apperrors.ErrDecode.Msg("missing integer value")
	}
	v, err := strconv.ParseUint(strings.TrimSpace(r.String()), 10, 64)
	if err != nil {
		return 0, apperrors.ErrDecode.MsgErr(fmt.Sprintf("invalid integer %q", r.String()), err)
	}
	return v, nil
}

// Optional unwraps a Move Option, which the ledger renders as {"vec":[]} or
// {"vec":[value]}. Plain scalars are returned as present, null as absent.
func Optional(r gjson.Result) (gjson.Result, bool) {
	if !r.Exists() || r.Type == gjson.Null {
		return gjson.Result{}, false
	}
	if r.IsObject() {
		vec := r.Get("vec")
		if !vec.IsArray() {
			return gjson.Result{}, false
		}
		items := vec.Array()
		if len(items) == 0 {
			return gjson.Result{}, false
		}
		return items[0], true
	}
	if r.Type == gjson.String && r.String() == "" {
		return gjson.Result{}, false
	}
	return r, true
}

// Bool reads a ledger boolean, tolerating "true"/"false" strings.
func Bool(r gjson.Result) bool {
	if r.Type == gjson.String {
		b, _ := strconv.ParseBool(r.String())
		return b
	}
	return r.Bool()
}

// Rarity reads and validates a rarity tier.
func Rarity(r gjson.Result) (models.Rarity, error) {
	v, err := MinorUnits(r)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint8 || !models.Rarity(v).Valid() {
		return 0, apperrors.ErrDecode.Msg(fmt.Sprintf("unknown rarity tier %d", v))
	}
	return models.Rarity(v), nil
}

// DecodeRecord decodes one element of the marketplace resource's nfts vector.
func DecodeRecord(r gjson.Result) (models.NFT, error) {
	id, err := MinorUnits(r.Get("id"))
	if err != nil {
		return models.NFT{}, fmt.Errorf("id: %w", err)
	}
	price, err := MinorUnits(r.Get("price"))
	if err != nil {
		return models.NFT{}, fmt.Errorf("nft %d price: %w", id, err)
	}
	rarity, err := Rarity(r.Get("rarity"))
	if err != nil {
		return models.NFT{}, fmt.Errorf("nft %d rarity: %w", id, err)
	}

	rec := models.NFT{
		ID:          id,
		Owner:       r.Get("owner").String(),
		Name:        DecodeFieldOrRaw(r.Get("name").String()),
		Description: DecodeFieldOrRaw(r.Get("description").String()),
		URI:         DecodeFieldOrRaw(r.Get("uri").String()),
		Price:       NormalizePrice(price),
		ForSale:     Bool(r.Get("for_sale")),
		Rarity:      rarity,
		IsAuction:   Bool(r.Get("is_auction")),
	}

	if rec.IsAuction {
		if end, ok := Optional(r.Get("auction_end")); ok {
			secs, err := MinorUnits(end)
			if err != nil {
				return models.NFT{}, fmt.Errorf("nft %d auction_end: %w", id, err)
			}
			t := time.Unix(int64(secs), 0).UTC()
			rec.AuctionEndTime = &t
		}
	}

	if bid, ok := Optional(r.Get("highest_bid")); ok {
		amount, err := MinorUnits(bid)
		if err != nil {
			return models.NFT{}, fmt.Errorf("nft %d highest_bid: %w", id, err)
		}
		if amount > 0 {
			display := NormalizePrice(amount)
			rec.HighestBid = &display
			if bidder, ok := Optional(r.Get("highest_bidder")); ok {
				addr := bidder.String()
				rec.HighestBidder = &addr
			}
		}
	}

	return rec, nil
}

// DecodeCatalog decodes the marketplace resource. Both the full resource
// envelope ({"type":..., "data":{"nfts":[...]}}) and the bare data object are
// accepted. Records that cannot be decoded are skipped with a warning.
func DecodeCatalog(raw []byte) ([]models.NFT, error) {
	if !gjson.ValidBytes(raw) {
		return nil, apperrors.ErrDecode.Msg("marketplace resource is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	nfts := doc.Get("data.nfts")
	if !nfts.Exists() {
		nfts = doc.Get("nfts")
	}
	if !nfts.IsArray() {
		return nil, apperrors.ErrDecode.Msg("marketplace resource has no nfts vector")
	}

	items := nfts.Array()
	records := make([]models.NFT, 0, len(items))
	for i, item := range items {
		rec, err := DecodeRecord(item)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("skipping undecodable catalog record")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// DecodeDetails decodes the positional tuple returned by the get_nft_details
// view: [id, owner, name, description, uri, price, for_sale, rarity]. The view
// carries no auction state, so IsAuction stays false.
func DecodeDetails(values []gjson.Result) (models.NFT, error) {
	if len(values) < 8 {
		return models.NFT{}, apperrors.ErrDecode.Msg(fmt.Sprintf("nft details: expected 8 values, got %d", len(values)))
	}
	id, err := MinorUnits(values[0])
	if err != nil {
		return models.NFT{}, fmt.Errorf("id: %w", err)
	}
	var price uint64
	if p, ok := Optional(values[5]); ok {
		if price, err = MinorUnits(p); err != nil {
			return models.NFT{}, fmt.Errorf("nft %d price: %w", id, err)
		}
	}
	rarity, err := Rarity(values[7])
	if err != nil {
		return models.NFT{}, fmt.Errorf("nft %d rarity: %w", id, err)
	}
	return models.NFT{
		ID:          id,
		Owner:       values[1].String(),
		Name:        DecodeFieldOrRaw(values[2].String()),
		Description: DecodeFieldOrRaw(values[3].String()),
		URI:         DecodeFieldOrRaw(values[4].String()),
		Price:       NormalizePrice(price),
		ForSale:     Bool(values[6]),
		Rarity:      rarity,
	}, nil
}
