package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/satonic/nft-marketplace/internal/apperrors"
	"github.com/satonic/nft-marketplace/internal/decoder"
	"github.com/satonic/nft-marketplace/internal/ledger"
	"github.com/satonic/nft-marketplace/internal/models"
)

// CoinStoreType is the resource holding an account's native coin balance
const CoinStoreType = "0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>"

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// WalletService handles wallet operations
type WalletService struct {
	gateway ledger.Gateway
}

// NewWalletService creates a new WalletService
func NewWalletService(gateway ledger.Gateway) *WalletService {
	return &WalletService{gateway: gateway}
}

// IsAddressValid checks that address is 0x followed by 64 hex digits
func (s *WalletService) IsAddressValid(address string) bool {
	return addressPattern.MatchString(address)
}

// SameAddress compares two addresses case-insensitively
func (s *WalletService) SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

// VerifySignature verifies a BIP-340 Schnorr signature over message. The
// account address is the x-only public key, so no key lookup is needed.
func (s *WalletService) VerifySignature(address, message, signature string) (bool, error) {
	if !s.IsAddressValid(address) {
		return false, apperrors.ErrValidation.Msg(fmt.Sprintf("invalid address %q", address))
	}

	sigBytes, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return false, apperrors.ErrValidation.MsgErr("invalid signature format", err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false, apperrors.ErrValidation.MsgErr("failed to parse Schnorr signature", err)
	}

	pubKeyBytes, _ := hex.DecodeString(address[2:])
	pubKey, err := schnorr.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false, apperrors.ErrValidation.MsgErr("address is not a valid public key", err)
	}

	return sig.Verify(chainhash.HashB([]byte(message)), pubKey), nil
}

// GenerateMessageToSign generates a single-use challenge for wallet login
func (s *WalletService) GenerateMessageToSign(address string) string {
	// nonce prevents replay of an old signature
	return fmt.Sprintf("Sign this message to authenticate with the NFT marketplace: %s\nNonce: %s", address, uuid.NewString())
}

// Balance reads the account's coin balance. An account without a coin store
// has a zero balance.
func (s *WalletService) Balance(ctx context.Context, address string) (models.Balance, error) {
	if !s.IsAddressValid(address) {
		return models.Balance{}, apperrors.ErrValidation.Msg(fmt.Sprintf("invalid address %q", address))
	}

	raw, err := s.gateway.Read(ctx, ledger.ResourceSelector{Address: address, Type: CoinStoreType})
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.Balance{Address: address, Amount: decimal.Zero}, nil
	}
	if err != nil {
		return models.Balance{}, fmt.Errorf("read balance: %w", err)
	}

	value, err := decoder.MinorUnits(gjson.GetBytes(raw, "data.coin.value"))
	if err != nil {
		return models.Balance{}, fmt.Errorf("read balance: %w", err)
	}
	return models.Balance{Address: address, Amount: decoder.NormalizePrice(value)}, nil
}
