package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuthToken represents the authentication token response
type AuthToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Address   string    `json:"address"`
	// SignerAttached is true when the session unlocked the server-side signer
	SignerAttached bool `json:"signer_attached"`
}

// ChallengeRequest asks for a message to sign with a wallet
type ChallengeRequest struct {
	Address string `json:"address" validate:"required,ledgeraddr"`
}

// ChallengeResponse carries the message the wallet must sign
type ChallengeResponse struct {
	Message string `json:"message"`
}

// WalletAuthRequest represents a request to authenticate with a wallet
type WalletAuthRequest struct {
	Address   string `json:"address" validate:"required,ledgeraddr"`
	Signature string `json:"signature" validate:"required,hexadecimal"`
	Message   string `json:"message" validate:"required"`
}

// Balance is an account's coin balance in display units
type Balance struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}
