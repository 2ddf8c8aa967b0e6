package models

import (
	"time"
)

// TxKind names a write intent
type TxKind string

const (
	TxMint     TxKind = "mint"
	TxList     TxKind = "list_for_sale"
	TxPurchase TxKind = "purchase"
	TxBid      TxKind = "place_bid"
	TxTransfer TxKind = "transfer"
)

// EntryFunctionPayload is the ledger write payload
type EntryFunctionPayload struct {
	Type          string   `json:"type"`
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// MintRequest represents a request to mint a new NFT
type MintRequest struct {
	Name        string `json:"name" validate:"required,max=256"`
	Description string `json:"description" validate:"required,max=2048"`
	URI         string `json:"uri" validate:"required,uri"`
	Rarity      Rarity `json:"rarity" validate:"rarity"`
}

// ListRequest represents a request to list an owned NFT for sale
type ListRequest struct {
	NFTID uint64 `json:"nft_id"`
	Price string `json:"price" validate:"required"`
}

// PurchaseRequest represents a request to buy a listed NFT
type PurchaseRequest struct {
	NFTID uint64 `json:"nft_id"`
}

// BidRequest represents a request to place a bid on an auction
type BidRequest struct {
	NFTID  uint64 `json:"nft_id"`
	Amount string `json:"amount" validate:"required"`
}

// TransferRequest represents a request to transfer ownership of an NFT
type TransferRequest struct {
	NFTID     uint64 `json:"nft_id"`
	Recipient string `json:"recipient" validate:"required,ledgeraddr"`
}

// TxReceipt is returned once a write has been confirmed by the ledger
type TxReceipt struct {
	Hash           string    `json:"hash"`
	Kind           TxKind    `json:"kind"`
	NFTID          *uint64   `json:"nft_id,omitempty"`
	LedgerVersion  uint64    `json:"ledger_version"`
	CatalogVersion uint64    `json:"catalog_version"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
}
