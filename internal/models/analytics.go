package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RarityCount is one bar of the rarity histogram
type RarityCount struct {
	Rarity Rarity `json:"rarity"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
}

// Listing is an entry of the marketplace's for-sale set
type Listing struct {
	ID     uint64          `json:"id"`
	Price  decimal.Decimal `json:"price"`
	Rarity Rarity          `json:"rarity"`
}

// MarketStats are the aggregates shown on the analytics dashboard
type MarketStats struct {
	TotalNFTs       uint64          `json:"total_nfts"`
	TotalSales      uint64          `json:"total_sales"`
	TotalAuctions   uint64          `json:"total_auctions"`
	AveragePrice    decimal.Decimal `json:"average_price"`
	RarityHistogram []RarityCount   `json:"rarity_histogram"`
	Listings        []Listing       `json:"listings"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
