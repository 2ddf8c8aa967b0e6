package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Rarity is the ordinal rarity tier stored on the ledger
type Rarity uint8

// RarityAll is the facet value that passes every tier
const RarityAll Rarity = 0

const (
	RarityCommon Rarity = iota + 1
	RarityUncommon
	RarityRare
	RarityEpic
)

// AllRarities lists the defined tiers in ordinal order
var AllRarities = []Rarity{RarityCommon, RarityUncommon, RarityRare, RarityEpic}

var rarityLabels = map[Rarity]string{
	RarityCommon:   "Common",
	RarityUncommon: "Uncommon",
	RarityRare:     "Rare",
	RarityEpic:     "Epic",
}

// Valid reports whether r is one of the defined tiers
func (r Rarity) Valid() bool {
	_, ok := rarityLabels[r]
	return ok
}

func (r Rarity) String() string {
	if label, ok := rarityLabels[r]; ok {
		return label
	}
	if r == RarityAll {
		return "All"
	}
	return fmt.Sprintf("Rarity(%d)", uint8(r))
}

// NFT represents a token recorded on the ledger, decoded for display.
// Records are immutable values that are only meaningful within their snapshot.
type NFT struct {
	ID             uint64           `json:"id"`
	Owner          string           `json:"owner"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	URI            string           `json:"uri"`
	Price          decimal.Decimal  `json:"price"`
	ForSale        bool             `json:"for_sale"`
	Rarity         Rarity           `json:"rarity"`
	IsAuction      bool             `json:"is_auction"`
	AuctionEndTime *time.Time       `json:"auction_end_time,omitempty"`
	HighestBid     *decimal.Decimal `json:"highest_bid,omitempty"`
	HighestBidder  *string          `json:"highest_bidder,omitempty"`
}

// AuctionEnded reports whether the record is an auction whose end time has passed
func (n NFT) AuctionEnded(now time.Time) bool {
	return n.IsAuction && n.AuctionEndTime != nil && now.After(*n.AuctionEndTime)
}

// TimeRemaining renders the auction countdown shown next to a listing
func (n NFT) TimeRemaining(now time.Time) string {
	if !n.IsAuction || n.AuctionEndTime == nil {
		return "N/A"
	}
	if now.After(*n.AuctionEndTime) {
		return "Auction Ended"
	}

	diff := n.AuctionEndTime.Sub(now)
	days := int(diff / (24 * time.Hour))
	hours := int(diff%(24*time.Hour)) / int(time.Hour)
	minutes := int(diff%time.Hour) / int(time.Minute)
	return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
}

// Snapshot is a versioned, ordered copy of the catalog. It is replaced
// wholesale by the next successful refresh and never modified in place.
type Snapshot struct {
	Version   uint64    `json:"version"`
	Records   []NFT     `json:"records"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Len returns the number of records, treating a nil snapshot as empty
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Find returns the record with the given id
func (s *Snapshot) Find(id uint64) (NFT, bool) {
	if s == nil {
		return NFT{}, false
	}
	for _, rec := range s.Records {
		if rec.ID == id {
			return rec, true
		}
	}
	return NFT{}, false
}
