package models

// DefaultPageSize is the number of records per page when none is configured
const DefaultPageSize = 8

// Filters are the inputs of a catalog view
type Filters struct {
	Query      string `json:"query"`
	Rarity     Rarity `json:"rarity"`
	ActiveOnly bool   `json:"active_only"`
}

// Page is one materialized page of a catalog view
type Page struct {
	Items    []NFT  `json:"items"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Version  uint64 `json:"version"`
}

// PageCount returns the number of pages needed for Total records
func (p Page) PageCount() int {
	if p.PageSize <= 0 || p.Total == 0 {
		return 0
	}
	n := p.Total / p.PageSize
	if p.Total%p.PageSize != 0 {
		n++
	}
	return n
}

// NFTListResponse represents the response for listing NFTs outside the paged view
type NFTListResponse struct {
	NFTs       []NFT `json:"nfts"`
	TotalCount int   `json:"total_count"`
}
