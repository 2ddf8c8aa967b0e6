package search

import (
	"slices"
	"strings"

	"github.com/satonic/nft-marketplace/internal/models"
)

type scored struct {
	rec   models.NFT
	score float64
}

// ComputeView filters, ranks and pages snap. It is pure: the same inputs
// always produce the same page, and snap is never modified.
//
// Filtering applies the for-sale filter, then the rarity facet, then drops
// records with a non-positive score when the query is not blank. Ranked
// results are stable-sorted by descending score so ties keep ledger order.
// page < 1 is treated as 1 and pageSize <= 0 as models.DefaultPageSize.
func ComputeView(snap *models.Snapshot, filters models.Filters, page, pageSize int) models.Page {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = models.DefaultPageSize
	}

	var version uint64
	var records []models.NFT
	if snap != nil {
		version = snap.Version
		records = snap.Records
	}

	filtered := make([]models.NFT, 0, len(records))
	for _, rec := range records {
		if filters.ActiveOnly && !rec.ForSale {
			continue
		}
		if filters.Rarity != models.RarityAll && rec.Rarity != filters.Rarity {
			continue
		}
		filtered = append(filtered, rec)
	}

	if strings.TrimSpace(filters.Query) != "" {
		ranked := make([]scored, 0, len(filtered))
		for _, rec := range filtered {
			if s := Score(filters.Query, rec.Name, rec.Description); s > 0 {
				ranked = append(ranked, scored{rec: rec, score: s})
			}
		}
		slices.SortStableFunc(ranked, func(a, b scored) int {
			switch {
			case a.score > b.score:
				return -1
			case a.score < b.score:
				return 1
			}
			return 0
		})
		filtered = filtered[:0]
		for _, r := range ranked {
			filtered = append(filtered, r.rec)
		}
	}

	// compare page numbers before multiplying so huge pages cannot overflow
	items := []models.NFT{}
	pages := len(filtered) / pageSize
	if len(filtered)%pageSize != 0 {
		pages++
	}
	if page-1 < pages {
		start := (page - 1) * pageSize
		items = slices.Clone(filtered[start : start+min(pageSize, len(filtered)-start)])
	}

	return models.Page{
		Items:    items,
		Total:    len(filtered),
		Page:     page,
		PageSize: pageSize,
		Version:  version,
	}
}
