package search

import (
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satonic/nft-marketplace/internal/models"
)

func record(id uint64, name, desc string, rarity models.Rarity, forSale bool) models.NFT {
	return models.NFT{
		ID:          id,
		Name:        name,
		Description: desc,
		Rarity:      rarity,
		ForSale:     forSale,
		Price:       decimal.NewFromInt(1),
	}
}

func ids(items []models.NFT) []uint64 {
	out := make([]uint64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestComputeViewRanking(t *testing.T) {
	snap := &models.Snapshot{Version: 3, Records: []models.NFT{
		record(1, "Red Fox", "a blue fox plushie", models.RarityCommon, true),
		record(2, "Blue Dragon", "", models.RarityRare, true),
	}}

	page := ComputeView(snap, models.Filters{Query: "blue"}, 1, 8)
	assert.Equal(t, []uint64{2, 1}, ids(page.Items))
	assert.EqualValues(t, 3, page.Version)

	page = ComputeView(snap, models.Filters{}, 1, 8)
	assert.Equal(t, []uint64{1, 2}, ids(page.Items), "empty query keeps ledger order")

	page = ComputeView(snap, models.Filters{Query: "unicorn"}, 1, 8)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.Total)
}

func TestComputeViewStableTies(t *testing.T) {
	snap := &models.Snapshot{Records: []models.NFT{
		record(1, "Cat", "", models.RarityCommon, true),
		record(2, "Bobcat", "", models.RarityCommon, true),
		record(3, "Cat", "", models.RarityCommon, true),
	}}

	page := ComputeView(snap, models.Filters{Query: "cat"}, 1, 8)
	// "Cat" scores 6 and "Bobcat" scores 5; equal scores keep ledger order
	assert.Equal(t, []uint64{1, 3, 2}, ids(page.Items))
}

func TestComputeViewRarityFacet(t *testing.T) {
	rarities := []models.Rarity{1, 2, 2, 3, 2}
	snap := &models.Snapshot{}
	for i, r := range rarities {
		snap.Records = append(snap.Records, record(uint64(i+1), fmt.Sprintf("nft %d", i+1), "", r, true))
	}

	page := ComputeView(snap, models.Filters{Rarity: models.RarityUncommon}, 1, 8)
	assert.Equal(t, []uint64{2, 3, 5}, ids(page.Items))
	assert.Equal(t, 3, page.Total)

	page = ComputeView(snap, models.Filters{Rarity: models.RarityAll}, 1, 8)
	assert.Len(t, page.Items, 5)
}

func TestComputeViewActiveOnly(t *testing.T) {
	snap := &models.Snapshot{Records: []models.NFT{
		record(1, "a", "", models.RarityCommon, true),
		record(2, "b", "", models.RarityCommon, false),
		record(3, "c", "", models.RarityCommon, true),
	}}

	page := ComputeView(snap, models.Filters{ActiveOnly: true}, 1, 8)
	assert.Equal(t, []uint64{1, 3}, ids(page.Items))
}

func TestComputeViewPagination(t *testing.T) {
	snap := &models.Snapshot{}
	for i := range 20 {
		snap.Records = append(snap.Records, record(uint64(i+1), "x", "", models.RarityCommon, true))
	}

	cases := map[int]int{1: 8, 2: 8, 3: 4, 4: 0}
	for p, want := range cases {
		page := ComputeView(snap, models.Filters{}, p, 8)
		assert.Len(t, page.Items, want, "page %d", p)
		assert.Equal(t, 20, page.Total)
		assert.Equal(t, 3, page.PageCount())
	}

	page := ComputeView(snap, models.Filters{}, 3, 8)
	require.NotEmpty(t, page.Items)
	assert.EqualValues(t, 17, page.Items[0].ID)

	page = ComputeView(snap, models.Filters{}, 0, 0)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, models.DefaultPageSize, page.PageSize)
	assert.Len(t, page.Items, 8)
}

func TestComputeViewOutOfRangePages(t *testing.T) {
	snap := &models.Snapshot{}
	for i := range 20 {
		snap.Records = append(snap.Records, record(uint64(i+1), "x", "", models.RarityCommon, true))
	}

	for _, p := range []int{5, 1 << 62, 1<<62 + 1, math.MaxInt} {
		page := ComputeView(snap, models.Filters{}, p, 8)
		assert.NotNil(t, page.Items)
		assert.Empty(t, page.Items, "page %d", p)
		assert.Equal(t, 20, page.Total)
		assert.Equal(t, p, page.Page)
	}

	page := ComputeView(snap, models.Filters{}, 1, math.MaxInt)
	assert.Len(t, page.Items, 20)
	page = ComputeView(snap, models.Filters{}, 2, math.MaxInt)
	assert.Empty(t, page.Items)
}

func TestComputeViewNilSnapshot(t *testing.T) {
	page := ComputeView(nil, models.Filters{Query: "x"}, 1, 8)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 0, page.Total)
}
