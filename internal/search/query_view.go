package search

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/satonic/nft-marketplace/internal/models"
)

// DefaultDebounce is the quiet interval after the last keystroke before a
// query recompute fires.
const DefaultDebounce = 300 * time.Millisecond

// QueryView is the stateful view one presentation session holds over the
// catalog. Query text changes are debounced; facet, page and catalog changes
// recompute immediately. Each materialized page is delivered to onChange.
type QueryView struct {
	mu       sync.Mutex
	snap     *models.Snapshot
	filters  models.Filters
	page     int
	pageSize int
	current  models.Page
	closed   bool

	debounce time.Duration
	pending  Deferred
	onChange func(models.Page)
}

// NewQueryView creates a view over snap showing page 1 with no filters.
// onChange may be nil. It runs with the view locked and must not call back
// into the view.
func NewQueryView(snap *models.Snapshot, pageSize int, debounce time.Duration, onChange func(models.Page)) *QueryView {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	v := &QueryView{
		snap:     snap,
		page:     1,
		pageSize: pageSize,
		debounce: debounce,
		onChange: onChange,
	}
	v.current = ComputeView(snap, v.filters, v.page, pageSize)
	return v
}

// SetQuery schedules a recompute with the new query text. A later call before
// the debounce interval elapses supersedes this one.
func (v *QueryView) SetQuery(q string) {
	v.pending.Schedule(v.debounce, func() {
		v.update(func() bool {
			v.filters.Query = q
			v.page = 1
			return true
		})
	})
}

// SetRarity selects the rarity facet. models.RarityAll clears it.
func (v *QueryView) SetRarity(r models.Rarity) {
	v.update(func() bool {
		v.filters.Rarity = r
		v.page = 1
		return true
	})
}

// SetActiveOnly restricts the view to records that are for sale.
func (v *QueryView) SetActiveOnly(active bool) {
	v.update(func() bool {
		v.filters.ActiveOnly = active
		v.page = 1
		return true
	})
}

// SetPage moves to page p of the current result set.
func (v *QueryView) SetPage(p int) {
	v.update(func() bool {
		v.page = max(p, 1)
		return true
	})
}

// OnCatalogChanged installs a newer snapshot. Snapshots older than the one
// already shown are ignored.
func (v *QueryView) OnCatalogChanged(snap *models.Snapshot) {
	v.update(func() bool {
		if snap == nil || (v.snap != nil && snap.Version < v.snap.Version) {
			log.Debug().Msg("ignoring older catalog snapshot")
			return false
		}
		v.snap = snap
		v.page = 1
		return true
	})
}

// Current returns the last materialized page.
func (v *QueryView) Current() models.Page {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Filters returns the filters currently applied.
func (v *QueryView) Filters() models.Filters {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filters
}

// Close cancels any pending recompute. No page is delivered after Close returns.
func (v *QueryView) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.pending.Close()
}

func (v *QueryView) update(mutate func() bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || !mutate() {
		return
	}
	v.current = ComputeView(v.snap, v.filters, v.page, v.pageSize)
	// deliver under the lock so pages arrive in the order they were computed
	if v.onChange != nil {
		v.onChange(v.current)
	}
}
