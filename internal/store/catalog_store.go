package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/satonic/nft-marketplace/internal/apperrors"
	"github.com/satonic/nft-marketplace/internal/decoder"
	"github.com/satonic/nft-marketplace/internal/ledger"
	"github.com/satonic/nft-marketplace/internal/models"
)

// CatalogStore holds the current catalog snapshot and refreshes it from the
// ledger. Readers never block on a refresh. A refresh result is installed only
// if no newer refresh is still in flight or already installed.
type CatalogStore struct {
	gateway  ledger.Gateway
	selector ledger.ResourceSelector

	current atomic.Pointer[models.Snapshot]

	// seqMu guards the issue sequence, the in-flight set and the installed sequence
	seqMu     sync.Mutex
	issued    uint64
	inFlight  map[uint64]struct{}
	installed uint64

	listenersMu sync.Mutex
	listeners   map[uint64]func(*models.Snapshot)
	nextID      uint64

	// notifyMu orders notifications by snapshot version
	notifyMu sync.Mutex
	notified uint64
}

// NewCatalogStore creates a store that reads the marketplace resource named by sel.
// The store starts with an empty snapshot at version 0.
func NewCatalogStore(gateway ledger.Gateway, sel ledger.ResourceSelector) *CatalogStore {
	s := &CatalogStore{
		gateway:   gateway,
		selector:  sel,
		inFlight:  make(map[uint64]struct{}),
		listeners: make(map[uint64]func(*models.Snapshot)),
	}
	s.current.Store(&models.Snapshot{Records: []models.NFT{}})
	return s
}

// Snapshot returns the current snapshot. The result must not be modified.
func (s *CatalogStore) Snapshot() *models.Snapshot {
	return s.current.Load()
}

// Refresh fetches and decodes the marketplace resource and installs it as a
// new snapshot. On failure the previous snapshot is kept and the error is
// returned. A result is dropped with apperrors.ErrStaleData, together with
// the snapshot current at that moment, when a later-issued refresh is still
// in flight or has already installed its result. A later refresh that failed
// does not supersede an earlier one.
func (s *CatalogStore) Refresh(ctx context.Context) (*models.Snapshot, error) {
	seq := s.begin()

	raw, err := s.gateway.Read(ctx, s.selector)
	if err != nil {
		s.abandon(seq)
		log.Warn().Err(err).Uint64("seq", seq).Msg("catalog refresh failed, keeping previous snapshot")
		return s.Snapshot(), fmt.Errorf("refresh catalog: %w", err)
	}
	records, err := decoder.DecodeCatalog(raw)
	if err != nil {
		s.abandon(seq)
		log.Warn().Err(err).Uint64("seq", seq).Msg("catalog decode failed, keeping previous snapshot")
		return s.Snapshot(), fmt.Errorf("refresh catalog: %w", err)
	}

	s.seqMu.Lock()
	delete(s.inFlight, seq)
	if seq < s.installed || s.newerInFlightLocked(seq) {
		s.seqMu.Unlock()
		log.Debug().Uint64("seq", seq).Msg("discarding superseded catalog refresh")
		return s.Snapshot(), apperrors.ErrStaleData
	}
	prev := s.current.Load()
	next := &models.Snapshot{
		Version:   prev.Version + 1,
		Records:   records,
		FetchedAt: time.Now().UTC(),
	}
	s.current.Store(next)
	s.installed = seq
	s.seqMu.Unlock()

	log.Debug().Uint64("version", next.Version).Int("records", len(records)).Msg("catalog snapshot installed")
	s.notify(next)
	return next, nil
}

func (s *CatalogStore) begin() uint64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.issued++
	s.inFlight[s.issued] = struct{}{}
	return s.issued
}

func (s *CatalogStore) abandon(seq uint64) {
	s.seqMu.Lock()
	delete(s.inFlight, seq)
	s.seqMu.Unlock()
}

func (s *CatalogStore) newerInFlightLocked(seq uint64) bool {
	for other := range s.inFlight {
		if other > seq {
			return true
		}
	}
	return false
}

// OnChange registers fn to be called after every installed snapshot, in
// version order. fn runs on the refreshing goroutine and must not call
// Refresh. The returned func unregisters it.
func (s *CatalogStore) OnChange(fn func(*models.Snapshot)) (cancel func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

func (s *CatalogStore) notify(snap *models.Snapshot) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	// a slower installer can get here after a newer snapshot was announced
	if snap.Version <= s.notified {
		return
	}
	s.notified = snap.Version

	s.listenersMu.Lock()
	fns := make([]func(*models.Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
