package services

import (
	"context"
	"net/http"
	"sync"

	"github.com/satonic/nft-marketplace/internal/apperrors"
)

// ErrBusy is returned when a caller gave up waiting for another write on the same NFT
var ErrBusy = apperrors.New("another write on this nft is in progress").SetStatusCode(http.StatusConflict)

// entityLocks serializes write operations per NFT id. Entries are reference
// counted and dropped when the last holder or waiter leaves.
type entityLocks struct {
	mu    sync.Mutex
	locks map[uint64]*entityLock
}

// entityLock is held while its one-slot channel is full
type entityLock struct {
	slot chan struct{}
	refs int
}

func newEntityLocks() *entityLocks {
	return &entityLocks{locks: make(map[uint64]*entityLock)}
}

// lock waits until id is free or ctx is done. On success it returns the
// matching unlock.
func (l *entityLocks) lock(ctx context.Context, id uint64) (func(), error) {
	l.mu.Lock()
	el, ok := l.locks[id]
	if !ok {
		el = &entityLock{slot: make(chan struct{}, 1)}
		l.locks[id] = el
	}
	el.refs++
	l.mu.Unlock()

	select {
	case el.slot <- struct{}{}:
	case <-ctx.Done():
		l.release(id, el)
		return nil, ErrBusy.Err(ctx.Err())
	}
	return func() {
		<-el.slot
		l.release(id, el)
	}, nil
}

func (l *entityLocks) release(id uint64, el *entityLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	el.refs--
	if el.refs == 0 {
		delete(l.locks, id)
	}
}

// held returns the number of ids with a holder or waiter
func (l *entityLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
