package proxy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoProxies is returned by Acquire only when its context ends while the
// pool is empty.
var ErrNoProxies = errors.New("no available proxies")

const defaultWarnEvery = 5 * time.Second

// Allocator hands out proxies from a FIFO pool. With uniqueness enabled an
// endpoint is never held by two callers at once.
//
// Acquire drops in-use duplicates it pops instead of putting them back, so a
// pool with repeated lines shrinks over a run.
type Allocator struct {
	mu     sync.Mutex
	pool   []Endpoint
	inUse  map[Endpoint]struct{}
	unique bool
	// closed and replaced on every Release to wake blocked Acquire calls
	avail chan struct{}

	WarnEvery time.Duration
	log       *zap.Logger
}

func NewAllocator(endpoints []Endpoint, unique bool, log *zap.Logger) *Allocator {
	if log == nil {
		log = zap.NewNop()
	}
	pool := make([]Endpoint, len(endpoints))
	copy(pool, endpoints)
	return &Allocator{
		pool:      pool,
		inUse:     make(map[Endpoint]struct{}),
		unique:    unique,
		avail:     make(chan struct{}),
		WarnEvery: defaultWarnEvery,
		log:       log.Named("proxy"),
	}
}

// Acquire pops the next usable endpoint. On an empty pool it waits for a
// Release, logging an error every WarnEvery until one arrives.
func (a *Allocator) Acquire(ctx context.Context) (Endpoint, error) {
	var ticker *time.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()
	for {
		a.mu.Lock()
		ep, ok := a.popLocked()
		wait := a.avail
		a.mu.Unlock()
		if ok {
			return ep, nil
		}

		if ticker == nil {
			a.warnEmpty()
			every := a.WarnEvery
			if every <= 0 {
				every = defaultWarnEvery
			}
			ticker = time.NewTicker(every)
		}
		select {
		case <-ctx.Done():
			return Endpoint{}, fmt.Errorf("%w: %v", ErrNoProxies, ctx.Err())
		case <-wait:
		case <-ticker.C:
			a.warnEmpty()
		}
	}
}

func (a *Allocator) popLocked() (Endpoint, bool) {
	for len(a.pool) > 0 {
		ep := a.pool[0]
		a.pool = a.pool[1:]
		if !a.unique {
			return ep, true
		}
		if _, busy := a.inUse[ep]; busy {
			continue
		}
		a.inUse[ep] = struct{}{}
		return ep, true
	}
	return Endpoint{}, false
}

func (a *Allocator) warnEmpty() {
	a.log.Error("No available proxies, please add more proxies to the file and restart the application")
}

// Release puts ep at the back of the pool and clears its in-use mark.
func (a *Allocator) Release(ep Endpoint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pool = append(a.pool, ep)
	delete(a.inUse, ep)
	close(a.avail)
	a.avail = make(chan struct{})
}

// Remove deletes one occurrence of ep from the pool. It reports whether one
// was found.
func (a *Allocator) Remove(ep Endpoint) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, p := range a.pool {
		if p == ep {
			a.pool = append(a.pool[:i:i], a.pool[i+1:]...)
			delete(a.inUse, ep)
			return true
		}
	}
	return false
}

// Len is the number of endpoints waiting in the pool.
func (a *Allocator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pool)
}

// InUse is the number of endpoints currently marked as held.
func (a *Allocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inUse)
}
