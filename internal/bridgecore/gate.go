package bridgecore

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate bounds how many workers may be past admission at once.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int
}

// NewGate returns a gate admitting capacity holders; values below 1 mean 1.
func NewGate(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(capacity)), capacity: capacity}
}

func (g *Gate) Acquire(ctx context.Context) error { return g.sem.Acquire(ctx, 1) }

func (g *Gate) Release() { g.sem.Release(1) }

func (g *Gate) Capacity() int { return g.capacity }
