// Package ctxwait holds the context-aware sleep shared by the quote retry
// loop and the bridge workers.
package ctxwait

import (
	"context"
	"time"
)

// Sleep waits for d or until ctx is done. A non-positive d returns nil at once.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
