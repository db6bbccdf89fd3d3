package crawler

import (
	"context"
	"math/rand"
	"time"
)

// Delay is a randomized pause in [Min, Max] used to bound the request rate.
type Delay struct {
	Min time.Duration
	Max time.Duration
}

func DefaultDelay() Delay { return Delay{Min: time.Second, Max: 3 * time.Second} }

func (d Delay) Next() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + time.Duration(rand.Int63n(int64(d.Max-d.Min)+1))
}

// Sleep pauses for Next() or until ctx is done.
func (d Delay) Sleep(ctx context.Context) error {
	dur := d.Next()
	if dur <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
