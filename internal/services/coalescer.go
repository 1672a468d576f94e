package services

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// ReadCoalescer merges identical concurrent reads into one store query.
// Keys always carry the caller's account id, so callers never share results
// across accounts.
type ReadCoalescer struct {
	group   singleflight.Group
	enabled bool
}

func NewReadCoalescer(enabled bool) *ReadCoalescer {
	return &ReadCoalescer{enabled: enabled}
}

// coalesce runs fn once per in-flight key. The shared query runs on a context
// detached from the first caller's cancellation; each caller stops waiting
// when its own ctx is done. Every caller receives its own copy of the result
// slice.
func coalesce[T any](ctx context.Context, c *ReadCoalescer, key string, fn func(ctx context.Context) ([]T, error)) ([]T, error) {
	if c == nil || !c.enabled {
		return fn(ctx)
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return fn(shared)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		result := res.Val.([]T)
		out := make([]T, len(result))
		copy(out, result)
		return out, nil
	}
}
