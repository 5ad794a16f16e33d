package scheduler

import (
	"context"
	"errors"

	"github.com/icodeforyou/energiprice-go/query"
	"github.com/icodeforyou/energiprice-go/types"
)

// Transport downloads the records described by a query. Failures with a
// provider status are returned as *types.TransportError. Implementations
// must return promptly with ctx.Err() once ctx is cancelled.
type Transport interface {
	Fetch(ctx context.Context, spec query.Spec) ([]types.Record, error)
}

// FallbackTransport asks each transport in turn and returns the first success.
// Transports that do not serve a series are skipped.
type FallbackTransport []Transport

func (f FallbackTransport) Fetch(ctx context.Context, spec query.Spec) ([]types.Record, error) {
	var firstErr error
	for _, t := range f {
		records, err := t.Fetch(ctx, spec)
		if err == nil {
			return records, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, types.ErrUnsupportedSeries) {
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		return nil, types.ErrUnsupportedSeries
	}
	return nil, firstErr
}
