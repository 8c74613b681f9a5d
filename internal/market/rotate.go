package market

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/akozlov/ricwatch/internal/fetch"
	"github.com/akozlov/ricwatch/internal/proxy"
)

// fetchWithRotation fetches one URL, rotating to the next proxy on a
// blocked or transient outcome. The attempt budget is the pool size plus
// one, so an empty pool still gets a single direct attempt. Not-found is
// terminal and never retried.
func fetchWithRotation(ctx context.Context, f fetch.Fetcher, pool *proxy.Pool, logger *zap.Logger, rawURL string) (fetch.Result, error) {
	attempts := pool.Len() + 1
	var last fetch.Result
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		px := pool.Next()
		res, err := f.Fetch(ctx, rawURL, px)
		if err != nil {
			pool.RecordFailure(px)
			logger.Debug("fetch attempt failed",
				zap.String("url", rawURL),
				zap.String("proxy", px.String()),
				zap.Int("attempt", i+1),
				zap.Error(err))
			last = res
			continue
		}
		switch res.Status {
		case fetch.StatusOK:
			pool.RecordSuccess(px)
			return res, nil
		case fetch.StatusNotFound:
			return res, nil
		default:
			pool.RecordFailure(px)
			logger.Debug("fetch attempt rejected",
				zap.String("url", rawURL),
				zap.String("proxy", px.String()),
				zap.String("status", string(res.Status)),
				zap.Int("attempt", i+1))
			last = res
		}
	}
	return last, fmt.Errorf("fetch %s: exhausted %d attempts, last status %q", rawURL, attempts, last.Status)
}
