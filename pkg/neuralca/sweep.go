package neuralca

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

type SweepRequest struct {
	Base    RunRequest
	Seeds   []int64
	Workers int
}

// Sweep runs Base once per seed. Runs are independent so they execute
// concurrently, bounded by Workers (GOMAXPROCS when unset). Summaries are
// returned in seed order.
func (c *Client) Sweep(ctx context.Context, req SweepRequest) ([]RunSummary, error) {
	if len(req.Seeds) == 0 {
		return nil, errors.New("sweep requires at least one seed")
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(req.Seeds))
	for _, seed := range req.Seeds {
		if seen[seed] {
			return nil, fmt.Errorf("duplicate sweep seed: %d", seed)
		}
		seen[seed] = true
	}
	workers := req.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]RunSummary, len(req.Seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, seed := range req.Seeds {
		if gctx.Err() != nil {
			break
		}
		run := req.Base
		run.Seed = seed
		if req.Base.RunID != "" {
			run.RunID = fmt.Sprintf("%s-seed-%d", req.Base.RunID, seed)
		}
		g.Go(func() error {
			summary, err := c.Run(gctx, run)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			out[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slog.Info("sweep complete", "runs", len(out), "workers", workers)
	return out, nil
}
