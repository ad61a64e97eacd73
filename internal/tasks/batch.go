package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/lmckone/dwsaver/internal/store"
	"golang.org/x/time/rate"
)

// BatchOpts tunes one scheduled run over all enrolled accounts.
type BatchOpts struct {
	NumWorkers int     // Concurrent account workers (default: 5, max: 10)
	RateLimit  float64 // Account starts per second (default: 5)
}

// BatchResult summarizes one scheduled run. It is consumed only by logs;
// the run itself never fails because of an individual account.
type BatchResult struct {
	Total   int
	Synced  int
	Skipped int // accounts with no source playlist
	Revoked int
	Failed  int
	Results []SyncResult
}

// RunBatch reconciles every enrolled account. Accounts are dispatched to a
// bounded worker pool, paced by a rate limiter so the fan-out respects the
// remote API's limits, and the call returns only after all accounts settle.
// The returned error covers batch-level problems only (the account listing
// failing); per-account outcomes live in the result.
func (s *Saver) RunBatch(ctx context.Context, opts BatchOpts) (*BatchResult, error) {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	accounts, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	result := &BatchResult{
		Total:   len(accounts),
		Results: make([]SyncResult, 0, len(accounts)),
	}

	s.logger.Info("starting batch run", "accounts", len(accounts), "workers", opts.NumWorkers)

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan store.Account, len(accounts))
	results := make(chan SyncResult, len(accounts))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go s.syncWorker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for _, account := range accounts {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- account
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		result.Results = append(result.Results, res)

		switch res.Status {
		case StatusSynced:
			result.Synced++
		case StatusNoSource:
			result.Skipped++
		case StatusRevoked:
			result.Revoked++
		case StatusFailed:
			result.Failed++
		}
	}

	s.logger.Info("batch run complete",
		"total", result.Total,
		"synced", result.Synced,
		"skipped", result.Skipped,
		"revoked", result.Revoked,
		"failed", result.Failed,
	)

	return result, nil
}

// syncWorker reconciles accounts from the jobs channel until it closes.
// SyncAccount swallows its own failures, so a worker can never die early
// and strand the batch.
func (s *Saver) syncWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan store.Account, results chan<- SyncResult) {
	defer wg.Done()

	for account := range jobs {
		results <- s.SyncAccount(ctx, account)
	}
}
