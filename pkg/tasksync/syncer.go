// Package tasksync pairs the tasks of an authoritative ("exchange") store with
// those of a peer ("other") store and brings the peer in line.
//
// Tasks are matched by ExchangeID only. Every exchange task yields exactly one
// pair; tasks that exist only in the other store are never looked at. For each
// pair the newer side wins, except that the other store is never allowed to
// push changes back: a tie or a newer other task is left alone. Completed
// exchange tasks with no counterpart are not created.
package tasksync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harrisonrobin/taskbridge/pkg/logger"
	"github.com/harrisonrobin/taskbridge/pkg/source"
	"golang.org/x/sync/errgroup"
)

// Syncer runs full synchronization passes between two sources.
type Syncer struct {
	exchange    source.Source
	other       source.Source
	log         logger.Logger
	concurrency int
}

type Option func(*Syncer)

func WithLogger(l logger.Logger) Option {
	return func(s *Syncer) { s.log = l }
}

// WithConcurrency reconciles up to n pairs at once. Values below 2 keep the
// pass sequential.
func WithConcurrency(n int) Option {
	return func(s *Syncer) { s.concurrency = n }
}

func New(exchange, other source.Source, opts ...Option) *Syncer {
	s := &Syncer{
		exchange:    exchange,
		other:       other,
		log:         logger.Discard(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result summarizes one SyncAll pass.
type Result struct {
	Pairs    int
	Added    int64
	Updated  int64
	Failed   int
	Errors   []error
	Duration time.Duration
}

// SyncAll fetches both stores, pairs their tasks and reconciles every pair.
// A fetch failure aborts the pass before anything is mutated. Mutation
// failures are logged and collected in the Result; they do not stop the pass.
func (s *Syncer) SyncAll(ctx context.Context, stats Collector) (*Result, error) {
	start := time.Now()
	s.log.Info("synchronizing tasks")

	exchangeTasks, err := s.exchange.GetAllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching exchange tasks: %w", err)
	}
	otherTasks, err := s.other.GetAllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching other tasks: %w", err)
	}
	s.log.Debug("fetched tasks", "exchange", len(exchangeTasks), "other", len(otherTasks))

	pairs := GeneratePairs(exchangeTasks, otherTasks)

	counter := &tee{next: stats}
	var (
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		s.log.Error("mutation failed", "err", err)
		mu.Lock()
		errs = append(errs, splitErrors(err)...)
		mu.Unlock()
	}

	if s.concurrency < 2 {
		for _, p := range pairs {
			if err := s.Reconcile(ctx, p, counter); err != nil {
				fail(err)
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for _, p := range pairs {
			g.Go(func() error {
				if err := s.Reconcile(gctx, p, counter); err != nil {
					fail(err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	res := &Result{
		Pairs:    len(pairs),
		Added:    counter.run.Added(),
		Updated:  counter.run.Updated(),
		Failed:   len(errs),
		Errors:   errs,
		Duration: time.Since(start),
	}
	s.log.Info("synchronization finished",
		"pairs", res.Pairs,
		"added", res.Added,
		"updated", res.Updated,
		"failed", res.Failed,
		"duration", res.Duration.Round(time.Millisecond),
	)
	return res, nil
}

func splitErrors(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
