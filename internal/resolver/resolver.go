// Package resolver converts pending parse lookups into the minimum number
// of batched ranking-service requests and writes typed outcomes back to
// the parse cache.
package resolver

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"partyboard/internal/metrics"
	"partyboard/internal/parsecache"
	"partyboard/internal/ranking"
)

// Request is one pending lookup: the cache key plus everything needed to
// dispatch it upstream. Both the render path and the periodic sweep funnel
// their requests through Enqueue so deduplication holds regardless of the
// trigger source.
type Request struct {
	Key       parsecache.Key
	Region    string
	Encounter ranking.Encounter
}

type parseStore interface {
	GetMany(ctx context.Context, keys []parsecache.Key) (map[parsecache.Key]parsecache.Entry, error)
	PutMany(ctx context.Context, outcomes []parsecache.Resolved) error
}

type upstream interface {
	FetchBatch(ctx context.Context, enc ranking.Encounter, lookups []ranking.Lookup) (ranking.BatchResult, error)
}

// Config bounds a resolver. Zero values take the defaults below; the real
// limits are upstream policy and belong in deployment configuration.
type Config struct {
	BatchSize     int           // max aliases per upstream request
	MaxAttempts   int           // attempts per job before abandoning the cycle
	MaxConcurrent int           // jobs in flight at once
	BaseBackoff   time.Duration // first retry delay, doubled per attempt
	Interval      time.Duration // periodic cycle interval
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	return c
}

// Resolver owns the pending-lookup queue and the in-flight set. A key is
// in at most one of the two at a time, which is what prevents duplicate
// outstanding requests for the same character.
type Resolver struct {
	store  parseStore
	client upstream
	budget *ranking.RateBudget
	cfg    Config

	mu       sync.Mutex
	pending  map[parsecache.Key]Request
	inflight map[parsecache.Key]struct{}

	kick chan struct{}
}

// New creates a resolver. Run must be started for enqueued work to drain.
func New(store parseStore, client upstream, budget *ranking.RateBudget, cfg Config) *Resolver {
	return &Resolver{
		store:    store,
		client:   client,
		budget:   budget,
		cfg:      cfg.withDefaults(),
		pending:  make(map[parsecache.Key]Request),
		inflight: make(map[parsecache.Key]struct{}),
		kick:     make(chan struct{}, 1),
	}
}

// Enqueue adds lookups to the pending queue, dropping any key that is
// already pending or in flight, and nudges the run loop. Never blocks, so
// the render path can call it freely.
func (r *Resolver) Enqueue(reqs ...Request) {
	if len(reqs) == 0 {
		return
	}

	r.mu.Lock()
	added := 0
	for _, req := range reqs {
		if _, ok := r.pending[req.Key]; ok {
			continue
		}
		if _, ok := r.inflight[req.Key]; ok {
			continue
		}
		r.pending[req.Key] = req
		added++
	}
	r.mu.Unlock()

	if added > 0 {
		select {
		case r.kick <- struct{}{}:
		default:
		}
	}
}

// PendingCount returns the number of queued lookups.
func (r *Resolver) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Run drains the queue until ctx is cancelled, waking on the configured
// interval and whenever Enqueue adds new work.
func (r *Resolver) Run(ctx context.Context) {
	log.Printf("Resolver started (batch: %d, interval: %v)", r.cfg.BatchSize, r.cfg.Interval)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Resolver stopped")
			return
		case <-r.kick:
		case <-ticker.C:
		}
		if err := r.ResolveOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Resolver: cycle failed: %v", err)
		}
	}
}

// ResolveOnce runs a single resolution cycle: re-check the cache, group
// the remaining keys into bounded batch jobs, and dispatch them
// concurrently. Jobs are independent; a slow or failing job does not keep
// the others from completing and being cached.
func (r *Resolver) ResolveOnce(ctx context.Context) error {
	r.mu.Lock()
	snapshot := make([]Request, 0, len(r.pending))
	for _, req := range r.pending {
		snapshot = append(snapshot, req)
	}
	r.mu.Unlock()

	if len(snapshot) == 0 {
		return nil
	}

	// A key may have been resolved by an earlier job since it was
	// enqueued; only still-stale keys are dispatched.
	keys := make([]parsecache.Key, len(snapshot))
	for i, req := range snapshot {
		keys[i] = req.Key
	}
	fresh, err := r.store.GetMany(ctx, keys)
	if err != nil {
		return err
	}

	jobs := r.claimJobs(snapshot, fresh)
	if len(jobs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrent)
	for _, job := range jobs {
		g.Go(func() error {
			r.runJob(gctx, job)
			return nil
		})
	}
	return g.Wait()
}

type batchJob struct {
	encounter ranking.Encounter
	requests  []Request
}

// claimJobs moves stale pending keys into the in-flight set, grouped per
// encounter and chunked to the batch size. Keys with a fresh cache entry
// are simply dropped from the queue.
func (r *Resolver) claimJobs(snapshot []Request, fresh map[parsecache.Key]parsecache.Entry) []batchJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	grouped := make(map[ranking.Encounter][]Request)
	for _, req := range snapshot {
		if _, ok := r.pending[req.Key]; !ok {
			continue
		}
		delete(r.pending, req.Key)
		if _, ok := fresh[req.Key]; ok {
			continue
		}
		if _, ok := r.inflight[req.Key]; ok {
			// Another job still owns this key; keep it queued instead of
			// dispatching a duplicate.
			r.pending[req.Key] = req
			continue
		}
		r.inflight[req.Key] = struct{}{}
		grouped[req.Encounter] = append(grouped[req.Encounter], req)
	}

	var jobs []batchJob
	for enc, reqs := range grouped {
		for start := 0; start < len(reqs); start += r.cfg.BatchSize {
			end := min(start+r.cfg.BatchSize, len(reqs))
			jobs = append(jobs, batchJob{encounter: enc, requests: reqs[start:end]})
		}
	}
	return jobs
}

// runJob dispatches one batch with retries. Outcome rules: a successful
// response caches every resolved and no-data alias; per-alias errors stay
// uncached for a later sweep; a whole-request failure caches nothing and
// is retried with exponential backoff up to the attempt limit.
func (r *Resolver) runJob(ctx context.Context, job batchJob) {
	defer r.release(job.requests)

	if !r.budget.Acquire(float64(len(job.requests))) {
		// Deferred, not failed: the keys go back to the queue for the
		// next budget window.
		metrics.UpstreamRequest("deferred")
		r.requeue(job.requests)
		return
	}

	lookups := make([]ranking.Lookup, len(job.requests))
	for i, req := range job.requests {
		lookups[i] = ranking.Lookup{Key: req.Key, Region: req.Region}
	}

	delay := r.cfg.BaseBackoff
	authRetried := false
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		results, err := r.client.FetchBatch(ctx, job.encounter, lookups)
		if err == nil {
			metrics.UpstreamRequest("ok")
			r.persist(ctx, job, results)
			return
		}
		if ctx.Err() != nil {
			// Cancelled mid-flight: no partial write, the keys become
			// eligible again on the next sweep.
			return
		}
		if errors.Is(err, ranking.ErrAuthRejected) {
			metrics.UpstreamRequest("auth_rejected")
			if authRetried {
				log.Printf("Resolver: credential still rejected for %q, abandoning job", job.encounter.Name)
				return
			}
			// The client already invalidated the credential; retry once
			// with a fresh one.
			authRetried = true
			continue
		}
		if errors.Is(err, ranking.ErrRateLimited) {
			metrics.UpstreamRequest("rate_limited")
			r.requeue(job.requests)
			return
		}

		metrics.UpstreamRequest("transient")
		log.Printf("Resolver: batch for %q failed (attempt %d/%d): %v", job.encounter.Name, attempt, r.cfg.MaxAttempts, err)
		if attempt < r.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	// Attempts exhausted; the keys stay stale until the next sweep.
}

// persist writes the cacheable outcomes of one job. Per-alias errors are
// skipped so their keys remain stale; everything else is written in a
// single batched upsert.
func (r *Resolver) persist(ctx context.Context, job batchJob, results ranking.BatchResult) {
	now := time.Now()
	outcomes := make([]parsecache.Resolved, 0, len(results))
	for _, req := range job.requests {
		res, ok := results[req.Key]
		if !ok || res.Kind == ranking.OutcomeError {
			continue
		}
		outcome := parsecache.Resolved{Key: req.Key, FetchedAt: now}
		if res.Kind == ranking.OutcomeResolved {
			p := res.Percentile
			outcome.Percentile = &p
		}
		outcomes = append(outcomes, outcome)
	}

	if err := r.store.PutMany(ctx, outcomes); err != nil {
		log.Printf("Resolver: failed to cache %d outcomes for %q: %v", len(outcomes), job.encounter.Name, err)
		return
	}
	metrics.ParsesCached(len(outcomes))
}

func (r *Resolver) release(reqs []Request) {
	r.mu.Lock()
	for _, req := range reqs {
		delete(r.inflight, req.Key)
	}
	r.mu.Unlock()
}

// requeue puts a deferred job's keys back in the pending queue. Must run
// before release so the keys are never absent from both sets.
func (r *Resolver) requeue(reqs []Request) {
	r.mu.Lock()
	for _, req := range reqs {
		r.pending[req.Key] = req
	}
	r.mu.Unlock()
}
