package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"partyboard/internal/parsecache"
	"partyboard/internal/ranking"
)

type fakeStore struct {
	mu      sync.Mutex
	entries map[parsecache.Key]parsecache.Entry
	getErr  error
	putErr  error
	puts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[parsecache.Key]parsecache.Entry)}
}

func (s *fakeStore) GetMany(ctx context.Context, keys []parsecache.Key) (map[parsecache.Key]parsecache.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	out := make(map[parsecache.Key]parsecache.Entry)
	for _, key := range keys {
		if entry, ok := s.entries[key]; ok {
			out[key] = entry
		}
	}
	return out, nil
}

func (s *fakeStore) PutMany(ctx context.Context, outcomes []parsecache.Resolved) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.puts++
	for _, o := range outcomes {
		s.entries[o.Key] = parsecache.Entry{
			Percentile: o.Percentile,
			FetchedAt:  o.FetchedAt,
			ExpiresAt:  o.FetchedAt.Add(24 * time.Hour),
		}
	}
	return nil
}

func (s *fakeStore) entry(key parsecache.Key) (parsecache.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *fakeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type fetchCall struct {
	encounter ranking.Encounter
	lookups   []ranking.Lookup
}

// fakeUpstream scripts FetchBatch: errs are consumed per call first, then
// results is returned for every remaining call.
type fakeUpstream struct {
	mu      sync.Mutex
	calls   []fetchCall
	errs    []error
	results func(lookups []ranking.Lookup) ranking.BatchResult
}

func (u *fakeUpstream) FetchBatch(ctx context.Context, enc ranking.Encounter, lookups []ranking.Lookup) (ranking.BatchResult, error) {
	u.mu.Lock()
	u.calls = append(u.calls, fetchCall{encounter: enc, lookups: lookups})
	var err error
	if len(u.errs) > 0 {
		err = u.errs[0]
		u.errs = u.errs[1:]
	}
	results := u.results
	u.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if results != nil {
		return results(lookups), nil
	}
	out := make(ranking.BatchResult, len(lookups))
	for i, l := range lookups {
		out[l.Key] = ranking.Result{Kind: ranking.OutcomeResolved, Percentile: float64(50 + i)}
	}
	return out, nil
}

func (u *fakeUpstream) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

func (u *fakeUpstream) totalLookups() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, c := range u.calls {
		n += len(c.lookups)
	}
	return n
}

var testEncounter = ranking.Encounter{ZoneID: 73, EncounterID: 101, Difficulty: 101, Partition: 1, Name: "test"}

func requestFor(name string) Request {
	return Request{
		Key: parsecache.Key{
			Character:   parsecache.NewCharacterKey(name, "Tonberry"),
			ZoneID:      73,
			EncounterID: 101,
		},
		Region:    "JP",
		Encounter: testEncounter,
	}
}

func testResolver(store *fakeStore, client *fakeUpstream, cfg Config) *Resolver {
	if cfg.BaseBackoff == 0 {
		cfg.BaseBackoff = time.Millisecond
	}
	return New(store, client, ranking.NewRateBudget(3600), cfg)
}

func TestEnqueue_DeduplicatesPendingKeys(t *testing.T) {
	res := testResolver(newFakeStore(), &fakeUpstream{}, Config{})

	req := requestFor("Aeli Runa")
	res.Enqueue(req, req)
	res.Enqueue(req)

	if got := res.PendingCount(); got != 1 {
		t.Errorf("PendingCount() = %d, want 1", got)
	}
}

func TestResolveOnce_BatchesAndCaches(t *testing.T) {
	store := newFakeStore()
	client := &fakeUpstream{}
	res := testResolver(store, client, Config{})

	reqs := []Request{requestFor("One Member"), requestFor("Two Member"), requestFor("Three Member")}
	res.Enqueue(reqs...)

	if err := res.ResolveOnce(context.Background()); err != nil {
		t.Fatalf("ResolveOnce() error = %v", err)
	}

	if got := client.callCount(); got != 1 {
		t.Errorf("upstream calls = %d, want 1 batched request", got)
	}
	if got := store.len(); got != 3 {
		t.Errorf("cached entries = %d, want 3", got)
	}
	if got := res.PendingCount(); got != 0 {
		t.Errorf("PendingCount() = %d after cycle, want 0", got)
	}
}

func TestResolveOnce_ChunksToBatchSize(t *testing.T) {
	store := newFakeStore()
	client := &fakeUpstream{}
	res := testResolver(store, client, Config{BatchSize: 2, MaxConcurrent: 1})

	res.Enqueue(
		requestFor("Mem One"), requestFor("Mem Two"),
		requestFor("Mem Three"), requestFor("Mem Four"),
		requestFor("Mem Five"),
	)

	if err := res.ResolveOnce(context.Background()); err != nil {
		t.Fatalf("ResolveOnce() error = %v", err)
	}

	if got := client.callCount(); got != 3 {
		t.Errorf("upstream calls = %d, want 3 chunks of <=2", got)
	}
	if got := client.totalLookups(); got != 5 {
		t.Errorf("total lookups dispatched = %d, want 5", got)
	}
}

func TestResolveOnce_SkipsFreshKeys(t *testing.T) {
	store := newFakeStore()
	client := &fakeUpstream{}
	res := testResolver(store, client, Config{})

	cached := requestFor("Already Cached")
	stale := requestFor("Still Stale")
	p := 80.0
	store.PutMany(context.Background(), []parsecache.Resolved{
		{Key: cached.Key, Percentile: &p, FetchedAt: time.Now()},
	})

	res.Enqueue(cached, stale)
	if err := res.ResolveOnce(context.Background()); err != nil {
		t.Fatalf("ResolveOnce() error = %v", err)
	}

	if got := client.totalLookups(); got != 1 {
		t.Errorf("dispatched %d lookups, want only the stale one", got)
	}
	if got := res.PendingCount(); got != 0 {
		t.Errorf("PendingCount() = %d, want 0", got)
	}
}

func TestResolveOnce_CacheReadFailureAbortsCycle(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("redis down")
	client := &fakeUpstream{}
	res := testResolver(store, client, Config{})

	res.Enqueue(requestFor("Aeli Runa"))
	if err := res.ResolveOnce(context.Background()); err == nil {
		t.Fatal("ResolveOnce() error = nil when the cache read fails")
	}
	if got := client.callCount(); got != 0 {
		t.Errorf("upstream calls = %d, want 0 on an aborted cycle", got)
	}
	if got := res.PendingCount(); got != 1 {
		t.Errorf("PendingCount() = %d, want the key kept for the next cycle", got)
	}
}

func TestResolveOnce_PerAliasErrorStaysUncached(t *testing.T) {
	store := newFakeStore()
	good := requestFor("Fine Member")
	bad := requestFor("Broken Member")

	client := &fakeUpstream{
		results: func(lookups []ranking.Lookup) ranking.BatchResult {
			out := make(ranking.BatchResult)
			for _, l := range lookups {
				if l.Key == bad.Key {
					out[l.Key] = ranking.Result{Kind: ranking.OutcomeError}
					continue
				}
				out[l.Key] = ranking.Result{Kind: ranking.OutcomeResolved, Percentile: 91.0}
			}
			return out
		},
	}
	res := testResolver(store, client, Config{})

	res.Enqueue(good, bad)
	if err := res.ResolveOnce(context.Background()); err != nil {
		t.Fatalf("ResolveOnce() error = %v", err)
	}

	if _, ok := store.entry(good.Key); !ok {
		t.Error("successful alias was not cached")
	}
	if _, ok := store.entry(bad.Key); ok {
		t.Error("failed alias was cached; it must stay stale")
	}
}

func TestResolveOnce_NoDataIsCached(t *testing.T) {
	store := newFakeStore()
	req := requestFor("No Logs")
	client := &fakeUpstream{
		results: func(lookups []ranking.Lookup) ranking.BatchResult {
			out := make(ranking.BatchResult)
			for _, l := range lookups {
				out[l.Key] = ranking.Result{Kind: ranking.OutcomeNoData}
			}
			return out
		},
	}
	res := testResolver(store, client, Config{})

	res.Enqueue(req)
	if err := res.ResolveOnce(context.Background()); err != nil {
		t.Fatalf("ResolveOnce() error = %v", err)
	}

	entry, ok := store.entry(req.Key)
	if !ok {
		t.Fatal("no-data outcome was not cached")
	}
	if entry.Percentile != nil {
		t.Errorf("no-data entry percentile = %v, want nil", *entry.Percentile)
	}
}

func TestResolveOnce_TransientFailureRetriesThenAbandons(t *testing.T) {
	store := newFakeStore()
	transient := errors.New("upstream hiccup")
	client := &fakeUpstream{errs: []error{transient, transient, transient}}
	res := testResolver(store, client, Config{MaxAttempts: 3})

	res.Enqueue(requestFor("Unlucky Member"))
	if err := res.ResolveOnce(context.Background()); err != nil {
		t.Fatalf("ResolveOnce() error = %v", err)
	}

	if got := client.callCount(); got != 3 {
		t.Errorf("upstream calls = %d, want 3 attempts", got)
	}
	if got := store.len(); got != 0 {
		t.Errorf("cached entries = %d after exhausted attempts, want 0", got)
	}
	// Abandoned, not requeued; the next sweep re-enqueues it.
	if got := res.PendingCount(); got != 0 {
		t.Errorf("PendingCount() = %d, want 0", got)
	}
}

func TestResolveOnce_RecoversOnRetry(t *testing.T) {
	store := newFakeStore()
	client := &fakeUpstream{errs: []error{errors.New("blip")}}
	res := testResolver(store, client, Config{MaxAttempts: 3})

	res.Enqueue(requestFor("Second Try"))
	if err := res.ResolveOnce(context.Background()); err != nil {
		t.Fatalf("ResolveOnce() error = %v", err)
	}

	if got := client.callCount(); got != 2 {
		t.Errorf("upstream calls = %d, want failure then success", got)
	}
	if got := store.len(); got != 1 {
		t.Errorf("cached entries = %d, want 1", got)
	}
}

func TestResolveOnce_AuthRejectionRetriesOnce(t *testing.T) {
	store := newFakeStore()
	client := &fakeUpstream{errs: []error{ranking.ErrAuthRejected, ranking.ErrAuthRejected}}
	res := testResolver(store, client, Config{MaxAttempts: 5})

	res.Enqueue(requestFor("Auth Victim"))
	if err := res.ResolveOnce(context.Background()); err != nil {
		t.Fatalf("ResolveOnce() error = %v", err)
	}

	// One immediate retry with a fresh credential, then the job stops
	// rather than hammering the token endpoint.
	if got := client.callCount(); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
	if got := store.len(); got != 0 {
		t.Errorf("cached entries = %d, want 0", got)
	}
}

func TestResolveOnce_RateLimitedRequeues(t *testing.T) {
	store := newFakeStore()
	client := &fakeUpstream{errs: []error{ranking.ErrRateLimited}}
	res := testResolver(store, client, Config{})

	res.Enqueue(requestFor("Over Quota"))
	if err := res.ResolveOnce(context.Background()); err != nil {
		t.Fatalf("ResolveOnce() error = %v", err)
	}

	if got := client.callCount(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
	if got := res.PendingCount(); got != 1 {
		t.Errorf("PendingCount() = %d, want the key requeued", got)
	}
}

func TestResolveOnce_ExhaustedBudgetDefersWithoutDispatch(t *testing.T) {
	store := newFakeStore()
	client := &fakeUpstream{}
	budget := ranking.NewRateBudget(3600)
	budget.Observe(3600, 3600, time.Hour)

	res := New(store, client, budget, Config{BaseBackoff: time.Millisecond})
	res.Enqueue(requestFor("Budget Starved"))

	if err := res.ResolveOnce(context.Background()); err != nil {
		t.Fatalf("ResolveOnce() error = %v", err)
	}

	if got := client.callCount(); got != 0 {
		t.Errorf("upstream calls = %d with no budget, want 0", got)
	}
	if got := res.PendingCount(); got != 1 {
		t.Errorf("PendingCount() = %d, want the key deferred", got)
	}
}

func TestResolveOnce_CancelledContextCachesNothing(t *testing.T) {
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeUpstream{errs: []error{context.Canceled}}
	res := testResolver(store, client, Config{MaxAttempts: 3})

	res.Enqueue(requestFor("Cancelled Member"))
	_ = res.ResolveOnce(ctx)

	if got := client.callCount(); got != 1 {
		t.Errorf("upstream calls = %d after cancellation, want 1", got)
	}
	if got := store.len(); got != 0 {
		t.Errorf("cached entries = %d after cancellation, want 0", got)
	}
}

func TestEnqueue_ManyListingsOneCharacter(t *testing.T) {
	store := newFakeStore()
	client := &fakeUpstream{}
	res := testResolver(store, client, Config{})

	// The same character appearing in many listings collapses to one
	// upstream lookup.
	req := requestFor("Popular Member")
	for i := 0; i < 10; i++ {
		res.Enqueue(req)
	}

	if err := res.ResolveOnce(context.Background()); err != nil {
		t.Fatalf("ResolveOnce() error = %v", err)
	}
	if got := client.totalLookups(); got != 1 {
		t.Errorf("dispatched %d lookups for one character, want 1", got)
	}
}
