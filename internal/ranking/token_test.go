package ranking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTokenServer(t *testing.T, exchanges *atomic.Int64, expiresIn int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("token endpoint got method %s, want POST", r.Method)
		}
		exchanges.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-abc",
			"token_type":   "Bearer",
			"expires_in":   expiresIn,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenManager_ReusesUnexpiredToken(t *testing.T) {
	var exchanges atomic.Int64
	srv := newTokenServer(t, &exchanges, 3600)

	manager := NewTokenManager("id", "secret", srv.URL, 5*time.Minute)
	ctx := context.Background()

	first, err := manager.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	second, err := manager.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	if first != "tok-abc" || second != "tok-abc" {
		t.Errorf("tokens = %q, %q, want tok-abc", first, second)
	}
	if n := exchanges.Load(); n != 1 {
		t.Errorf("token exchanges = %d, want 1", n)
	}
}

func TestTokenManager_RefreshesInsideMargin(t *testing.T) {
	var exchanges atomic.Int64
	// Tokens expire in 10s but the margin demands 5 minutes of headroom,
	// so every call is a refresh.
	srv := newTokenServer(t, &exchanges, 10)

	manager := NewTokenManager("id", "secret", srv.URL, 5*time.Minute)
	ctx := context.Background()

	if _, err := manager.Token(ctx); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if _, err := manager.Token(ctx); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if n := exchanges.Load(); n != 2 {
		t.Errorf("token exchanges = %d, want 2", n)
	}
}

func TestTokenManager_InvalidateForcesExchange(t *testing.T) {
	var exchanges atomic.Int64
	srv := newTokenServer(t, &exchanges, 3600)

	manager := NewTokenManager("id", "secret", srv.URL, 5*time.Minute)
	ctx := context.Background()

	if _, err := manager.Token(ctx); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	manager.Invalidate()
	if _, err := manager.Token(ctx); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if n := exchanges.Load(); n != 2 {
		t.Errorf("token exchanges = %d, want 2 after Invalidate", n)
	}
}

func TestTokenManager_ConcurrentCallersShareRefresh(t *testing.T) {
	var exchanges atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exchanges.Add(1) == 1 {
			close(started)
			<-release
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-abc",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	manager := NewTokenManager("id", "secret", srv.URL, 5*time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Token(ctx)
			errs <- err
		}()
	}

	// Hold the first exchange open until all callers are likely waiting
	// on it, then let it finish.
	<-started
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Token() error = %v", err)
		}
	}
	if n := exchanges.Load(); n != 1 {
		t.Errorf("token exchanges = %d, want 1 shared refresh", n)
	}
}

func TestTokenManager_RefreshSurvivesCallerCancellation(t *testing.T) {
	var exchanges atomic.Int64
	srv := newTokenServer(t, &exchanges, 3600)

	manager := NewTokenManager("id", "secret", srv.URL, 5*time.Minute)

	// The caller that triggers the shared refresh is already cancelled;
	// the exchange must complete anyway so waiting callers get a token.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tok, err := manager.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v with a cancelled caller", err)
	}
	if tok != "tok-abc" {
		t.Errorf("Token() = %q, want tok-abc", tok)
	}
	if n := exchanges.Load(); n != 1 {
		t.Errorf("token exchanges = %d, want 1", n)
	}
}

func TestTokenManager_RefreshFailureIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	manager := NewTokenManager("id", "secret", srv.URL, 5*time.Minute)
	if _, err := manager.Token(context.Background()); err == nil {
		t.Fatal("Token() error = nil when the exchange fails")
	}
}
