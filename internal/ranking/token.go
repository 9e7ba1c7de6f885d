package ranking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// TokenManager holds the single process-wide credential for the ranking
// API, obtained through the OAuth2 client-credentials grant. Concurrent
// callers arriving during a refresh share that refresh instead of issuing
// duplicates. A refresh failure is a transient error for the caller, not a
// crash; callers defer their batch and retry later.
type TokenManager struct {
	conf   clientcredentials.Config
	margin time.Duration

	mu      sync.Mutex
	current *oauth2.Token
	group   singleflight.Group
}

// NewTokenManager configures the credential flow. margin is how long
// before expiry a token is already treated as stale, so in-flight requests
// never race the expiry.
func NewTokenManager(clientID, clientSecret, tokenURL string, margin time.Duration) *TokenManager {
	return &TokenManager{
		conf: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		},
		margin: margin,
	}
}

// Token returns a bearer token with at least the safety margin left before
// expiry, refreshing if needed.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	if tok := m.current; tok != nil && m.usable(tok) {
		m.mu.Unlock()
		return tok.AccessToken, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do("refresh", func() (any, error) {
		// The refresh is shared by every caller waiting on this flight,
		// so it must not die with whichever caller happened to start it.
		tok, err := m.conf.Token(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("refresh ranking credential: %w", err)
		}
		m.mu.Lock()
		m.current = tok
		m.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(*oauth2.Token).AccessToken, nil
}

// Invalidate discards the current credential. Called when the upstream
// rejects it so the next Token call performs a fresh exchange.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

func (m *TokenManager) usable(tok *oauth2.Token) bool {
	if tok.AccessToken == "" {
		return false
	}
	if tok.Expiry.IsZero() {
		return true
	}
	return tok.Expiry.After(time.Now().Add(m.margin))
}
