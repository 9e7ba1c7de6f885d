package ranking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"partyboard/internal/parsecache"
)

// Error sentinels for upstream failures the resolver reacts to
// specifically. Anything else is transient and handled by backoff.
var (
	ErrAuthRejected = errors.New("ranking API rejected credential")
	ErrRateLimited  = errors.New("ranking API rate limit exceeded")
)

// Outcome classifies one aliased lookup inside a batch response.
type Outcome int

const (
	// OutcomeResolved carries a percentile for the requested encounter.
	OutcomeResolved Outcome = iota
	// OutcomeNoData means the service has no ranked log for this key.
	// That is a real fact and is cached with the normal TTL.
	OutcomeNoData
	// OutcomeError means this alias failed while the rest of the batch
	// succeeded. The key is not cached and stays eligible for the next
	// sweep.
	OutcomeError
)

// Result is the typed outcome for one lookup.
type Result struct {
	Kind       Outcome
	Percentile float64
}

// BatchResult maps each requested key to its outcome. Attribution is by
// alias identity, never by response order.
type BatchResult map[parsecache.Key]Result

// Lookup is one character to resolve within a batch.
type Lookup struct {
	Key    parsecache.Key
	Region string
}

// Client queries the ranking service's GraphQL endpoint. A single request
// carries many aliased character lookups, which is what keeps resolution
// at one round trip per batch instead of one per character.
type Client struct {
	apiURL string
	http   *http.Client
	tokens *TokenManager
	budget *RateBudget
}

// NewClient builds a ranking API client. The HTTP timeout bounds every
// upstream call; exceeding it surfaces as a transient error.
func NewClient(apiURL string, tokens *TokenManager, budget *RateBudget, timeout time.Duration) *Client {
	return &Client{
		apiURL: apiURL,
		http:   &http.Client{Timeout: timeout},
		tokens: tokens,
		budget: budget,
	}
}

// FetchBatch resolves up to the protocol's batch limit of lookups for one
// encounter in a single request. On a whole-request failure no outcomes
// are returned and nothing may be cached. On success every lookup is
// classified independently; one bad alias does not poison its neighbors.
func (c *Client) FetchBatch(ctx context.Context, enc Encounter, lookups []Lookup) (BatchResult, error) {
	if len(lookups) == 0 {
		return BatchResult{}, nil
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"query": buildBatchQuery(enc, lookups)})
	if err != nil {
		return nil, fmt.Errorf("encode batch query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ranking API request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.tokens.Invalidate()
		return nil, ErrAuthRejected
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ranking API status %d: %s", resp.StatusCode, snippet)
	}

	var gql graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gql); err != nil {
		return nil, fmt.Errorf("decode ranking API response: %w", err)
	}

	if gql.Data.RateLimitData != nil {
		rl := gql.Data.RateLimitData
		c.budget.Observe(rl.LimitPerHour, rl.PointsSpentThisHour, time.Duration(rl.PointsResetIn)*time.Second)
	}

	if gql.Data.CharacterData == nil {
		if len(gql.Errors) > 0 {
			return nil, fmt.Errorf("ranking API query failed: %s", gql.Errors[0].Message)
		}
		return nil, errors.New("ranking API returned no character data")
	}

	failedAliases := aliasesWithErrors(gql.Errors)

	results := make(BatchResult, len(lookups))
	for i, lookup := range lookups {
		alias := aliasFor(i)
		if failedAliases[alias] {
			results[lookup.Key] = Result{Kind: OutcomeError}
			continue
		}
		results[lookup.Key] = classifyAlias(gql.Data.CharacterData[alias], enc)
	}
	return results, nil
}

func aliasFor(i int) string {
	return "c" + strconv.Itoa(i)
}

// buildBatchQuery renders one GraphQL document with a distinct alias per
// character, plus the quota metadata block the rate budget feeds on.
func buildBatchQuery(enc Encounter, lookups []Lookup) string {
	var sb strings.Builder
	sb.WriteString("query{rateLimitData{limitPerHour pointsSpentThisHour pointsResetIn}characterData{")
	for i, lookup := range lookups {
		fmt.Fprintf(&sb, "%s:character(name:%s,serverSlug:%s,serverRegion:%s){zoneRankings(zoneID:%d",
			aliasFor(i),
			strconv.Quote(lookup.Key.Character.Name),
			strconv.Quote(lookup.Key.Character.World),
			strconv.Quote(lookup.Region),
			enc.ZoneID,
		)
		if enc.Difficulty != 0 {
			fmt.Fprintf(&sb, ",difficulty:%d", enc.Difficulty)
		}
		if enc.Partition != 0 {
			fmt.Fprintf(&sb, ",partition:%d", enc.Partition)
		}
		sb.WriteString(",metric:rdps,timeframe:Historical)}")
	}
	sb.WriteString("}}")
	return sb.String()
}

type graphQLResponse struct {
	Data struct {
		RateLimitData *struct {
			LimitPerHour        float64 `json:"limitPerHour"`
			PointsSpentThisHour float64 `json:"pointsSpentThisHour"`
			PointsResetIn       float64 `json:"pointsResetIn"`
		} `json:"rateLimitData"`
		CharacterData map[string]json.RawMessage `json:"characterData"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type graphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path"`
}

// aliasesWithErrors extracts which aliases the per-field GraphQL errors
// refer to, so only those lookups are marked failed.
func aliasesWithErrors(errs []graphQLError) map[string]bool {
	failed := make(map[string]bool)
	for _, e := range errs {
		for _, seg := range e.Path {
			s, ok := seg.(string)
			if !ok || s == "characterData" {
				continue
			}
			if strings.HasPrefix(s, "c") {
				failed[s] = true
			}
		}
	}
	return failed
}

type characterPayload struct {
	ZoneRankings *struct {
		Rankings []struct {
			Encounter struct {
				ID uint32 `json:"id"`
			} `json:"encounter"`
			RankPercent *float64 `json:"rankPercent"`
		} `json:"rankings"`
	} `json:"zoneRankings"`
}

// classifyAlias turns one alias' raw payload into a typed outcome. An
// absent or null character means the service does not know this identity;
// rankings without the requested encounter mean no ranked log. Neither is
// an error, and both are cacheable facts.
func classifyAlias(raw json.RawMessage, enc Encounter) Result {
	if len(raw) == 0 || string(raw) == "null" {
		return Result{Kind: OutcomeNoData}
	}

	var char characterPayload
	if err := json.Unmarshal(raw, &char); err != nil {
		return Result{Kind: OutcomeError}
	}
	if char.ZoneRankings == nil {
		return Result{Kind: OutcomeNoData}
	}

	var secondary *float64
	for _, r := range char.ZoneRankings.Rankings {
		if r.RankPercent == nil {
			continue
		}
		if r.Encounter.ID == enc.EncounterID {
			return Result{Kind: OutcomeResolved, Percentile: *r.RankPercent}
		}
		if enc.SecondaryEncounterID != 0 && r.Encounter.ID == enc.SecondaryEncounterID {
			secondary = r.RankPercent
		}
	}
	if secondary != nil {
		return Result{Kind: OutcomeResolved, Percentile: *secondary}
	}
	return Result{Kind: OutcomeNoData}
}
