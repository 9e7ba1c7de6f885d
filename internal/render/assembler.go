// Package render joins current listings with player identities and the
// parse cache into render-ready structures. It performs no network I/O:
// missing parses render as unknown and are handed to the resolver as
// pending lookups.
package render

import (
	"context"
	"log"
	"sort"
	"time"

	"partyboard/internal/metrics"
	"partyboard/internal/models"
	"partyboard/internal/parsecache"
	"partyboard/internal/ranking"
	"partyboard/internal/resolver"
)

type listingStore interface {
	CurrentListings(ctx context.Context, maxAge time.Duration) ([]models.Listing, error)
	PlayersByContentIDs(ctx context.Context, contentIDs []int64) (map[int64]models.Player, error)
}

type parseStore interface {
	GetMany(ctx context.Context, keys []parsecache.Key) (map[parsecache.Key]parsecache.Entry, error)
}

// Participant is one render-ready party member. Percentile is nil unless
// a fresh cache entry resolved one; Tier is always set, falling back to
// the unknown marker.
type Participant struct {
	ContentID  int64    `json:"content_id"`
	Name       string   `json:"name"`
	World      string   `json:"world"`
	IsLeader   bool     `json:"is_leader"`
	Percentile *float64 `json:"percentile"`
	Tier       string   `json:"tier"`
	Color      string   `json:"color,omitempty"`
	Class      string   `json:"class,omitempty"`
}

// Score returns the resolved percentile as a plain value for template
// formatting. Templates guard with the Percentile pointer first; printf
// on the pointer itself would render its address.
func (p Participant) Score() float64 {
	if p.Percentile == nil {
		return 0
	}
	return *p.Percentile
}

// Listing is one render-ready recruitment post.
type Listing struct {
	ListingID    int64         `json:"listing_id"`
	DutyID       int           `json:"duty_id"`
	DutyName     string        `json:"duty_name,omitempty"`
	Category     string        `json:"category"`
	Description  string        `json:"description"`
	HighEnd      bool          `json:"high_end"`
	TimeLeft     time.Duration `json:"-"`
	TimeLeftSecs int64         `json:"time_left_seconds"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Leader       *Participant  `json:"leader,omitempty"`
	Members      []Participant `json:"members"`
}

// Page is a fully assembled listings page.
type Page struct {
	Listings    []Listing `json:"listings"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Assembler builds pages from the listing store and the parse cache.
type Assembler struct {
	listings listingStore
	parses   parseStore
	tiers    TierTable
	maxAge   time.Duration
}

// NewAssembler creates an assembler. maxAge bounds which listings are
// considered current.
func NewAssembler(listings listingStore, parses parseStore, tiers TierTable, maxAge time.Duration) *Assembler {
	return &Assembler{listings: listings, parses: parses, tiers: tiers, maxAge: maxAge}
}

// BuildPage assembles the current listings and returns the page plus the
// parse lookups that missed the cache. It always completes: a cache
// failure or an empty cache degrades every affected participant to
// unknown instead of failing the page.
func (a *Assembler) BuildPage(ctx context.Context) (*Page, []resolver.Request, error) {
	now := time.Now()

	listings, err := a.listings.CurrentListings(ctx, a.maxAge)
	if err != nil {
		return nil, nil, err
	}

	sortListings(listings, now)

	players, err := a.listings.PlayersByContentIDs(ctx, collectContentIDs(listings))
	if err != nil {
		// Identities are an enrichment; the page renders without them.
		log.Printf("Assembler: player lookup failed: %v", err)
		players = map[int64]models.Player{}
	}

	// One batched cache read for the whole page, not one per participant.
	keys := collectParseKeys(listings, players)
	entries, err := a.parses.GetMany(ctx, keys)
	if err != nil {
		log.Printf("Assembler: parse cache read failed: %v", err)
		entries = map[parsecache.Key]parsecache.Entry{}
	}
	metrics.CacheHits(len(entries))
	metrics.CacheMisses(len(keys) - len(entries))

	page := &Page{Listings: make([]Listing, 0, len(listings)), GeneratedAt: now}
	var pending []resolver.Request
	seen := make(map[parsecache.Key]bool)

	for i := range listings {
		l := &listings[i]
		enc, mapped := ranking.MapDuty(l.DutyID)

		out := Listing{
			ListingID:    l.ListingID,
			DutyID:       l.DutyID,
			Category:     l.Category,
			Description:  l.Description,
			HighEnd:      mapped,
			TimeLeft:     l.TimeLeft(now),
			TimeLeftSecs: int64(l.TimeLeft(now).Seconds()),
			UpdatedAt:    l.UpdatedAt,
		}
		if mapped {
			out.DutyName = enc.Name
		}

		if l.LeaderContentID != 0 {
			leader := a.participant(l.LeaderContentID, true, enc, mapped, players, entries, seen, &pending)
			out.Leader = &leader
		}
		for _, contentID := range l.MemberContentIDs {
			if contentID == 0 {
				continue
			}
			out.Members = append(out.Members, a.participant(contentID, false, enc, mapped, players, entries, seen, &pending))
		}

		page.Listings = append(page.Listings, out)
	}

	metrics.PageRendered()
	return page, pending, nil
}

// participant is the single lookup path shared by the leader and every
// member slot.
func (a *Assembler) participant(
	contentID int64,
	isLeader bool,
	enc ranking.Encounter,
	mapped bool,
	players map[int64]models.Player,
	entries map[parsecache.Key]parsecache.Entry,
	seen map[parsecache.Key]bool,
	pending *[]resolver.Request,
) Participant {
	p := Participant{ContentID: contentID, IsLeader: isLeader, Tier: TierUnknown}

	player, known := players[contentID]
	if !known {
		p.Name = "Unknown"
		return p
	}
	p.Name = player.Name
	p.World = player.World

	// Duties the ranking service does not cover are skipped, not failed.
	if !mapped {
		return p
	}

	key := parsecache.Key{
		Character:   parsecache.NewCharacterKey(player.Name, player.World),
		ZoneID:      enc.ZoneID,
		EncounterID: enc.EncounterID,
	}

	entry, ok := entries[key]
	if !ok {
		if !seen[key] {
			seen[key] = true
			*pending = append(*pending, resolver.Request{
				Key:       key,
				Region:    ranking.RegionForWorld(player.World),
				Encounter: enc,
			})
		}
		return p
	}

	if entry.Percentile == nil {
		p.Tier = TierUnranked
		p.Class = "parse-none"
		return p
	}

	tier := a.tiers.ForPercentile(*entry.Percentile)
	p.Percentile = entry.Percentile
	p.Tier = tier.Name
	p.Color = tier.Color
	p.Class = tier.Class
	return p
}

// sortListings applies the one display ordering in a single pass:
// most recently updated minute first, then category priority, then the
// least time remaining as the tie-break.
func sortListings(listings []models.Listing, now time.Time) {
	sort.SliceStable(listings, func(i, j int) bool {
		a, b := &listings[i], &listings[j]
		am, bm := a.UpdatedMinute(), b.UpdatedMinute()
		if !am.Equal(bm) {
			return am.After(bm)
		}
		if a.CategoryRank() != b.CategoryRank() {
			return a.CategoryRank() > b.CategoryRank()
		}
		return a.TimeLeft(now) < b.TimeLeft(now)
	})
}

func collectContentIDs(listings []models.Listing) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	add := func(id int64) {
		if id != 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for i := range listings {
		add(listings[i].LeaderContentID)
		for _, id := range listings[i].MemberContentIDs {
			add(id)
		}
	}
	return ids
}

// collectParseKeys enumerates every distinct cache key the page needs.
func collectParseKeys(listings []models.Listing, players map[int64]models.Player) []parsecache.Key {
	seen := make(map[parsecache.Key]bool)
	var keys []parsecache.Key
	for i := range listings {
		enc, mapped := ranking.MapDuty(listings[i].DutyID)
		if !mapped {
			continue
		}
		add := func(contentID int64) {
			player, known := players[contentID]
			if !known {
				return
			}
			key := parsecache.Key{
				Character:   parsecache.NewCharacterKey(player.Name, player.World),
				ZoneID:      enc.ZoneID,
				EncounterID: enc.EncounterID,
			}
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
		add(listings[i].LeaderContentID)
		for _, id := range listings[i].MemberContentIDs {
			add(id)
		}
	}
	return keys
}
