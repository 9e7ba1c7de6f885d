package jobs

import (
	"context"
	"log"
	"time"

	"partyboard/internal/db"
	"partyboard/internal/parsecache"
	"partyboard/internal/ranking"
	"partyboard/internal/resolver"
)

// Sweeper periodically walks the current listings and enqueues a parse
// lookup for every participant of a ranked duty. The resolver drops
// whatever is already fresh or in flight, so sweeping aggressively is
// cheap; it also prunes listings that aged out.
type Sweeper struct {
	db       *db.DB
	resolver *resolver.Resolver
	interval time.Duration
	maxAge   time.Duration
}

// NewSweeper creates a new sweeper.
func NewSweeper(database *db.DB, res *resolver.Resolver, interval, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		db:       database,
		resolver: res,
		interval: interval,
		maxAge:   maxAge,
	}
}

// Start begins the background sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	log.Printf("Sweeper started (interval: %v, maxAge: %v)", s.interval, s.maxAge)

	// Run immediately on start
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep enqueues lookups for every participant of every current ranked
// listing and removes expired listings.
func (s *Sweeper) sweep(ctx context.Context) {
	if pruned, err := s.db.PruneListings(ctx, 2*s.maxAge); err != nil {
		log.Printf("Sweeper: failed to prune listings: %v", err)
	} else if pruned > 0 {
		log.Printf("Sweeper: pruned %d expired listings", pruned)
	}

	listings, err := s.db.CurrentListings(ctx, s.maxAge)
	if err != nil {
		log.Printf("Sweeper: failed to get listings: %v", err)
		return
	}

	// Collect participants per encounter, skipping duties the ranking
	// service does not cover.
	type target struct {
		contentID int64
		enc       ranking.Encounter
	}
	var targets []target
	idSet := make(map[int64]bool)
	for i := range listings {
		enc, ok := ranking.MapDuty(listings[i].DutyID)
		if !ok {
			continue
		}
		add := func(id int64) {
			if id != 0 {
				targets = append(targets, target{contentID: id, enc: enc})
				idSet[id] = true
			}
		}
		add(listings[i].LeaderContentID)
		for _, id := range listings[i].MemberContentIDs {
			add(id)
		}
	}
	if len(targets) == 0 {
		return
	}

	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	players, err := s.db.PlayersByContentIDs(ctx, ids)
	if err != nil {
		log.Printf("Sweeper: failed to get players: %v", err)
		return
	}

	var requests []resolver.Request
	for _, t := range targets {
		player, known := players[t.contentID]
		if !known {
			continue
		}
		requests = append(requests, resolver.Request{
			Key: parsecache.Key{
				Character:   parsecache.NewCharacterKey(player.Name, player.World),
				ZoneID:      t.enc.ZoneID,
				EncounterID: t.enc.EncounterID,
			},
			Region:    ranking.RegionForWorld(player.World),
			Encounter: t.enc,
		})
	}

	if len(requests) > 0 {
		s.resolver.Enqueue(requests...)
	}
}
