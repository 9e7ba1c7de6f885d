package render

import (
	"math"
	"sort"

	"partyboard/internal/config"
)

// Markers used alongside the percentile bands.
const (
	// TierUnknown means no fresh cache entry exists for the participant.
	// It never blocks rendering; the lookup is queued in the background.
	TierUnknown = "unknown"
	// TierUnranked means the ranking service was asked and explicitly has
	// no ranked log. A real fact, cached like any percentile.
	TierUnranked = "unranked"
)

// Tier is one display band. A percentile lands in the highest band whose
// Min it reaches.
type Tier struct {
	Name  string
	Min   float64
	Color string
	Class string
}

// TierTable maps percentiles to display bands, ordered highest first.
type TierTable []Tier

// DefaultTierTable returns the conventional percentile color bands.
func DefaultTierTable() TierTable {
	return TierTable{
		{Name: "gold", Min: 100, Color: "#E5CC80", Class: "parse-gold"},
		{Name: "pink", Min: 99, Color: "#E268A8", Class: "parse-pink"},
		{Name: "orange", Min: 95, Color: "#FF8000", Class: "parse-orange"},
		{Name: "purple", Min: 75, Color: "#A335EE", Class: "parse-purple"},
		{Name: "blue", Min: 50, Color: "#0070FF", Class: "parse-blue"},
		{Name: "green", Min: 25, Color: "#1EFF00", Class: "parse-green"},
		{Name: "gray", Min: 0, Color: "#666666", Class: "parse-gray"},
	}
}

// NewTierTable builds a table from the optional yaml config, falling back
// to the defaults. Bands are sorted highest threshold first regardless of
// file order.
func NewTierTable(cfg *config.TiersConfig) TierTable {
	if cfg == nil || len(cfg.Tiers) == 0 {
		return DefaultTierTable()
	}

	table := make(TierTable, len(cfg.Tiers))
	for i, band := range cfg.Tiers {
		table[i] = Tier{Name: band.Name, Min: band.Min, Color: band.Color, Class: band.Class}
	}
	sort.Slice(table, func(i, j int) bool { return table[i].Min > table[j].Min })
	return table
}

// ForPercentile returns the band for a percentile. The fractional part is
// dropped first, so 99.7 is pink, not gold.
func (t TierTable) ForPercentile(p float64) Tier {
	whole := math.Floor(p)
	for _, tier := range t {
		if whole >= tier.Min {
			return tier
		}
	}
	if len(t) == 0 {
		return Tier{Name: TierUnknown}
	}
	return t[len(t)-1]
}
