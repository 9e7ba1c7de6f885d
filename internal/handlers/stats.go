package handlers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"

	"partyboard/internal/config"
	"partyboard/internal/db"
	"partyboard/internal/ranking"
)

// StatsHandler serves aggregate statistics over the retained listings:
// totals, per-duty popularity, posting times, and the most active hosts.
type StatsHandler struct {
	db  *db.DB
	cfg *config.Config
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(database *db.DB, cfg *config.Config) *StatsHandler {
	return &StatsHandler{db: database, cfg: cfg}
}

// StatsView is the assembled statistics page.
type StatsView struct {
	Window        string
	TotalListings int64
	Duties        []DutyRow
	Hours         []HourRow
	Days          []DayRow
	TopLeaders    []LeaderRow
}

// DutyRow is one duty's listing count, named when the duty is known.
type DutyRow struct {
	Name     string
	Category string
	Count    int64
}

// HourRow is the listing count for one UTC hour of day.
type HourRow struct {
	Label string
	Count int64
}

// DayRow is the listing count for one day of week.
type DayRow struct {
	Name  string
	Count int64
}

// LeaderRow is one host's listing count, named when their identity has
// been uploaded.
type LeaderRow struct {
	Name  string
	World string
	Count int64
}

// dayNames indexes Postgres extract(dow) values, 0 being Sunday.
var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// AllTime renders statistics over every retained listing.
func (h *StatsHandler) AllTime(c fiber.Ctx) error {
	return h.render(c, time.Time{}, "all time")
}

// SevenDays renders statistics over the last seven days.
func (h *StatsHandler) SevenDays(c fiber.Ctx) error {
	return h.render(c, time.Now().Add(-7*24*time.Hour), "last 7 days")
}

func (h *StatsHandler) render(c fiber.Ctx, since time.Time, window string) error {
	view, err := h.buildStatsView(c.Context(), since, window)
	if err != nil {
		log.Printf("Failed to build statistics: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to build statistics")
	}

	return c.Render("stats", fiber.Map{
		"Title":     "Statistics",
		"SiteTitle": h.cfg.SiteTitle,
		"Stats":     view,
	})
}

// buildStatsView aggregates the listing store and resolves the labels a
// reader wants: duty names where the duty is known, host names where the
// identity has been uploaded.
func (h *StatsHandler) buildStatsView(ctx context.Context, since time.Time, window string) (*StatsView, error) {
	stats, err := h.db.GetListingStats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate listings: %w", err)
	}

	view := &StatsView{Window: window, TotalListings: stats.TotalListings}

	for _, d := range stats.Duties {
		name := fmt.Sprintf("Duty %d", d.DutyID)
		if enc, ok := ranking.MapDuty(d.DutyID); ok {
			name = enc.Name
		}
		view.Duties = append(view.Duties, DutyRow{Name: name, Category: d.Category, Count: d.Count})
	}

	for _, hc := range stats.Hours {
		view.Hours = append(view.Hours, HourRow{Label: fmt.Sprintf("%02d:00", hc.Hour), Count: hc.Count})
	}

	for _, dc := range stats.Days {
		name := fmt.Sprintf("Day %d", dc.Day)
		if dc.Day >= 0 && dc.Day < len(dayNames) {
			name = dayNames[dc.Day]
		}
		view.Days = append(view.Days, DayRow{Name: name, Count: dc.Count})
	}

	if len(stats.TopLeaders) > 0 {
		ids := make([]int64, 0, len(stats.TopLeaders))
		for _, l := range stats.TopLeaders {
			ids = append(ids, l.ContentID)
		}
		players, err := h.db.PlayersByContentIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("resolve host identities: %w", err)
		}
		for _, l := range stats.TopLeaders {
			row := LeaderRow{Name: "Unknown", Count: l.Count}
			if p, ok := players[l.ContentID]; ok {
				row.Name, row.World = p.Name, p.World
			}
			view.TopLeaders = append(view.TopLeaders, row)
		}
	}

	return view, nil
}
