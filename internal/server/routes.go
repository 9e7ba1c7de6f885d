package server

import (
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"partyboard/internal/db"
	"partyboard/internal/handlers"
	"partyboard/internal/handlers/api"
	"partyboard/internal/parsecache"
	"partyboard/internal/render"
	"partyboard/internal/resolver"
)

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(database *db.DB, cache *parsecache.Cache, assembler *render.Assembler, res *resolver.Resolver) {
	// Initialize handlers
	listingsHandler := handlers.NewListingsHandler(assembler, res, s.Cfg)
	statsHandler := handlers.NewStatsHandler(database, s.Cfg)
	contributeHandler := handlers.NewContributeHandler(database)
	probeHandler := handlers.NewProbeHandler(database, cache)
	apiListingsHandler := api.NewListingsHandler(assembler, res)

	// Listings page
	s.App.Get("/", listingsHandler.Index)

	// Aggregate statistics
	s.App.Get("/stats", statsHandler.AllTime)
	s.App.Get("/stats/7days", statsHandler.SevenDays)

	// Upload endpoints for in-game data collectors
	s.App.Post("/contribute", contributeHandler.Listing)
	s.App.Post("/contribute/multiple", contributeHandler.Listings)
	s.App.Post("/contribute/players", contributeHandler.Players)
	s.App.Post("/contribute/detail", contributeHandler.Detail)

	// JSON API
	s.App.Get("/api/listings", apiListingsHandler.List)

	// Probes and metrics
	s.App.Get("/healthz", probeHandler.Liveness)
	s.App.Get("/readyz", probeHandler.Readiness)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}
