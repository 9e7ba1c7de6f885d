package handlers

import (
	"log"

	"github.com/gofiber/fiber/v3"

	"partyboard/internal/config"
	"partyboard/internal/render"
	"partyboard/internal/resolver"
)

// enqueuer is the slice of the resolver the render path needs: handing
// off cache misses without ever waiting on them.
type enqueuer interface {
	Enqueue(reqs ...resolver.Request)
}

// ListingsHandler serves the listings page.
type ListingsHandler struct {
	assembler *render.Assembler
	resolver  enqueuer
	cfg       *config.Config
}

// NewListingsHandler creates a new listings handler.
func NewListingsHandler(assembler *render.Assembler, res enqueuer, cfg *config.Config) *ListingsHandler {
	return &ListingsHandler{assembler: assembler, resolver: res, cfg: cfg}
}

// Index renders the listings page. Assembly reads only the listing store
// and the parse cache; lookups that missed are queued for the background
// resolver, never fetched inline.
func (h *ListingsHandler) Index(c fiber.Ctx) error {
	page, pending, err := h.assembler.BuildPage(c.Context())
	if err != nil {
		// Match the uploaded contract: a storage hiccup shows an empty
		// board, not an error page.
		log.Printf("Failed to build listings page: %v", err)
		page = &render.Page{}
	}
	h.resolver.Enqueue(pending...)

	return c.Render("listings", fiber.Map{
		"Title":     h.cfg.SiteTitle,
		"SiteTitle": h.cfg.SiteTitle,
		"Listings":  page.Listings,
		"Generated": page.GeneratedAt,
	})
}
