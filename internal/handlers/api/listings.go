package api

import (
	"log"

	"github.com/gofiber/fiber/v3"

	"partyboard/internal/render"
	"partyboard/internal/resolver"
)

type enqueuer interface {
	Enqueue(reqs ...resolver.Request)
}

// ListingsHandler serves the render-ready listings as JSON.
type ListingsHandler struct {
	assembler *render.Assembler
	resolver  enqueuer
}

// NewListingsHandler creates a new API listings handler.
func NewListingsHandler(assembler *render.Assembler, res enqueuer) *ListingsHandler {
	return &ListingsHandler{assembler: assembler, resolver: res}
}

// List returns the current listings with participant parse data. Missing
// parses are reported as unknown and resolved in the background, so the
// response never waits on the ranking service.
func (h *ListingsHandler) List(c fiber.Ctx) error {
	page, pending, err := h.assembler.BuildPage(c.Context())
	if err != nil {
		log.Printf("Failed to build listings page: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch listings")
	}
	h.resolver.Enqueue(pending...)

	return jsonSuccess(c, page)
}
