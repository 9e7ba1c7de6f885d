package handlers

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v3"

	"partyboard/internal/db"
	"partyboard/internal/models"
	"partyboard/internal/validation"
)

// ContributeHandler accepts crowd-sourced uploads from in-game data
// collectors: listings, player identities, and party rosters.
type ContributeHandler struct {
	db *db.DB
}

// NewContributeHandler creates a new contribute handler.
func NewContributeHandler(database *db.DB) *ContributeHandler {
	return &ContributeHandler{db: database}
}

// Listing accepts a single listing upload.
func (h *ContributeHandler) Listing(c fiber.Ctx) error {
	var body models.UploadableListing
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if ok, msg := validation.ValidateListing(&body); !ok {
		return fiber.NewError(fiber.StatusBadRequest, msg)
	}

	listing := &models.Listing{
		ListingID:        body.ListingID,
		DutyID:           body.DutyID,
		Category:         body.Category,
		Description:      body.Description,
		SecondsRemaining: body.SecondsRemaining,
	}
	if err := h.db.UpsertListing(c.Context(), listing); err != nil {
		log.Printf("Failed to upsert listing %d: %v", body.ListingID, err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to store listing")
	}

	return c.JSON(fiber.Map{"updated": 1})
}

// Listings accepts a bulk listing upload. Invalid entries are skipped so
// one bad listing does not reject a whole batch.
func (h *ContributeHandler) Listings(c fiber.Ctx) error {
	var bodies []models.UploadableListing
	if err := json.Unmarshal(c.Body(), &bodies); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updated := 0
	for i := range bodies {
		if ok, _ := validation.ValidateListing(&bodies[i]); !ok {
			continue
		}
		listing := &models.Listing{
			ListingID:        bodies[i].ListingID,
			DutyID:           bodies[i].DutyID,
			Category:         bodies[i].Category,
			Description:      bodies[i].Description,
			SecondsRemaining: bodies[i].SecondsRemaining,
		}
		if err := h.db.UpsertListing(c.Context(), listing); err != nil {
			log.Printf("Failed to upsert listing %d: %v", bodies[i].ListingID, err)
			continue
		}
		updated++
	}

	return c.JSON(fiber.Map{"updated": updated, "total": len(bodies), "status": fmt.Sprintf("%d/%d updated", updated, len(bodies))})
}

// Players accepts a batch of observed player identities.
func (h *ContributeHandler) Players(c fiber.Ctx) error {
	var bodies []models.UploadablePlayer
	if err := json.Unmarshal(c.Body(), &bodies); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	valid := make([]models.UploadablePlayer, 0, len(bodies))
	for i := range bodies {
		if ok, _ := validation.ValidatePlayer(&bodies[i]); ok {
			valid = append(valid, bodies[i])
		}
	}

	written, err := h.db.UpsertPlayers(c.Context(), valid)
	if err != nil {
		log.Printf("Failed to upsert players: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to store players")
	}

	return c.JSON(fiber.Map{"updated": written, "total": len(bodies)})
}

// Detail accepts the leader identity and member roster for a listing.
func (h *ContributeHandler) Detail(c fiber.Ctx) error {
	var body models.UploadablePartyDetail
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if ok, msg := validation.ValidatePartyDetail(&body); !ok {
		return fiber.NewError(fiber.StatusBadRequest, msg)
	}

	if body.LeaderContentID != 0 {
		leader := models.UploadablePlayer{
			ContentID: body.LeaderContentID,
			Name:      body.LeaderName,
			World:     body.LeaderWorld,
		}
		if _, err := h.db.UpsertPlayers(c.Context(), []models.UploadablePlayer{leader}); err != nil {
			log.Printf("Failed to upsert leader %d: %v", body.LeaderContentID, err)
		}
	}

	if err := h.db.SetListingDetail(c.Context(), body.ListingID, body.LeaderContentID, body.MemberContentIDs); err != nil {
		if err == db.ErrListingNotFound {
			return fiber.NewError(fiber.StatusNotFound, "unknown listing")
		}
		log.Printf("Failed to set detail for listing %d: %v", body.ListingID, err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to store detail")
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
