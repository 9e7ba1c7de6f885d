// Package validation checks crowd-sourced uploads before they reach
// storage. Uploaders are untrusted in-game clients; anything malformed is
// rejected at the edge.
package validation

import (
	"regexp"
	"strings"

	"partyboard/internal/models"
)

// Recruitment windows longer than an hour cannot come from a real
// in-game listing.
const MaxSecondsRemaining = 3600

// NamePattern matches character names: two words of letters, apostrophes
// and hyphens, as the game enforces.
var NamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z'\-]{1,14} [A-Za-z][A-Za-z'\-]{1,14}$`)

// WorldPattern matches home world names.
var WorldPattern = regexp.MustCompile(`^[A-Za-z]{2,32}$`)

// ValidateListing checks an uploaded listing. Returns false with a
// human-readable reason on rejection.
func ValidateListing(l *models.UploadableListing) (bool, string) {
	if l.ListingID == 0 {
		return false, "listing id is required"
	}
	if l.DutyID <= 0 {
		return false, "duty id is required"
	}
	if l.SecondsRemaining <= 0 || l.SecondsRemaining > MaxSecondsRemaining {
		return false, "seconds remaining out of range"
	}
	if len(l.Description) > 500 {
		return false, "description too long"
	}
	return true, ""
}

// ValidatePlayer checks an uploaded player identity.
func ValidatePlayer(p *models.UploadablePlayer) (bool, string) {
	if p.ContentID == 0 {
		return false, "content id is required"
	}
	if !NamePattern.MatchString(strings.TrimSpace(p.Name)) {
		return false, "invalid character name"
	}
	if !WorldPattern.MatchString(strings.TrimSpace(p.World)) {
		return false, "invalid world name"
	}
	return true, ""
}

// ValidatePartyDetail checks an uploaded roster. The leader identity is
// optional (zero content id) but must be well-formed when present.
func ValidatePartyDetail(d *models.UploadablePartyDetail) (bool, string) {
	if d.ListingID == 0 {
		return false, "listing id is required"
	}
	if len(d.MemberContentIDs) > 48 {
		return false, "too many members"
	}
	if d.LeaderContentID != 0 {
		leader := models.UploadablePlayer{ContentID: d.LeaderContentID, Name: d.LeaderName, World: d.LeaderWorld}
		if ok, msg := ValidatePlayer(&leader); !ok {
			return false, "leader: " + msg
		}
	}
	return true, ""
}
