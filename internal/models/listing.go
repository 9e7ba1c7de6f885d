package models

import (
	"time"

	"github.com/google/uuid"
)

// Party finder categories in display priority order (highest first).
const (
	CategoryHighEndDuty  = "high_end_duty"
	CategoryDutyRoulette = "duty_roulette"
	CategoryDungeons     = "dungeons"
	CategoryTrials       = "trials"
	CategoryRaids        = "raids"
	CategoryNone         = "none"
)

// categoryRanks orders categories for listing display. Unknown categories
// sort last.
var categoryRanks = map[string]int{
	CategoryHighEndDuty:  6,
	CategoryRaids:        5,
	CategoryTrials:       4,
	CategoryDungeons:     3,
	CategoryDutyRoulette: 2,
	CategoryNone:         1,
}

// Listing is a crowd-sourced party-recruitment post. ListingID is the
// in-game identifier reported by uploaders; ID is our row key.
type Listing struct {
	ID               uuid.UUID `json:"id"`
	ListingID        int64     `json:"listing_id"`
	DutyID           int       `json:"duty_id"`
	Category         string    `json:"category"`
	Description      string    `json:"description"`
	LeaderContentID  int64     `json:"leader_content_id"`
	MemberContentIDs []int64   `json:"member_content_ids"`
	SecondsRemaining int       `json:"seconds_remaining"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CategoryRank returns the sort priority of the listing's category.
func (l *Listing) CategoryRank() int {
	return categoryRanks[l.Category]
}

// ExpiresAt is the moment the recruitment window closes, based on the
// uploader-reported seconds remaining at the last update.
func (l *Listing) ExpiresAt() time.Time {
	return l.UpdatedAt.Add(time.Duration(l.SecondsRemaining) * time.Second)
}

// TimeLeft returns the remaining recruitment window, clamped at zero.
func (l *Listing) TimeLeft(now time.Time) time.Duration {
	left := l.ExpiresAt().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// UpdatedMinute truncates the last update to minute precision. Listings
// updated within the same minute are considered equally recent so that
// secondary ordering keys decide their relative position.
func (l *Listing) UpdatedMinute() time.Time {
	return l.UpdatedAt.Truncate(time.Minute)
}

// UploadableListing is the wire format accepted from data collectors.
type UploadableListing struct {
	ListingID        int64  `json:"listing_id"`
	DutyID           int    `json:"duty_id"`
	Category         string `json:"category"`
	Description      string `json:"description"`
	SecondsRemaining int    `json:"seconds_remaining"`
}

// UploadablePartyDetail carries the leader identity and member roster for
// a listing, uploaded separately from the listing itself.
type UploadablePartyDetail struct {
	ListingID        int64   `json:"listing_id"`
	LeaderContentID  int64   `json:"leader_content_id"`
	LeaderName       string  `json:"leader_name"`
	LeaderWorld      string  `json:"leader_world"`
	MemberContentIDs []int64 `json:"member_content_ids"`
}
