package models

import "time"

// Player is a character identity observed by data collectors. ContentID is
// the stable in-game character identifier and the primary key; name and
// world can change (renames, world transfers) and are refreshed on upload.
type Player struct {
	ContentID int64     `json:"content_id"`
	Name      string    `json:"name"`
	World     string    `json:"world"`
	LastSeen  time.Time `json:"last_seen"`
	SeenCount int       `json:"seen_count"`
}

// UploadablePlayer is the wire format accepted from data collectors.
type UploadablePlayer struct {
	ContentID int64  `json:"content_id"`
	Name      string `json:"name"`
	World     string `json:"world"`
}
