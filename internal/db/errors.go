package db

import "errors"

// Domain-level database error sentinels.
var (
	ErrListingNotFound = errors.New("listing not found")
	ErrPlayerNotFound  = errors.New("player not found")
)
