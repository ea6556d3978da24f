package models

import "time"

// LoginLogEntry is an append-only audit record of a successful session issuance.
type LoginLogEntry struct {
	UserID    string
	UserName  string
	CreatedAt time.Time
}
