// Package models defines server-side data models.
package models

import "time"

// Account is an identity record. ID is assigned by the store; UID is an
// opaque key generated at registration, independent of storage.
type Account struct {
	ID           string    `json:"id"`
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Verified     bool      `json:"verified"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AccountPatch lists the mutable flags; nil fields are left unchanged.
type AccountPatch struct {
	Verified *bool
	Active   *bool
}

// Empty reports whether the patch changes nothing.
func (p AccountPatch) Empty() bool {
	return p.Verified == nil && p.Active == nil
}
