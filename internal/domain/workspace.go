package domain

import "time"

// Workspace is a named tenant grouping of users.
//
// OwnerID is nil until the first member claims ownership. The transition
// from nil to a user id happens exactly once per workspace; it is enforced
// by a conditional single-statement update in the store, never by an
// in-process lock.
type Workspace struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   *int64    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Owned reports whether the workspace already has an owner.
func (w Workspace) Owned() bool {
	return w.OwnerID != nil
}
