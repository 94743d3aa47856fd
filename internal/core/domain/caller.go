package domain

import "time"

const RoleAdmin = "admin"

// Caller is the authenticated principal resolved by the auth middleware.
// The core trusts ID and Role verbatim.
type Caller struct {
	ID   string
	Role string
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// MayMutate is the ownership guard: a record may be mutated by its owner or
// by an admin.
func (c Caller) MayMutate(ownerID string) bool {
	return c.IsAdmin() || (c.ID != "" && c.ID == ownerID)
}

// APIKey is a service credential. The raw token is never stored, only its
// sha256 hash.
type APIKey struct {
	TokenHash string
	UserID    string
	Role      string
	Name      string
	Active    bool
	CreatedAt time.Time
}
