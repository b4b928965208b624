package auth

import "github.com/google/uuid"

// Principal is the snapshot of a user carried inside a session token.
type Principal struct {
	UserID    uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"image"`
}

// Identity is the resolved caller of an action: either a signed-in principal
// or a guest. The zero value is a guest.
type Identity struct {
	principal *Principal
}

// Guest returns the anonymous identity.
func Guest() Identity {
	return Identity{}
}

// Authenticated returns an identity for the given principal.
func Authenticated(p Principal) Identity {
	return Identity{principal: &p}
}

// IsGuest reports whether no session was resolved.
func (i Identity) IsGuest() bool {
	return i.principal == nil
}

// Principal returns the signed-in principal and true, or false for guests.
func (i Identity) Principal() (Principal, bool) {
	if i.principal == nil {
		return Principal{}, false
	}
	return *i.principal, true
}

// Email returns the owning email for authenticated identities and "" for guests.
func (i Identity) Email() string {
	if i.principal == nil {
		return ""
	}
	return i.principal.Email
}

// SameOwner reports whether two identities own the same resources. Guests
// never match anyone, including other guests.
func (i Identity) SameOwner(other Identity) bool {
	if i.IsGuest() || other.IsGuest() {
		return false
	}
	return i.principal.Email == other.principal.Email
}

// String is used in logs only.
func (i Identity) String() string {
	if i.principal == nil {
		return "guest"
	}
	return "user:" + i.principal.Email
}
