package models

// DefaultCurrency is used when a group is created without an explicit currency.
const DefaultCurrency = "MAD"

// MaxGroupMembers is the largest roster a group may have.
const MaxGroupMembers = 10

// Group represents a set of people who share expenses.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Ski Trip").
	Name string

	// Description is optional free text shown under the group name.
	Description string

	// Currency is the ISO-like code all of the group's amounts are expressed in.
	// Amounts are never converted between currencies.
	Currency string

	// Members is the group's roster, in join order.
	Members []Member

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last change to the group or its roster.
	UpdatedAt int64
}

// Member is one person inside a group.
// Names must be unique within a group (case-insensitive); IDs are the identity.
type Member struct {
	// ID is the unique identifier for the member (UUID format).
	ID string

	// GroupID is the group this member belongs to.
	GroupID string

	// Name is the display name of the member.
	Name string

	// JoinedAt is the Unix timestamp when the member was added.
	JoinedAt int64
}

// MemberByID returns the member with the given ID, or false if absent.
func (g *Group) MemberByID(id string) (Member, bool) {
	for _, m := range g.Members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// HasMember reports whether id belongs to the group's roster.
func (g *Group) HasMember(id string) bool {
	_, ok := g.MemberByID(id)
	return ok
}
