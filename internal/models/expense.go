package models

import "github.com/shopspring/decimal"

// Expense represents one payment made by a member on behalf of some participants.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group this expense belongs to.
	GroupID string

	// Title is a short description (e.g., "Groceries", "Movie tickets").
	Title string

	// Amount is the total amount paid. Always >= 0.
	Amount decimal.Decimal

	// PayerID is the member who fronted the money.
	// The payer is not required to be among the participants.
	PayerID string

	// Date is the Unix timestamp of the day the expense happened.
	Date int64

	// CategoryID optionally references a Category. Empty means uncategorized.
	CategoryID string

	// IsReimbursement marks expenses that pay someone back rather than buy something.
	// It is informational only and does not change balance math.
	IsReimbursement bool

	// Participants are the shares attributed to members.
	// Shares are not required to sum to Amount.
	Participants []Participant

	// CreatedBy is the authenticated user who recorded the expense, if any.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last edit.
	UpdatedAt int64
}

// Participant is the portion of one expense attributed to one member.
type Participant struct {
	// ID is the unique identifier for the participant row (UUID format).
	ID string

	// ExpenseID is the expense this share belongs to.
	ExpenseID string

	// MemberID is the member consuming this share.
	MemberID string

	// Share is the amount attributed to the member. Always >= 0.
	Share decimal.Decimal

	// CreatedAt is the Unix timestamp when the share was recorded.
	CreatedAt int64
}

// Category labels an expense.
type Category struct {
	ID   string
	Name string
}

// DefaultCategories is the list seeded into a fresh database.
var DefaultCategories = []string{
	"General",
	"Payment",
	"Entertainment",
	"Food & Drink",
	"Home",
	"Personal",
	"Transportation",
	"Utilities",
	"Services",
	"Insurance",
	"Taxes",
}
