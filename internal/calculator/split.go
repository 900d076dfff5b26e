package calculator

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoParticipants is returned when a split has nobody to split between.
var ErrNoParticipants = errors.New("must have at least one participant")

// SplitEqually divides amount between memberIDs in whole cents.
//
// Every participant gets amount/n rounded down to the cent. The leftover cents
// are handed out one at a time, first to the payer when the payer participates
// and then in the order given, so shares differ by at most one cent and always
// sum to amount rounded to 2 decimals.
func SplitEqually(amount decimal.Decimal, memberIDs []string, payerID string) ([]Share, error) {
	if len(memberIDs) == 0 {
		return nil, ErrNoParticipants
	}

	n := int64(len(memberIDs))
	cents := amount.Shift(2).Round(0).IntPart()
	base := cents / n
	extra := cents % n

	// Payer first in line for the leftover cents
	order := make([]int, 0, len(memberIDs))
	for i, id := range memberIDs {
		if id == payerID {
			order = append(order, i)
			break
		}
	}
	for i, id := range memberIDs {
		if id != payerID || len(order) == 0 || order[0] != i {
			order = append(order, i)
		}
	}

	shares := make([]Share, len(memberIDs))
	for rank, i := range order {
		c := base
		if int64(rank) < extra {
			c++
		}
		shares[i] = Share{MemberID: memberIDs[i], Amount: decimal.New(c, -2)}
	}
	return shares, nil
}
