package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnknownMember is returned when an expense references a member ID that is
// not part of the roster passed to ComputeBalances.
var ErrUnknownMember = errors.New("expense references unknown member")

// Member is the minimal identity the calculator needs for a group member.
type Member struct {
	ID   string
	Name string
}

// Share is the portion of an expense attributed to one member.
type Share struct {
	MemberID string
	Amount   decimal.Decimal
}

// Expense is an expense with the minimal information needed for balance calculations.
type Expense struct {
	ID      string
	Amount  decimal.Decimal
	PayerID string
	Shares  []Share
}

// Balance is one member's net position across a group's expenses.
type Balance struct {
	MemberID  string
	Name      string
	NetAmount decimal.Decimal // Positive = owed money, Negative = owes money
}

// Result is the output of ComputeBalances.
type Result struct {
	Balances []Balance
	Total    decimal.Decimal
}

// ComputeBalances turns a group's expenses into one net balance per member.
//
// Algorithm:
//   - Only members referenced by some expense (as payer or share holder) get a
//     balance; they are returned in roster order.
//   - For each expense: the payer is credited the full amount and every share
//     holder is debited their share.
//   - If the payer holds no share and the shares fall short of the amount, the
//     shortfall is debited from the payer as an implicit personal share.
//   - Balances are rounded to 2 decimals once, at the end. Total is the sum of
//     raw expense amounts.
//
// Amounts and shares are assumed non-negative; callers validate them. An ID
// missing from members fails with ErrUnknownMember.
func ComputeBalances(expenses []Expense, members []Member) (Result, error) {
	known := make(map[string]bool, len(members))
	for _, m := range members {
		known[m.ID] = true
	}

	// First pass: who is involved at all
	involved := make(map[string]bool)
	for _, expense := range expenses {
		if !known[expense.PayerID] {
			return Result{}, fmt.Errorf("%w: payer %q on expense %q", ErrUnknownMember, expense.PayerID, expense.ID)
		}
		involved[expense.PayerID] = true
		for _, share := range expense.Shares {
			if !known[share.MemberID] {
				return Result{}, fmt.Errorf("%w: participant %q on expense %q", ErrUnknownMember, share.MemberID, expense.ID)
			}
			involved[share.MemberID] = true
		}
	}

	// Second pass: accumulate at full precision
	running := make(map[string]decimal.Decimal, len(involved))
	total := decimal.Zero
	for _, expense := range expenses {
		total = total.Add(expense.Amount)
		running[expense.PayerID] = running[expense.PayerID].Add(expense.Amount)

		covered := decimal.Zero
		payerHasShare := false
		for _, share := range expense.Shares {
			covered = covered.Add(share.Amount)
			running[share.MemberID] = running[share.MemberID].Sub(share.Amount)
			if share.MemberID == expense.PayerID {
				payerHasShare = true
			}
		}

		if !payerHasShare && covered.LessThan(expense.Amount) {
			running[expense.PayerID] = running[expense.PayerID].Sub(expense.Amount.Sub(covered))
		}
	}

	balances := make([]Balance, 0, len(involved))
	for _, m := range members {
		if !involved[m.ID] {
			continue
		}
		// Guard against duplicate roster entries
		delete(involved, m.ID)
		balances = append(balances, Balance{
			MemberID:  m.ID,
			Name:      m.Name,
			NetAmount: running[m.ID].Round(2),
		})
	}

	return Result{Balances: balances, Total: total}, nil
}
