package calculator

import (
	"sort"

	"github.com/shopspring/decimal"
)

// epsilon is the magnitude below which a balance counts as settled.
var epsilon = decimal.New(1, -3)

// Settlement is a single payment that moves both parties toward zero.
type Settlement struct {
	FromMemberID string // Debtor paying
	FromName     string
	ToMemberID   string // Creditor being paid
	ToName       string
	Amount       decimal.Decimal
}

type position struct {
	id     string
	name   string
	amount decimal.Decimal
}

// PlanSettlements returns transfers that bring every balance to zero.
//
// Greedy matching: creditors are sorted by balance descending and debtors by
// balance ascending (most negative first), then the largest creditor is paired
// with the largest debtor until one list runs out. Sorting is stable, so equal
// balances keep their input order and the plan is deterministic.
//
// The result is not guaranteed to use the fewest possible transfers.
func PlanSettlements(balances []Balance) []Settlement {
	var creditors, debtors []*position
	for _, b := range balances {
		p := &position{id: b.MemberID, name: b.Name, amount: b.NetAmount}
		switch {
		case b.NetAmount.GreaterThan(epsilon):
			creditors = append(creditors, p)
		case b.NetAmount.LessThan(epsilon.Neg()):
			debtors = append(debtors, p)
		}
	}

	sort.SliceStable(creditors, func(i, j int) bool {
		return creditors[i].amount.GreaterThan(creditors[j].amount)
	})
	sort.SliceStable(debtors, func(i, j int) bool {
		return debtors[i].amount.LessThan(debtors[j].amount)
	})

	settlements := make([]Settlement, 0)
	c, d := 0, 0
	for c < len(creditors) && d < len(debtors) {
		creditor := creditors[c]
		debtor := debtors[d]

		amount := decimal.Min(creditor.amount, debtor.amount.Abs())
		if amount.GreaterThan(epsilon) {
			settlements = append(settlements, Settlement{
				FromMemberID: debtor.id,
				FromName:     debtor.name,
				ToMemberID:   creditor.id,
				ToName:       creditor.name,
				Amount:       amount.Round(2),
			})
			creditor.amount = creditor.amount.Sub(amount)
			debtor.amount = debtor.amount.Add(amount)
		}

		if settled(creditor.amount) {
			c++
		}
		if settled(debtor.amount) {
			d++
		}
	}

	return settlements
}

// Unsettled applies settlements to balances and returns every member whose
// residual is still beyond epsilon, in input order. A non-empty result means
// the balances did not sum to zero.
func Unsettled(balances []Balance, settlements []Settlement) []Balance {
	residual := make(map[string]decimal.Decimal, len(balances))
	for _, b := range balances {
		residual[b.MemberID] = residual[b.MemberID].Add(b.NetAmount)
	}
	for _, s := range settlements {
		residual[s.FromMemberID] = residual[s.FromMemberID].Add(s.Amount)
		residual[s.ToMemberID] = residual[s.ToMemberID].Sub(s.Amount)
	}

	var out []Balance
	for _, b := range balances {
		if amount := residual[b.MemberID]; !settled(amount) {
			out = append(out, Balance{MemberID: b.MemberID, Name: b.Name, NetAmount: amount})
		}
	}
	return out
}

func settled(amount decimal.Decimal) bool {
	return !amount.Abs().GreaterThan(epsilon)
}
