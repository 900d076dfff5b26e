// Package settlement computes a group's balances, settlement plan and activity
// feed from the stored ledger.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/pkg/logging"
)

// GroupReader loads a group with its roster.
type GroupReader interface {
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
}

// ExpenseReader loads a group's expenses with their participants.
type ExpenseReader interface {
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)
}

// Result is the settlement view of one group.
type Result struct {
	GroupID     string
	Currency    string
	Balances    []calculator.Balance
	Settlements []calculator.Settlement
	GroupTotal  decimal.Decimal

	// AllParticipants lists the distinct member IDs holding a share in any
	// expense, in order of first appearance.
	AllParticipants []string

	// Residuals are members the plan failed to clear. Empty unless the
	// group's balances did not sum to zero.
	Residuals []calculator.Balance
}

// ActivityShare is one participant line of an activity entry.
type ActivityShare struct {
	MemberID   string
	MemberName string
	Share      decimal.Decimal
}

// Activity is one expense as shown in the group feed.
type Activity struct {
	ID              string
	Title           string
	Amount          decimal.Decimal
	PayerID         string
	PayerName       string
	Date            int64
	IsReimbursement bool
	Participants    []ActivityShare
}

// Service orchestrates the fetch and the calculator for a group.
type Service struct {
	groups   GroupReader
	expenses ExpenseReader
}

// NewService creates a settlement Service reading from the given stores.
func NewService(groups GroupReader, expenses ExpenseReader) *Service {
	return &Service{groups: groups, expenses: expenses}
}

// GroupSettlement fetches the group's roster and expenses concurrently and
// computes balances, the settlement plan and the group total.
func (s *Service) GroupSettlement(ctx context.Context, groupID string) (*Result, error) {
	start := time.Now()
	logger := logging.FromContext(ctx).With("group_id", groupID)

	group, expenses, err := s.fetch(ctx, groupID)
	if err != nil {
		metrics.SettlementComputations.WithLabelValues("error").Inc()
		return nil, err
	}

	result, err := Compute(group, expenses)
	if err != nil {
		metrics.SettlementComputations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to compute settlement for group %s: %w", groupID, err)
	}

	metrics.SettlementComputations.WithLabelValues("ok").Inc()
	metrics.SettlementDuration.Observe(time.Since(start).Seconds())
	metrics.SettlementTransfers.Observe(float64(len(result.Settlements)))

	if len(result.Residuals) > 0 {
		metrics.SettlementResidualMembers.Add(float64(len(result.Residuals)))
		logger.Warn("Settlement plan left balances uncleared",
			"residual_members", len(result.Residuals),
			"residuals", residualAttrs(result.Residuals),
		)
	}

	logger.Debug("Settlement computed",
		"balances", len(result.Balances),
		"settlements", len(result.Settlements),
		"total", result.GroupTotal.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// GroupActivities returns the group's expenses as a feed, most recent first.
func (s *Service) GroupActivities(ctx context.Context, groupID string) ([]Activity, error) {
	group, expenses, err := s.fetch(ctx, groupID)
	if err != nil {
		return nil, err
	}

	names := memberNames(group)
	activities := make([]Activity, 0, len(expenses))
	for _, e := range expenses {
		a := Activity{
			ID:              e.ID,
			Title:           e.Title,
			Amount:          e.Amount,
			PayerID:         e.PayerID,
			PayerName:       names[e.PayerID],
			Date:            e.Date,
			IsReimbursement: e.IsReimbursement,
			Participants:    make([]ActivityShare, 0, len(e.Participants)),
		}
		for _, p := range e.Participants {
			a.Participants = append(a.Participants, ActivityShare{
				MemberID:   p.MemberID,
				MemberName: names[p.MemberID],
				Share:      p.Share,
			})
		}
		activities = append(activities, a)
	}
	return activities, nil
}

// Compute runs the calculator over an already loaded group and its expenses.
func Compute(group *models.Group, expenses []*models.Expense) (*Result, error) {
	members := make([]calculator.Member, 0, len(group.Members))
	for _, m := range group.Members {
		members = append(members, calculator.Member{ID: m.ID, Name: m.Name})
	}

	calcExpenses := make([]calculator.Expense, 0, len(expenses))
	seen := make(map[string]bool)
	allParticipants := make([]string, 0)
	for _, e := range expenses {
		ce := calculator.Expense{
			ID:      e.ID,
			Amount:  e.Amount,
			PayerID: e.PayerID,
			Shares:  make([]calculator.Share, 0, len(e.Participants)),
		}
		for _, p := range e.Participants {
			ce.Shares = append(ce.Shares, calculator.Share{MemberID: p.MemberID, Amount: p.Share})
			if !seen[p.MemberID] {
				seen[p.MemberID] = true
				allParticipants = append(allParticipants, p.MemberID)
			}
		}
		calcExpenses = append(calcExpenses, ce)
	}

	computed, err := calculator.ComputeBalances(calcExpenses, members)
	if err != nil {
		return nil, err
	}
	settlements := calculator.PlanSettlements(computed.Balances)

	return &Result{
		GroupID:         group.ID,
		Currency:        group.Currency,
		Balances:        computed.Balances,
		Settlements:     settlements,
		GroupTotal:      computed.Total,
		AllParticipants: allParticipants,
		Residuals:       calculator.Unsettled(computed.Balances, settlements),
	}, nil
}

func (s *Service) fetch(ctx context.Context, groupID string) (*models.Group, []*models.Expense, error) {
	var (
		group    *models.Group
		expenses []*models.Expense
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		group, err = s.groups.GetGroup(gctx, groupID)
		if err != nil {
			return fmt.Errorf("failed to get group %s: %w", groupID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		expenses, err = s.expenses.ListExpensesByGroup(gctx, groupID)
		if err != nil {
			return fmt.Errorf("failed to list expenses for group %s: %w", groupID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return group, expenses, nil
}

func memberNames(group *models.Group) map[string]string {
	names := make(map[string]string, len(group.Members))
	for _, m := range group.Members {
		names[m.ID] = m.Name
	}
	return names
}

func residualAttrs(residuals []calculator.Balance) map[string]string {
	out := make(map[string]string, len(residuals))
	for _, r := range residuals {
		out[r.MemberID] = r.NetAmount.StringFixed(2)
	}
	return out
}
