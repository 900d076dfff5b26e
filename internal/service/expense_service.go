package service

import (
	"context"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/logging"
)

// shareTolerance is how far shares may exceed the amount before an expense is rejected.
var shareTolerance = decimal.New(1, -2)

// Ensure ExpenseService implements the Connect handler interface
var _ rpc.ExpenseServiceHandler = (*ExpenseService)(nil)

// ExpenseStore is the storage the expense service needs.
type ExpenseStore interface {
	storage.GroupStore
	storage.ExpenseStore
	storage.CategoryStore
}

// ExpenseService implements the Connect ExpenseService.
type ExpenseService struct {
	store     ExpenseStore
	publisher events.Publisher
}

// NewExpenseService creates an ExpenseService. A nil publisher disables events.
func NewExpenseService(store ExpenseStore, publisher events.Publisher) *ExpenseService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ExpenseService{store: store, publisher: publisher}
}

// CreateExpense records a new expense in a group.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[rpc.CreateExpenseRequest]) (*connect.Response[rpc.CreateExpenseResponse], error) {
	logger := logging.FromContext(ctx)
	logger.Info("CreateExpense request received",
		"group_id", req.Msg.GroupID,
		"title", req.Msg.Title,
		"participants_count", len(req.Msg.Participants),
	)

	if req.Msg.GroupID == "" {
		return nil, fail(ctx, "CreateExpense", invalid("groupId is required"))
	}
	group, err := s.store.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, fail(ctx, "CreateExpense", err, "group_id", req.Msg.GroupID)
	}

	expense, err := s.buildExpense(ctx, group, req.Msg.ExpenseInput)
	if err != nil {
		return nil, fail(ctx, "CreateExpense", err, "group_id", group.ID)
	}
	expense.CreatedBy = middleware.GetUserID(ctx)

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return nil, fail(ctx, "CreateExpense", err, "group_id", group.ID)
	}

	logger.Info("Expense created", "expense_id", expense.ID, "group_id", group.ID, "amount", expense.Amount.String())
	s.publish(ctx, events.ExpenseCreated, expense)

	return connect.NewResponse(&rpc.CreateExpenseResponse{Expense: expenseToRPC(expense, memberNames(group))}), nil
}

// GetExpense retrieves an expense with its participants.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[rpc.GetExpenseRequest]) (*connect.Response[rpc.GetExpenseResponse], error) {
	expense, group, err := s.loadExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, fail(ctx, "GetExpense", err, "expense_id", req.Msg.ExpenseID)
	}

	return connect.NewResponse(&rpc.GetExpenseResponse{Expense: expenseToRPC(expense, memberNames(group))}), nil
}

// ListExpenses returns a group's expenses, most recent first.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[rpc.ListExpensesRequest]) (*connect.Response[rpc.ListExpensesResponse], error) {
	if req.Msg.GroupID == "" {
		return nil, fail(ctx, "ListExpenses", invalid("groupId is required"))
	}

	group, err := s.store.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, fail(ctx, "ListExpenses", err, "group_id", req.Msg.GroupID)
	}
	expenses, err := s.store.ListExpensesByGroup(ctx, group.ID)
	if err != nil {
		return nil, fail(ctx, "ListExpenses", err, "group_id", group.ID)
	}

	names := memberNames(group)
	out := make([]*rpc.Expense, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, expenseToRPC(e, names))
	}

	return connect.NewResponse(&rpc.ListExpensesResponse{Expenses: out}), nil
}

// UpdateExpense replaces an expense's fields and participants.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[rpc.UpdateExpenseRequest]) (*connect.Response[rpc.UpdateExpenseResponse], error) {
	logger := logging.FromContext(ctx)
	logger.Info("UpdateExpense request received", "expense_id", req.Msg.ExpenseID)

	existing, group, err := s.loadExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, fail(ctx, "UpdateExpense", err, "expense_id", req.Msg.ExpenseID)
	}

	expense, err := s.buildExpense(ctx, group, req.Msg.ExpenseInput)
	if err != nil {
		return nil, fail(ctx, "UpdateExpense", err, "expense_id", existing.ID)
	}
	expense.ID = existing.ID
	expense.CreatedBy = existing.CreatedBy
	expense.CreatedAt = existing.CreatedAt

	if err := s.store.UpdateExpense(ctx, expense); err != nil {
		return nil, fail(ctx, "UpdateExpense", err, "expense_id", existing.ID)
	}

	logger.Info("Expense updated", "expense_id", expense.ID, "group_id", group.ID)
	s.publish(ctx, events.ExpenseUpdated, expense)

	return connect.NewResponse(&rpc.UpdateExpenseResponse{Expense: expenseToRPC(expense, memberNames(group))}), nil
}

// DeleteExpense removes an expense.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[rpc.DeleteExpenseRequest]) (*connect.Response[rpc.DeleteExpenseResponse], error) {
	if req.Msg.ExpenseID == "" {
		return nil, fail(ctx, "DeleteExpense", invalid("expenseId is required"))
	}

	existing, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, fail(ctx, "DeleteExpense", err, "expense_id", req.Msg.ExpenseID)
	}
	if err := s.store.DeleteExpense(ctx, existing.ID); err != nil {
		return nil, fail(ctx, "DeleteExpense", err, "expense_id", existing.ID)
	}

	logging.FromContext(ctx).Info("Expense deleted", "expense_id", existing.ID, "group_id", existing.GroupID)
	s.publish(ctx, events.ExpenseDeleted, existing)

	return connect.NewResponse(&rpc.DeleteExpenseResponse{}), nil
}

// ListParticipants returns the shares of one expense with member names.
func (s *ExpenseService) ListParticipants(ctx context.Context, req *connect.Request[rpc.ListParticipantsRequest]) (*connect.Response[rpc.ListParticipantsResponse], error) {
	expense, group, err := s.loadExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, fail(ctx, "ListParticipants", err, "expense_id", req.Msg.ExpenseID)
	}

	return connect.NewResponse(&rpc.ListParticipantsResponse{
		Participants: participantsToRPC(expense.Participants, memberNames(group)),
	}), nil
}

// ListCategories returns the expense categories sorted by name.
func (s *ExpenseService) ListCategories(ctx context.Context, req *connect.Request[rpc.ListCategoriesRequest]) (*connect.Response[rpc.ListCategoriesResponse], error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fail(ctx, "ListCategories", err)
	}

	out := make([]rpc.Category, 0, len(categories))
	for _, c := range categories {
		out = append(out, rpc.Category{ID: c.ID, Name: c.Name})
	}
	return connect.NewResponse(&rpc.ListCategoriesResponse{Categories: out}), nil
}

func (s *ExpenseService) loadExpense(ctx context.Context, expenseID string) (*models.Expense, *models.Group, error) {
	if expenseID == "" {
		return nil, nil, invalid("expenseId is required")
	}
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, nil, err
	}
	group, err := s.store.GetGroup(ctx, expense.GroupID)
	if err != nil {
		return nil, nil, err
	}
	return expense, group, nil
}

// buildExpense validates input against the group and turns it into a model.
func (s *ExpenseService) buildExpense(ctx context.Context, group *models.Group, in rpc.ExpenseInput) (*models.Expense, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if len(title) > maxNameLength {
		return nil, invalid("title must be at most %d characters", maxNameLength)
	}
	if !in.Amount.IsPositive() {
		return nil, invalid("amount must be greater than zero")
	}
	if !in.Amount.Equal(in.Amount.Round(2)) {
		return nil, invalid("amount must have at most 2 decimal places")
	}
	if !group.HasMember(in.PayerID) {
		return nil, invalid("payer %q is not a member of the group", in.PayerID)
	}
	if in.CategoryID != "" {
		if err := s.checkCategory(ctx, in.CategoryID); err != nil {
			return nil, err
		}
	}

	var participants []models.Participant
	if in.SplitEqually {
		ids := make([]string, 0, len(in.Participants))
		for _, p := range in.Participants {
			ids = append(ids, p.MemberID)
		}
		if len(ids) == 0 {
			for _, m := range group.Members {
				ids = append(ids, m.ID)
			}
		}
		if err := checkMembers(group, ids); err != nil {
			return nil, err
		}
		shares, err := calculator.SplitEqually(in.Amount, ids, in.PayerID)
		if err != nil {
			return nil, invalid("%v", err)
		}
		for _, sh := range shares {
			participants = append(participants, models.Participant{MemberID: sh.MemberID, Share: sh.Amount})
		}
	} else {
		ids := make([]string, 0, len(in.Participants))
		total := decimal.Zero
		for _, p := range in.Participants {
			if p.Share.IsNegative() {
				return nil, invalid("share for %q must not be negative", p.MemberID)
			}
			ids = append(ids, p.MemberID)
			total = total.Add(p.Share)
			participants = append(participants, models.Participant{MemberID: p.MemberID, Share: p.Share})
		}
		if err := checkMembers(group, ids); err != nil {
			return nil, err
		}
		if total.Sub(in.Amount).GreaterThan(shareTolerance) {
			return nil, invalid("shares add up to %s, more than the amount %s", total.String(), in.Amount.String())
		}
	}

	date := in.Date
	if date == 0 {
		date = time.Now().Unix()
	}

	return &models.Expense{
		GroupID:         group.ID,
		Title:           title,
		Amount:          in.Amount,
		PayerID:         in.PayerID,
		Date:            date,
		CategoryID:      in.CategoryID,
		IsReimbursement: in.IsReimbursement,
		Participants:    participants,
	}, nil
}

func (s *ExpenseService) checkCategory(ctx context.Context, categoryID string) error {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, c := range categories {
		if c.ID == categoryID {
			return nil
		}
	}
	return invalid("unknown category %q", categoryID)
}

func checkMembers(group *models.Group, ids []string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !group.HasMember(id) {
			return invalid("participant %q is not a member of the group", id)
		}
		if seen[id] {
			return invalid("participant %q is listed twice", id)
		}
		seen[id] = true
	}
	return nil
}

// publish announces a change. Failures are logged and never fail the request.
func (s *ExpenseService) publish(ctx context.Context, eventType string, expense *models.Expense) {
	event := events.NewExpenseEvent(eventType, expense.GroupID, expense.ID, middleware.GetUserID(ctx))
	if err := s.publisher.Publish(ctx, event); err != nil {
		logging.FromContext(ctx).Warn("Failed to publish expense event",
			"type", eventType,
			"expense_id", expense.ID,
			"error", err,
		)
	}
}
