package service

import (
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/rpc"
)

func createEqualExpense(t *testing.T, c *testClients, groupID, title, amount, payerID string, participants ...string) *rpc.Expense {
	t.Helper()

	shares := make([]rpc.ShareInput, 0, len(participants))
	for _, id := range participants {
		shares = append(shares, rpc.ShareInput{MemberID: id})
	}
	resp, err := c.expenses.CreateExpense(context.Background(), connect.NewRequest(&rpc.CreateExpenseRequest{
		GroupID: groupID,
		ExpenseInput: rpc.ExpenseInput{
			Title:        title,
			Amount:       decimal.RequireFromString(amount),
			PayerID:      payerID,
			SplitEqually: true,
			Participants: shares,
		},
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	return resp.Msg.Expense
}

func sharesByName(participants []rpc.Participant) map[string]float64 {
	out := make(map[string]float64, len(participants))
	for _, p := range participants {
		out[p.MemberName] = p.Share
	}
	return out
}

func TestCreateExpense_SplitEqually(t *testing.T) {
	c := setupTestServer(t)
	group, ids := createGroup(t, c, "Trip", "Alice", "Bob", "Charlie")

	expense := createEqualExpense(t, c, group.ID, "Groceries", "100", ids["Alice"])

	assert.NotEmpty(t, expense.ID)
	assert.Equal(t, group.ID, expense.GroupID)
	assert.Equal(t, 100.0, expense.Amount)
	assert.Equal(t, "Alice", expense.PayerName)
	assert.NotZero(t, expense.Date)
	assert.Empty(t, expense.CreatedBy)
	assert.Equal(t, map[string]float64{"Alice": 33.34, "Bob": 33.33, "Charlie": 33.33}, sharesByName(expense.Participants))

	published := c.publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.ExpenseCreated, published[0].Type)
	assert.Equal(t, expense.ID, published[0].ExpenseID)
	assert.Equal(t, group.ID, published[0].GroupID)
}

func TestCreateExpense_SplitEquallyBetweenListed(t *testing.T) {
	c := setupTestServer(t)
	group, ids := createGroup(t, c, "Trip", "Alice", "Bob", "Charlie")

	expense := createEqualExpense(t, c, group.ID, "Taxi", "25", ids["Alice"], ids["Bob"], ids["Charlie"])

	assert.Equal(t, map[string]float64{"Bob": 12.5, "Charlie": 12.5}, sharesByName(expense.Participants))
}

func TestCreateExpense_CustomShares(t *testing.T) {
	c := setupTestServer(t)
	group, ids := createGroup(t, c, "Trip", "Alice", "Bob")

	resp, err := c.expenses.CreateExpense(context.Background(), connect.NewRequest(&rpc.CreateExpenseRequest{
		GroupID: group.ID,
		ExpenseInput: rpc.ExpenseInput{
			Title:   "Hotel",
			Amount:  decimal.RequireFromString("80.50"),
			PayerID: ids["Bob"],
			Date:    1700000000,
			Participants: []rpc.ShareInput{
				{MemberID: ids["Alice"], Share: decimal.RequireFromString("60.25")},
				{MemberID: ids["Bob"], Share: decimal.RequireFromString("20.25")},
			},
		},
	}))
	require.NoError(t, err)

	expense := resp.Msg.Expense
	assert.Equal(t, 80.5, expense.Amount)
	assert.Equal(t, int64(1700000000), expense.Date)
	assert.Equal(t, map[string]float64{"Alice": 60.25, "Bob": 20.25}, sharesByName(expense.Participants))
}

func TestCreateExpense_Invalid(t *testing.T) {
	c := setupTestServer(t)
	group, ids := createGroup(t, c, "Trip", "Alice", "Bob")
	_, otherIDs := createGroup(t, c, "Other", "Zed")

	share := func(id, amount string) rpc.ShareInput {
		return rpc.ShareInput{MemberID: id, Share: decimal.RequireFromString(amount)}
	}
	valid := func() rpc.ExpenseInput {
		return rpc.ExpenseInput{
			Title:        "Dinner",
			Amount:       decimal.RequireFromString("30"),
			PayerID:      ids["Alice"],
			Participants: []rpc.ShareInput{share(ids["Alice"], "15"), share(ids["Bob"], "15")},
		}
	}

	tests := []struct {
		name   string
		modify func(in *rpc.ExpenseInput)
	}{
		{"missing title", func(in *rpc.ExpenseInput) { in.Title = "" }},
		{"zero amount", func(in *rpc.ExpenseInput) { in.Amount = decimal.Zero }},
		{"negative amount", func(in *rpc.ExpenseInput) { in.Amount = decimal.RequireFromString("-5") }},
		{"sub-cent amount", func(in *rpc.ExpenseInput) { in.Amount = decimal.RequireFromString("30.001") }},
		{"payer outside group", func(in *rpc.ExpenseInput) { in.PayerID = otherIDs["Zed"] }},
		{"participant outside group", func(in *rpc.ExpenseInput) {
			in.Participants = append(in.Participants, share(otherIDs["Zed"], "0"))
		}},
		{"duplicate participant", func(in *rpc.ExpenseInput) {
			in.Participants = []rpc.ShareInput{share(ids["Alice"], "10"), share(ids["Alice"], "10")}
		}},
		{"negative share", func(in *rpc.ExpenseInput) {
			in.Participants = []rpc.ShareInput{share(ids["Alice"], "35"), share(ids["Bob"], "-5")}
		}},
		{"shares exceed amount", func(in *rpc.ExpenseInput) {
			in.Participants = []rpc.ShareInput{share(ids["Alice"], "20"), share(ids["Bob"], "20")}
		}},
		{"unknown category", func(in *rpc.ExpenseInput) { in.CategoryID = "no-such-category" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.modify(&in)
			_, err := c.expenses.CreateExpense(context.Background(), connect.NewRequest(&rpc.CreateExpenseRequest{
				GroupID:      group.ID,
				ExpenseInput: in,
			}))
			assertCode(t, err, connect.CodeInvalidArgument)
		})
	}

	_, err := c.expenses.CreateExpense(context.Background(), connect.NewRequest(&rpc.CreateExpenseRequest{
		GroupID:      "non-existent-id",
		ExpenseInput: valid(),
	}))
	assertCode(t, err, connect.CodeNotFound)

	assert.Empty(t, c.publisher.published())
}

func TestCreateExpense_Category(t *testing.T) {
	c := setupTestServer(t)
	group, ids := createGroup(t, c, "Trip", "Alice")

	cats, err := c.expenses.ListCategories(context.Background(), connect.NewRequest(&rpc.ListCategoriesRequest{}))
	require.NoError(t, err)
	require.NotEmpty(t, cats.Msg.Categories)
	category := cats.Msg.Categories[0]

	resp, err := c.expenses.CreateExpense(context.Background(), connect.NewRequest(&rpc.CreateExpenseRequest{
		GroupID: group.ID,
		ExpenseInput: rpc.ExpenseInput{
			Title:        "Snacks",
			Amount:       decimal.RequireFromString("4"),
			PayerID:      ids["Alice"],
			CategoryID:   category.ID,
			SplitEqually: true,
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, category.ID, resp.Msg.Expense.CategoryID)
}

func TestCreateExpense_StampsAuthenticatedUser(t *testing.T) {
	c := setupTestServer(t)
	group, ids := createGroup(t, c, "Trip", "Alice", "Bob")

	reg, err := c.auth.Register(context.Background(), connect.NewRequest(&rpc.RegisterRequest{
		Email:       "alice@example.com",
		Password:    "correct-horse",
		DisplayName: "Alice",
	}))
	require.NoError(t, err)

	req := connect.NewRequest(&rpc.CreateExpenseRequest{
		GroupID: group.ID,
		ExpenseInput: rpc.ExpenseInput{
			Title:        "Fuel",
			Amount:       decimal.RequireFromString("50"),
			PayerID:      ids["Alice"],
			SplitEqually: true,
		},
	})
	req.Header().Set("Authorization", "Bearer "+reg.Msg.Token)

	resp, err := c.expenses.CreateExpense(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, reg.Msg.User.ID, resp.Msg.Expense.CreatedBy)

	published := c.publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, reg.Msg.User.ID, published[0].ActorID)
}

func TestCreateExpense_PublishFailureIsNotFatal(t *testing.T) {
	c := setupTestServer(t)
	c.publisher.err = errors.New("broker down")
	group, ids := createGroup(t, c, "Trip", "Alice", "Bob")

	expense := createEqualExpense(t, c, group.ID, "Dinner", "30", ids["Alice"])
	assert.NotEmpty(t, expense.ID)
	assert.Len(t, c.publisher.published(), 1)
}

func TestListExpenses(t *testing.T) {
	c := setupTestServer(t)
	group, ids := createGroup(t, c, "Trip", "Alice", "Bob")

	for _, in := range []struct {
		title string
		date  int64
	}{
		{"Old", 1000}, {"New", 3000}, {"Middle", 2000},
	} {
		_, err := c.expenses.CreateExpense(context.Background(), connect.NewRequest(&rpc.CreateExpenseRequest{
			GroupID: group.ID,
			ExpenseInput: rpc.ExpenseInput{
				Title:        in.title,
				Amount:       decimal.NewFromInt(10),
				PayerID:      ids["Alice"],
				Date:         in.date,
				SplitEqually: true,
			},
		}))
		require.NoError(t, err)
	}

	resp, err := c.expenses.ListExpenses(context.Background(), connect.NewRequest(&rpc.ListExpensesRequest{GroupID: group.ID}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Expenses, 3)

	var titles []string
	for _, e := range resp.Msg.Expenses {
		titles = append(titles, e.Title)
		assert.Len(t, e.Participants, 2)
	}
	assert.Equal(t, []string{"New", "Middle", "Old"}, titles)

	_, err = c.expenses.ListExpenses(context.Background(), connect.NewRequest(&rpc.ListExpensesRequest{GroupID: "non-existent-id"}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestUpdateExpense(t *testing.T) {
	c := setupTestServer(t)
	group, ids := createGroup(t, c, "Trip", "Alice", "Bob", "Charlie")
	created := createEqualExpense(t, c, group.ID, "Dinner", "30", ids["Alice"])

	resp, err := c.expenses.UpdateExpense(context.Background(), connect.NewRequest(&rpc.UpdateExpenseRequest{
		ExpenseID: created.ID,
		ExpenseInput: rpc.ExpenseInput{
			Title:           "Dinner and drinks",
			Amount:          decimal.RequireFromString("45"),
			PayerID:         ids["Bob"],
			Date:            created.Date,
			IsReimbursement: true,
			Participants: []rpc.ShareInput{
				{MemberID: ids["Alice"], Share: decimal.RequireFromString("45")},
			},
		},
	}))
	require.NoError(t, err)

	updated := resp.Msg.Expense
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Dinner and drinks", updated.Title)
	assert.Equal(t, "Bob", updated.PayerName)
	assert.True(t, updated.IsReimbursement)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, map[string]float64{"Alice": 45}, sharesByName(updated.Participants))

	got, err := c.expenses.GetExpense(context.Background(), connect.NewRequest(&rpc.GetExpenseRequest{ExpenseID: created.ID}))
	require.NoError(t, err)
	assert.Equal(t, 45.0, got.Msg.Expense.Amount)
	assert.Len(t, got.Msg.Expense.Participants, 1)

	published := c.publisher.published()
	require.Len(t, published, 2)
	assert.Equal(t, events.ExpenseUpdated, published[1].Type)

	_, err = c.expenses.UpdateExpense(context.Background(), connect.NewRequest(&rpc.UpdateExpenseRequest{
		ExpenseID: "non-existent-id",
		ExpenseInput: rpc.ExpenseInput{
			Title:        "Ghost",
			Amount:       decimal.NewFromInt(1),
			PayerID:      ids["Alice"],
			SplitEqually: true,
		},
	}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestDeleteExpense(t *testing.T) {
	c := setupTestServer(t)
	group, ids := createGroup(t, c, "Trip", "Alice", "Bob")
	created := createEqualExpense(t, c, group.ID, "Dinner", "30", ids["Alice"])

	_, err := c.expenses.DeleteExpense(context.Background(), connect.NewRequest(&rpc.DeleteExpenseRequest{ExpenseID: created.ID}))
	require.NoError(t, err)

	_, err = c.expenses.GetExpense(context.Background(), connect.NewRequest(&rpc.GetExpenseRequest{ExpenseID: created.ID}))
	assertCode(t, err, connect.CodeNotFound)

	_, err = c.expenses.DeleteExpense(context.Background(), connect.NewRequest(&rpc.DeleteExpenseRequest{ExpenseID: created.ID}))
	assertCode(t, err, connect.CodeNotFound)

	published := c.publisher.published()
	require.Len(t, published, 2)
	assert.Equal(t, events.ExpenseDeleted, published[1].Type)
	assert.Equal(t, created.ID, published[1].ExpenseID)
}

func TestListParticipants(t *testing.T) {
	c := setupTestServer(t)
	group, ids := createGroup(t, c, "Trip", "Alice", "Bob")
	created := createEqualExpense(t, c, group.ID, "Dinner", "10.01", ids["Bob"])

	resp, err := c.expenses.ListParticipants(context.Background(), connect.NewRequest(&rpc.ListParticipantsRequest{ExpenseID: created.ID}))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Alice": 5, "Bob": 5.01}, sharesByName(resp.Msg.Participants))

	_, err = c.expenses.ListParticipants(context.Background(), connect.NewRequest(&rpc.ListParticipantsRequest{}))
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestListCategories(t *testing.T) {
	c := setupTestServer(t)

	resp, err := c.expenses.ListCategories(context.Background(), connect.NewRequest(&rpc.ListCategoriesRequest{}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Categories, 11)

	for i := 1; i < len(resp.Msg.Categories); i++ {
		assert.Less(t, resp.Msg.Categories[i-1].Name, resp.Msg.Categories[i].Name)
	}
}
