package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/internal/settlement"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

type testEnv struct {
	server *httptest.Server
	store  *sqlite.SQLiteStore
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)

	srv := NewServer(settlement.NewService(store, store), store, store)
	srv.EnableMetrics("/metrics")
	srv.Mount(rpc.NewGroupServiceHandler(service.NewGroupService(store)))

	server := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})
	return &testEnv{server: server, store: store}
}

// seedTrip stores Alice paying 90 split three ways.
func seedTrip(t *testing.T, store *sqlite.SQLiteStore) (*models.Group, map[string]string) {
	t.Helper()
	ctx := context.Background()

	group := &models.Group{
		Name:    "Trip",
		Members: []models.Member{{Name: "Alice"}, {Name: "Bob"}, {Name: "Charlie"}},
	}
	require.NoError(t, store.CreateGroup(ctx, group))

	ids := make(map[string]string)
	var participants []models.Participant
	for _, m := range group.Members {
		ids[m.Name] = m.ID
		participants = append(participants, models.Participant{MemberID: m.ID, Share: decimal.NewFromInt(30)})
	}
	require.NoError(t, store.CreateExpense(ctx, &models.Expense{
		GroupID:      group.ID,
		Title:        "Groceries",
		Amount:       decimal.NewFromInt(90),
		PayerID:      ids["Alice"],
		Date:         1700000000,
		Participants: participants,
	}))
	return group, ids
}

func get(t *testing.T, url string, out any) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type settlementsEnvelope struct {
	Success bool                            `json:"success"`
	Message string                          `json:"message"`
	Data    rpc.GetGroupSettlementsResponse `json:"data"`
	Error   *apiError                       `json:"error"`
}

func TestGroupSettlements(t *testing.T) {
	env := setupServer(t)
	group, ids := seedTrip(t, env.store)

	var body settlementsEnvelope
	status := get(t, env.server.URL+"/api/groups/"+group.ID+"/settlements", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	assert.Equal(t, "Group settlements calculated successfully", body.Message)
	assert.Equal(t, 90.0, body.Data.GroupTotal)
	require.Len(t, body.Data.Balances, 3)
	assert.Equal(t, rpc.Balance{MemberID: ids["Alice"], Name: "Alice", NetAmount: 60}, body.Data.Balances[0])
	assert.Equal(t, []rpc.Settlement{
		{FromMemberID: ids["Bob"], FromName: "Bob", ToMemberID: ids["Alice"], ToName: "Alice", Amount: 30},
		{FromMemberID: ids["Charlie"], FromName: "Charlie", ToMemberID: ids["Alice"], ToName: "Alice", Amount: 30},
	}, body.Data.Settlements)
}

func TestGroupSettlements_NotFound(t *testing.T) {
	env := setupServer(t)

	var body settlementsEnvelope
	status := get(t, env.server.URL+"/api/groups/missing/settlements", &body)

	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.Equal(t, http.StatusNotFound, body.Error.Status)
}

func TestGroupActivities(t *testing.T) {
	env := setupServer(t)
	group, _ := seedTrip(t, env.store)

	var body struct {
		Success bool                           `json:"success"`
		Data    rpc.GetGroupActivitiesResponse `json:"data"`
	}
	status := get(t, env.server.URL+"/api/groups/"+group.ID+"/activities", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	require.Len(t, body.Data.Expenses, 1)
	assert.Equal(t, "Groceries", body.Data.Expenses[0].Title)
	assert.Equal(t, "Alice", body.Data.Expenses[0].PayerName)
	assert.Len(t, body.Data.Expenses[0].Participants, 3)
}

func TestCategories(t *testing.T) {
	env := setupServer(t)

	var list struct {
		Success bool          `json:"success"`
		Data    []categoryDTO `json:"data"`
	}
	status := get(t, env.server.URL+"/api/categories", &list)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, list.Data, len(models.DefaultCategories))

	var one struct {
		Data categoryDTO `json:"data"`
	}
	status = get(t, env.server.URL+"/api/categories/"+list.Data[0].ID, &one)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, list.Data[0], one.Data)

	var missing settlementsEnvelope
	status = get(t, env.server.URL+"/api/categories/missing", &missing)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Category not found", missing.Error.Message)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("disk on fire") }

func TestHealth(t *testing.T) {
	env := setupServer(t)

	var body map[string]any
	assert.Equal(t, http.StatusOK, get(t, env.server.URL+"/health", &body))
	assert.Equal(t, "ok", body["status"])

	down := httptest.NewServer(NewServer(nil, nil, failingPinger{}).Handler())
	defer down.Close()

	body = nil
	assert.Equal(t, http.StatusServiceUnavailable, get(t, down.URL+"/health", &body))
	assert.Equal(t, "down", body["status"])
}

func TestMetrics(t *testing.T) {
	env := setupServer(t)

	resp, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "splitledger_settlement_residual_members")
}

func TestMountedConnectService(t *testing.T) {
	env := setupServer(t)
	client := rpc.NewGroupServiceClient(http.DefaultClient, env.server.URL)

	created, err := client.CreateGroup(context.Background(), connect.NewRequest(&rpc.CreateGroupRequest{
		Name:    "Flat",
		Members: []string{"Alice", "Bob"},
	}))
	require.NoError(t, err)

	got, err := client.GetGroup(context.Background(), connect.NewRequest(&rpc.GetGroupRequest{GroupID: created.Msg.Group.ID}))
	require.NoError(t, err)
	assert.Equal(t, "Flat", got.Msg.Group.Name)

	resp, err := http.Get(env.server.URL + "/api/groups/" + created.Msg.Group.ID + "/settlements")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequireAuth(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	defer store.Close()

	jwtManager := auth.NewJWTManager("api-test-secret-0123", time.Hour)
	srv := NewServer(settlement.NewService(store, store), store, store)
	srv.RequireAuth(jwtManager)
	server := httptest.NewServer(srv.Handler())
	defer server.Close()

	var body settlementsEnvelope
	assert.Equal(t, http.StatusUnauthorized, get(t, server.URL+"/api/categories", &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)

	// Health stays public
	assert.Equal(t, http.StatusOK, get(t, server.URL+"/health", nil))

	token, err := jwtManager.Generate(&models.User{ID: "user-1", Email: "alice@example.com"})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/categories", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
