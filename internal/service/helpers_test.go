package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/settlement"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

const testSecret = "service-test-secret"

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.ExpenseEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *events.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) published() []*events.ExpenseEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*events.ExpenseEvent(nil), p.events...)
}

type testClients struct {
	groups      rpc.GroupServiceClient
	expenses    rpc.ExpenseServiceClient
	settlements rpc.SettlementServiceClient
	auth        rpc.AuthServiceClient
	publisher   *recordingPublisher
	jwt         *auth.JWTManager
}

// setupTestServer serves every Connect service over a temp SQLite database.
// Requests are authenticated optionally, like the default server config.
func setupTestServer(t *testing.T) *testClients {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	jwtManager := auth.NewJWTManager(testSecret, time.Hour)
	publisher := &recordingPublisher{}
	interceptors := connect.WithInterceptors(middleware.OptionalAuth(jwtManager), middleware.LoggingInterceptor())

	mux := http.NewServeMux()
	mux.Handle(rpc.NewGroupServiceHandler(NewGroupService(store), interceptors))
	mux.Handle(rpc.NewExpenseServiceHandler(NewExpenseService(store, publisher), interceptors))
	mux.Handle(rpc.NewSettlementServiceHandler(NewSettlementService(settlement.NewService(store, store)), interceptors))
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	mux.Handle(rpc.NewAuthServiceHandler(NewAuthService(authenticator, jwtManager), connect.WithInterceptors(middleware.LoggingInterceptor())))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testClients{
		groups:      rpc.NewGroupServiceClient(http.DefaultClient, server.URL),
		expenses:    rpc.NewExpenseServiceClient(http.DefaultClient, server.URL),
		settlements: rpc.NewSettlementServiceClient(http.DefaultClient, server.URL),
		auth:        rpc.NewAuthServiceClient(http.DefaultClient, server.URL),
		publisher:   publisher,
		jwt:         jwtManager,
	}
}

// createGroup creates a group and returns it with member IDs keyed by name.
func createGroup(t *testing.T, c *testClients, name string, members ...string) (*rpc.Group, map[string]string) {
	t.Helper()

	resp, err := c.groups.CreateGroup(context.Background(), connect.NewRequest(&rpc.CreateGroupRequest{
		Name:    name,
		Members: members,
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	ids := make(map[string]string, len(resp.Msg.Group.Members))
	for _, m := range resp.Msg.Group.Members {
		ids[m.Name] = m.ID
	}
	return resp.Msg.Group, ids
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Errorf("code: expected %v, got %v (%v)", want, got, err)
	}
}
