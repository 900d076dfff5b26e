package rpc

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

const (
	// SettlementServiceName is the fully-qualified name of the SettlementService service.
	SettlementServiceName = "splitledger.v1.SettlementService"

	SettlementServiceGetGroupSettlementsProcedure = "/splitledger.v1.SettlementService/GetGroupSettlements"
	SettlementServiceGetGroupActivitiesProcedure  = "/splitledger.v1.SettlementService/GetGroupActivities"
)

type Balance struct {
	MemberID  string  `json:"memberId"`
	Name      string  `json:"name"`
	NetAmount float64 `json:"netAmount"` // Positive = owed money, Negative = owes money
}

type Settlement struct {
	FromMemberID string  `json:"fromMemberId"`
	FromName     string  `json:"fromName"`
	ToMemberID   string  `json:"toMemberId"`
	ToName       string  `json:"toName"`
	Amount       float64 `json:"amount"`
}

type GetGroupSettlementsRequest struct {
	GroupID string `json:"groupId"`
}

// GetGroupSettlementsResponse is the settlement view of a group.
// The REST resource returns the same shape inside its envelope.
type GetGroupSettlementsResponse struct {
	Balances        []Balance    `json:"balances"`
	Settlements     []Settlement `json:"settlements"`
	GroupTotal      float64      `json:"groupTotal"`
	AllParticipants []string     `json:"allParticipants"`
}

type ActivityShare struct {
	MemberID   string  `json:"memberId"`
	MemberName string  `json:"memberName"`
	Share      float64 `json:"share"`
}

type Activity struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Amount          float64         `json:"amount"`
	PayerID         string          `json:"payerId"`
	PayerName       string          `json:"payerName"`
	Date            int64           `json:"date"`
	IsReimbursement bool            `json:"isReimbursement"`
	Participants    []ActivityShare `json:"participants"`
}

type GetGroupActivitiesRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupActivitiesResponse struct {
	Expenses []Activity `json:"expenses"`
}

// SettlementServiceHandler is implemented by the settlement service.
type SettlementServiceHandler interface {
	GetGroupSettlements(context.Context, *connect.Request[GetGroupSettlementsRequest]) (*connect.Response[GetGroupSettlementsResponse], error)
	GetGroupActivities(context.Context, *connect.Request[GetGroupActivitiesRequest]) (*connect.Response[GetGroupActivitiesResponse], error)
}

// NewSettlementServiceHandler builds an HTTP handler from the service implementation.
func NewSettlementServiceHandler(svc SettlementServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	getGroupSettlements := connect.NewUnaryHandler(SettlementServiceGetGroupSettlementsProcedure, svc.GetGroupSettlements, opts...)
	getGroupActivities := connect.NewUnaryHandler(SettlementServiceGetGroupActivitiesProcedure, svc.GetGroupActivities, opts...)

	return "/" + SettlementServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SettlementServiceGetGroupSettlementsProcedure:
			getGroupSettlements.ServeHTTP(w, r)
		case SettlementServiceGetGroupActivitiesProcedure:
			getGroupActivities.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// SettlementServiceClient is a client for the splitledger.v1.SettlementService service.
type SettlementServiceClient interface {
	GetGroupSettlements(context.Context, *connect.Request[GetGroupSettlementsRequest]) (*connect.Response[GetGroupSettlementsResponse], error)
	GetGroupActivities(context.Context, *connect.Request[GetGroupActivitiesRequest]) (*connect.Response[GetGroupActivitiesResponse], error)
}

// NewSettlementServiceClient constructs a client for the SettlementService.
func NewSettlementServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SettlementServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &settlementServiceClient{
		getGroupSettlements: connect.NewClient[GetGroupSettlementsRequest, GetGroupSettlementsResponse](httpClient, baseURL+SettlementServiceGetGroupSettlementsProcedure, opts...),
		getGroupActivities:  connect.NewClient[GetGroupActivitiesRequest, GetGroupActivitiesResponse](httpClient, baseURL+SettlementServiceGetGroupActivitiesProcedure, opts...),
	}
}

type settlementServiceClient struct {
	getGroupSettlements *connect.Client[GetGroupSettlementsRequest, GetGroupSettlementsResponse]
	getGroupActivities  *connect.Client[GetGroupActivitiesRequest, GetGroupActivitiesResponse]
}

func (c *settlementServiceClient) GetGroupSettlements(ctx context.Context, req *connect.Request[GetGroupSettlementsRequest]) (*connect.Response[GetGroupSettlementsResponse], error) {
	return c.getGroupSettlements.CallUnary(ctx, req)
}

func (c *settlementServiceClient) GetGroupActivities(ctx context.Context, req *connect.Request[GetGroupActivitiesRequest]) (*connect.Response[GetGroupActivitiesResponse], error) {
	return c.getGroupActivities.CallUnary(ctx, req)
}
