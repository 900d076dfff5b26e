package service

import (
	"context"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/settlement"
)

// Ensure SettlementService implements the Connect handler interface
var _ rpc.SettlementServiceHandler = (*SettlementService)(nil)

// SettlementService implements the Connect SettlementService.
type SettlementService struct {
	settlements *settlement.Service
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(settlements *settlement.Service) *SettlementService {
	return &SettlementService{settlements: settlements}
}

// GetGroupSettlements returns balances and the transfers that settle a group.
func (s *SettlementService) GetGroupSettlements(ctx context.Context, req *connect.Request[rpc.GetGroupSettlementsRequest]) (*connect.Response[rpc.GetGroupSettlementsResponse], error) {
	if req.Msg.GroupID == "" {
		return nil, fail(ctx, "GetGroupSettlements", invalid("groupId is required"))
	}

	result, err := s.settlements.GroupSettlement(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, fail(ctx, "GetGroupSettlements", err, "group_id", req.Msg.GroupID)
	}

	return connect.NewResponse(SettlementResponse(result)), nil
}

// GetGroupActivities returns the group's expenses as an activity feed.
func (s *SettlementService) GetGroupActivities(ctx context.Context, req *connect.Request[rpc.GetGroupActivitiesRequest]) (*connect.Response[rpc.GetGroupActivitiesResponse], error) {
	if req.Msg.GroupID == "" {
		return nil, fail(ctx, "GetGroupActivities", invalid("groupId is required"))
	}

	activities, err := s.settlements.GroupActivities(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, fail(ctx, "GetGroupActivities", err, "group_id", req.Msg.GroupID)
	}

	return connect.NewResponse(ActivitiesResponse(activities)), nil
}
