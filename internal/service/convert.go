package service

import (
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/settlement"
)

func groupToRPC(g *models.Group) *rpc.Group {
	members := make([]rpc.Member, 0, len(g.Members))
	for _, m := range g.Members {
		members = append(members, rpc.Member{ID: m.ID, Name: m.Name, JoinedAt: m.JoinedAt})
	}
	return &rpc.Group{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Currency:    g.Currency,
		Members:     members,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func participantsToRPC(participants []models.Participant, names map[string]string) []rpc.Participant {
	out := make([]rpc.Participant, 0, len(participants))
	for _, p := range participants {
		out = append(out, rpc.Participant{
			ID:         p.ID,
			MemberID:   p.MemberID,
			MemberName: names[p.MemberID],
			Share:      rpc.Money(p.Share),
		})
	}
	return out
}

func expenseToRPC(e *models.Expense, names map[string]string) *rpc.Expense {
	return &rpc.Expense{
		ID:              e.ID,
		GroupID:         e.GroupID,
		Title:           e.Title,
		Amount:          rpc.Money(e.Amount),
		PayerID:         e.PayerID,
		PayerName:       names[e.PayerID],
		Date:            e.Date,
		CategoryID:      e.CategoryID,
		IsReimbursement: e.IsReimbursement,
		Participants:    participantsToRPC(e.Participants, names),
		CreatedBy:       e.CreatedBy,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func memberNames(g *models.Group) map[string]string {
	names := make(map[string]string, len(g.Members))
	for _, m := range g.Members {
		names[m.ID] = m.Name
	}
	return names
}

// SettlementResponse renders a settlement result for the wire.
// Both the Connect service and the REST resource use it.
func SettlementResponse(r *settlement.Result) *rpc.GetGroupSettlementsResponse {
	resp := &rpc.GetGroupSettlementsResponse{
		Balances:        make([]rpc.Balance, 0, len(r.Balances)),
		Settlements:     make([]rpc.Settlement, 0, len(r.Settlements)),
		GroupTotal:      rpc.Money(r.GroupTotal),
		AllParticipants: append([]string{}, r.AllParticipants...),
	}
	for _, b := range r.Balances {
		resp.Balances = append(resp.Balances, rpc.Balance{
			MemberID:  b.MemberID,
			Name:      b.Name,
			NetAmount: rpc.Money(b.NetAmount),
		})
	}
	for _, s := range r.Settlements {
		resp.Settlements = append(resp.Settlements, rpc.Settlement{
			FromMemberID: s.FromMemberID,
			FromName:     s.FromName,
			ToMemberID:   s.ToMemberID,
			ToName:       s.ToName,
			Amount:       rpc.Money(s.Amount),
		})
	}
	return resp
}

// ActivitiesResponse renders a group's activity feed for the wire.
func ActivitiesResponse(activities []settlement.Activity) *rpc.GetGroupActivitiesResponse {
	resp := &rpc.GetGroupActivitiesResponse{Expenses: make([]rpc.Activity, 0, len(activities))}
	for _, a := range activities {
		shares := make([]rpc.ActivityShare, 0, len(a.Participants))
		for _, p := range a.Participants {
			shares = append(shares, rpc.ActivityShare{
				MemberID:   p.MemberID,
				MemberName: p.MemberName,
				Share:      rpc.Money(p.Share),
			})
		}
		resp.Expenses = append(resp.Expenses, rpc.Activity{
			ID:              a.ID,
			Title:           a.Title,
			Amount:          rpc.Money(a.Amount),
			PayerID:         a.PayerID,
			PayerName:       a.PayerName,
			Date:            a.Date,
			IsReimbursement: a.IsReimbursement,
			Participants:    shares,
		})
	}
	return resp
}
