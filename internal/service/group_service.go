package service

import (
	"context"
	"regexp"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/logging"
)

const maxNameLength = 100

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// Ensure GroupService implements the Connect handler interface
var _ rpc.GroupServiceHandler = (*GroupService)(nil)

// GroupService implements the Connect GroupService
type GroupService struct {
	store storage.GroupStore
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.GroupStore) *GroupService {
	return &GroupService{store: store}
}

// CreateGroup creates a new group from a name and a list of member names.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[rpc.CreateGroupRequest]) (*connect.Response[rpc.CreateGroupResponse], error) {
	logger := logging.FromContext(ctx)
	logger.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.Members),
	)

	members := make([]models.Member, 0, len(req.Msg.Members))
	for _, name := range req.Msg.Members {
		members = append(members, models.Member{Name: strings.TrimSpace(name)})
	}

	group := &models.Group{
		Name:        strings.TrimSpace(req.Msg.Name),
		Description: strings.TrimSpace(req.Msg.Description),
		Currency:    normalizeCurrency(req.Msg.Currency),
		Members:     members,
	}
	if err := validateGroup(group); err != nil {
		return nil, fail(ctx, "CreateGroup", err)
	}

	// Save to storage (generates IDs and timestamps)
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, fail(ctx, "CreateGroup", err)
	}

	logger.Info("Group created", "group_id", group.ID)

	return connect.NewResponse(&rpc.CreateGroupResponse{Group: groupToRPC(group)}), nil
}

// GetGroup retrieves a group by ID.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[rpc.GetGroupRequest]) (*connect.Response[rpc.GetGroupResponse], error) {
	if req.Msg.GroupID == "" {
		return nil, fail(ctx, "GetGroup", invalid("groupId is required"))
	}

	group, err := s.store.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, fail(ctx, "GetGroup", err, "group_id", req.Msg.GroupID)
	}

	return connect.NewResponse(&rpc.GetGroupResponse{Group: groupToRPC(group)}), nil
}

// ListGroups retrieves all groups.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[rpc.ListGroupsRequest]) (*connect.Response[rpc.ListGroupsResponse], error) {
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return nil, fail(ctx, "ListGroups", err)
	}

	out := make([]*rpc.Group, 0, len(groups))
	for _, group := range groups {
		out = append(out, groupToRPC(group))
	}

	logging.FromContext(ctx).Debug("ListGroups successful", "count", len(out))

	return connect.NewResponse(&rpc.ListGroupsResponse{Groups: out}), nil
}

// UpdateGroup updates a group's fields and reconciles its roster by member ID.
func (s *GroupService) UpdateGroup(ctx context.Context, req *connect.Request[rpc.UpdateGroupRequest]) (*connect.Response[rpc.UpdateGroupResponse], error) {
	logger := logging.FromContext(ctx)
	logger.Info("UpdateGroup request received",
		"group_id", req.Msg.GroupID,
		"name", req.Msg.Name,
		"members_count", len(req.Msg.Members),
	)

	if req.Msg.GroupID == "" {
		return nil, fail(ctx, "UpdateGroup", invalid("groupId is required"))
	}

	members := make([]models.Member, 0, len(req.Msg.Members))
	for _, m := range req.Msg.Members {
		members = append(members, models.Member{ID: m.ID, Name: strings.TrimSpace(m.Name)})
	}

	group := &models.Group{
		ID:          req.Msg.GroupID,
		Name:        strings.TrimSpace(req.Msg.Name),
		Description: strings.TrimSpace(req.Msg.Description),
		Currency:    normalizeCurrency(req.Msg.Currency),
		Members:     members,
	}
	if err := validateGroup(group); err != nil {
		return nil, fail(ctx, "UpdateGroup", err, "group_id", group.ID)
	}

	if err := s.store.UpdateGroup(ctx, group); err != nil {
		return nil, fail(ctx, "UpdateGroup", err, "group_id", group.ID)
	}

	// Fetch updated group to get CreatedAt and join times
	updated, err := s.store.GetGroup(ctx, group.ID)
	if err != nil {
		return nil, fail(ctx, "UpdateGroup", err, "group_id", group.ID)
	}

	logger.Info("Group updated", "group_id", group.ID)

	return connect.NewResponse(&rpc.UpdateGroupResponse{Group: groupToRPC(updated)}), nil
}

// DeleteGroup removes a group with all of its expenses.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[rpc.DeleteGroupRequest]) (*connect.Response[rpc.DeleteGroupResponse], error) {
	if req.Msg.GroupID == "" {
		return nil, fail(ctx, "DeleteGroup", invalid("groupId is required"))
	}

	if err := s.store.DeleteGroup(ctx, req.Msg.GroupID); err != nil {
		return nil, fail(ctx, "DeleteGroup", err, "group_id", req.Msg.GroupID)
	}

	logging.FromContext(ctx).Info("Group deleted", "group_id", req.Msg.GroupID)

	return connect.NewResponse(&rpc.DeleteGroupResponse{}), nil
}

func normalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return models.DefaultCurrency
	}
	return code
}

func validateGroup(g *models.Group) error {
	if g.Name == "" {
		return invalid("group name is required")
	}
	if len(g.Name) > maxNameLength {
		return invalid("group name must be at most %d characters", maxNameLength)
	}
	if !currencyCode.MatchString(g.Currency) {
		return invalid("currency %q must be a 3-letter code", g.Currency)
	}
	if len(g.Members) == 0 {
		return invalid("a group needs at least one member")
	}
	if len(g.Members) > models.MaxGroupMembers {
		return invalid("a group can have at most %d members", models.MaxGroupMembers)
	}

	seen := make(map[string]bool, len(g.Members))
	for _, m := range g.Members {
		if m.Name == "" {
			return invalid("member names must not be empty")
		}
		if len(m.Name) > maxNameLength {
			return invalid("member name %q is too long", m.Name)
		}
		key := strings.ToLower(m.Name)
		if seen[key] {
			return invalid("duplicate member name %q", m.Name)
		}
		seen[key] = true
	}
	return nil
}
