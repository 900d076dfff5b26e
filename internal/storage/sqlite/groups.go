package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// CreateGroup persists a new group and its roster.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	now := time.Now().Unix()
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = now
	}
	if group.UpdatedAt == 0 {
		group.UpdatedAt = group.CreatedAt
	}
	if group.Currency == "" {
		group.Currency = models.DefaultCurrency
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (id, name, description, currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		group.ID, group.Name, group.Description, group.Currency, group.CreatedAt, group.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", mapConstraintErr(err))
	}

	for i := range group.Members {
		if err := insertMember(ctx, tx, group.ID, &group.Members[i], now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID, including its members.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, currency, created_at, updated_at
		 FROM groups WHERE id = ?`,
		groupID,
	).Scan(&group.ID, &group.Name, &group.Description, &group.Currency, &group.CreatedAt, &group.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: group %s", storage.ErrNotFound, groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	members, err := s.listMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	group.Members = members

	return group, nil
}

// ListGroups returns all groups with their members, newest first.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, currency, created_at, updated_at
		 FROM groups ORDER BY created_at DESC, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	byID := make(map[string]*models.Group)
	for rows.Next() {
		group := &models.Group{}
		if err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.Currency, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
		byID[group.ID] = group
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	memberRows, err := s.db.QueryContext(ctx,
		"SELECT id, group_id, name, joined_at FROM members ORDER BY joined_at, rowid",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var m models.Member
		if err := memberRows.Scan(&m.ID, &m.GroupID, &m.Name, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if group, ok := byID[m.GroupID]; ok {
			group.Members = append(group.Members, m)
		}
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return groups, nil
}

// UpdateGroup saves group fields and reconciles the roster by member ID.
func (s *SQLiteStore) UpdateGroup(ctx context.Context, group *models.Group) error {
	now := time.Now().Unix()
	group.UpdatedAt = now
	if group.Currency == "" {
		group.Currency = models.DefaultCurrency
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE groups SET name = ?, description = ?, currency = ?, updated_at = ? WHERE id = ?",
		group.Name, group.Description, group.Currency, group.UpdatedAt, group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: group %s", storage.ErrNotFound, group.ID)
	}

	existing := make(map[string]bool)
	rows, err := tx.QueryContext(ctx, "SELECT id FROM members WHERE group_id = ?", group.ID)
	if err != nil {
		return fmt.Errorf("failed to get members: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan member: %w", err)
		}
		existing[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate members: %w", err)
	}

	// Removals first so a freed-up name can be reused in the same update
	keep := make(map[string]bool, len(group.Members))
	for _, m := range group.Members {
		if m.ID != "" {
			keep[m.ID] = true
		}
	}
	for id := range existing {
		if keep[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM members WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to remove member %s: %w", id, mapConstraintErr(err))
		}
	}

	// Kept members move to their id as a placeholder name before taking their
	// final name, so swaps and rotations within the roster do not collide.
	for _, m := range group.Members {
		if m.ID == "" {
			continue
		}
		if !existing[m.ID] {
			return fmt.Errorf("%w: member %s in group %s", storage.ErrNotFound, m.ID, group.ID)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE members SET name = id WHERE id = ?", m.ID); err != nil {
			return fmt.Errorf("failed to rename member %s: %w", m.ID, mapConstraintErr(err))
		}
	}
	for i := range group.Members {
		m := &group.Members[i]
		if m.ID == "" {
			continue
		}
		m.GroupID = group.ID
		if _, err := tx.ExecContext(ctx, "UPDATE members SET name = ? WHERE id = ?", m.Name, m.ID); err != nil {
			return fmt.Errorf("failed to rename member %s: %w", m.ID, mapConstraintErr(err))
		}
	}

	for i := range group.Members {
		m := &group.Members[i]
		if m.ID != "" {
			continue
		}
		if err := insertMember(ctx, tx, group.ID, m, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteGroup removes a group. Members, expenses and participants cascade.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: group %s", storage.ErrNotFound, groupID)
	}
	return nil
}

func (s *SQLiteStore) listMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, group_id, name, joined_at FROM members WHERE group_id = ? ORDER BY joined_at, rowid",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.GroupID, &m.Name, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

func insertMember(ctx context.Context, tx *sql.Tx, groupID string, m *models.Member, now int64) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.JoinedAt == 0 {
		m.JoinedAt = now
	}
	m.GroupID = groupID

	_, err := tx.ExecContext(ctx,
		"INSERT INTO members (id, group_id, name, joined_at) VALUES (?, ?, ?, ?)",
		m.ID, groupID, m.Name, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert member %q: %w", m.Name, mapConstraintErr(err))
	}
	return nil
}
