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

const expenseColumns = `id, group_id, title, amount, payer_id, date, category_id,
	is_reimbursement, created_by, created_at, updated_at`

// CreateExpense persists a new expense and its participants.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	now := time.Now().Unix()
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = now
	}
	if expense.UpdatedAt == 0 {
		expense.UpdatedAt = expense.CreatedAt
	}
	if expense.Date == 0 {
		expense.Date = expense.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.Title, expense.Amount.String(), expense.PayerID,
		expense.Date, nullString(expense.CategoryID), expense.IsReimbursement,
		nullString(expense.CreatedBy), expense.CreatedAt, expense.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", mapConstraintErr(err))
	}

	if err := insertParticipants(ctx, tx, expense, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense by ID, including its participants.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?",
		expenseID,
	)
	expense, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: expense %s", storage.ErrNotFound, expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	participants, err := s.ListParticipants(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	expense.Participants = participants

	return expense, nil
}

// ListExpensesByGroup returns a group's expenses with participants, most recent first.
// An unknown group yields storage.ErrNotFound rather than an empty list.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE id = ?", groupID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: group %s", storage.ErrNotFound, groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check group: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE group_id = ? ORDER BY date DESC, created_at DESC, rowid DESC",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	byID := make(map[string]*models.Expense)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
		byID[expense.ID] = expense
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	partRows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.expense_id, p.member_id, p.share, p.created_at
		 FROM participants p JOIN expenses e ON e.id = p.expense_id
		 WHERE e.group_id = ? ORDER BY p.rowid`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer partRows.Close()

	for partRows.Next() {
		p, err := scanParticipant(partRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		if expense, ok := byID[p.ExpenseID]; ok {
			expense.Participants = append(expense.Participants, p)
		}
	}
	if err := partRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return expenses, nil
}

// UpdateExpense updates an expense and replaces its participants.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	now := time.Now().Unix()
	expense.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE expenses SET title = ?, amount = ?, payer_id = ?, date = ?, category_id = ?,
		 is_reimbursement = ?, updated_at = ?
		 WHERE id = ?`,
		expense.Title, expense.Amount.String(), expense.PayerID, expense.Date,
		nullString(expense.CategoryID), expense.IsReimbursement, expense.UpdatedAt, expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", mapConstraintErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: expense %s", storage.ErrNotFound, expense.ID)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM participants WHERE expense_id = ?", expense.ID); err != nil {
		return fmt.Errorf("failed to clear participants: %w", err)
	}
	if err := insertParticipants(ctx, tx, expense, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense. Participants cascade.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: expense %s", storage.ErrNotFound, expenseID)
	}
	return nil
}

// ListParticipants returns the participants of one expense in insertion order.
func (s *SQLiteStore) ListParticipants(ctx context.Context, expenseID string) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, expense_id, member_id, share, created_at FROM participants WHERE expense_id = ? ORDER BY rowid",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}

func insertParticipants(ctx context.Context, tx *sql.Tx, expense *models.Expense, now int64) error {
	for i := range expense.Participants {
		p := &expense.Participants[i]
		p.ID = uuid.New().String()
		p.ExpenseID = expense.ID
		if p.CreatedAt == 0 {
			p.CreatedAt = now
		}

		_, err := tx.ExecContext(ctx,
			"INSERT INTO participants (id, expense_id, member_id, share, created_at) VALUES (?, ?, ?, ?, ?)",
			p.ID, p.ExpenseID, p.MemberID, p.Share.String(), p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant %s: %w", p.MemberID, mapConstraintErr(err))
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	expense := &models.Expense{}
	var categoryID, createdBy sql.NullString
	err := row.Scan(
		&expense.ID,
		&expense.GroupID,
		&expense.Title,
		&expense.Amount,
		&expense.PayerID,
		&expense.Date,
		&categoryID,
		&expense.IsReimbursement,
		&createdBy,
		&expense.CreatedAt,
		&expense.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	expense.CategoryID = categoryID.String
	expense.CreatedBy = createdBy.String
	return expense, nil
}

func scanParticipant(row rowScanner) (models.Participant, error) {
	var p models.Participant
	err := row.Scan(&p.ID, &p.ExpenseID, &p.MemberID, &p.Share, &p.CreatedAt)
	return p, err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
