// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness or
	// reference constraint (duplicate member name, removing a member who
	// still appears on expenses, duplicate email).
	ErrConflict = errors.New("conflict")
)

// GroupStore persists groups and their rosters.
type GroupStore interface {
	// CreateGroup persists a new group with its members.
	// Missing IDs and timestamps are filled in by the store.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its members in join order.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroups returns every group, newest first.
	ListGroups(ctx context.Context) ([]*models.Group, error)

	// UpdateGroup saves the group fields and reconciles the roster by member ID:
	// members with a known ID are renamed, members without an ID are added and
	// stored members missing from group.Members are removed.
	UpdateGroup(ctx context.Context, group *models.Group) error

	// DeleteGroup removes a group together with its members and expenses.
	DeleteGroup(ctx context.Context, groupID string) error
}

// ExpenseStore persists expenses and their participant shares.
type ExpenseStore interface {
	// CreateExpense persists a new expense with its participants.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves an expense with its participants.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpensesByGroup returns a group's expenses, most recent first.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)

	// UpdateExpense replaces an expense and its participant list.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense and its participants.
	DeleteExpense(ctx context.Context, expenseID string) error

	// ListParticipants returns the shares recorded for one expense.
	ListParticipants(ctx context.Context, expenseID string) ([]models.Participant, error)
}

// CategoryStore lists expense categories.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// UserStore persists registered accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Store defines the full set of storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	GroupStore
	ExpenseStore
	CategoryStore
	UserStore

	// Close releases any resources held by the store.
	Close() error
}
