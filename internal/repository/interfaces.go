// Package repository defines data access for the local user store.
// Billing state is never stored here; the provider is the source of truth.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmylchreest/vocalis-api/internal/models"
)

// Repository errors.
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserRepository defines methods for user data access.
type UserRepository interface {
	// Upsert inserts a user or updates the profile fields of an existing one.
	Upsert(ctx context.Context, user *models.User) error
	GetByCustomerID(ctx context.Context, customerID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	SetPlan(ctx context.Context, customerID, planID, contractID string, at time.Time) error
	Count(ctx context.Context) (int, error)
}

// Repositories holds all repository instances.
type Repositories struct {
	User UserRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		User: NewSQLiteUserRepository(db),
	}
}
