package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/vocalis-api/internal/models"
)

// SQLiteUserRepository implements UserRepository for SQLite/libsql.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository creates a new SQLite user repository.
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = `customer_id, email, first_name, full_name, password_hash,
	created_at, plan_id, contract_id, plan_selected_at`

// Upsert inserts a user or updates email, names and (when set) the password
// hash of an existing row. created_at and plan columns are preserved.
func (r *SQLiteUserRepository) Upsert(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Email = normalizeEmail(user.Email)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (customer_id, email, first_name, full_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(customer_id) DO UPDATE SET
			email = excluded.email,
			first_name = excluded.first_name,
			full_name = excluded.full_name,
			password_hash = CASE WHEN excluded.password_hash = '' THEN users.password_hash ELSE excluded.password_hash END
	`,
		user.CustomerID,
		user.Email,
		user.FirstName,
		user.FullName,
		user.PasswordHash,
		user.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetByCustomerID retrieves a user by billing customer ID.
func (r *SQLiteUserRepository) GetByCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE customer_id = ?`, customerID)
	return scanUser(row)
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email))
	return scanUser(row)
}

// SetPlan records the user's current plan and contract.
func (r *SQLiteUserRepository) SetPlan(ctx context.Context, customerID, planID, contractID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET plan_id = ?, contract_id = ?, plan_selected_at = ?
		WHERE customer_id = ?
	`, planID, contractID, at.UTC().Format(time.RFC3339), customerID)
	if err != nil {
		return fmt.Errorf("failed to set plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of users.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u              models.User
		createdAt      string
		planSelectedAt sql.NullString
	)
	err := row.Scan(
		&u.CustomerID,
		&u.Email,
		&u.FirstName,
		&u.FullName,
		&u.PasswordHash,
		&createdAt,
		&u.PlanID,
		&u.ContractID,
		&planSelectedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if planSelectedAt.Valid {
		if t, err := time.Parse(time.RFC3339, planSelectedAt.String); err == nil {
			u.PlanSelectedAt = &t
		}
	}
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
