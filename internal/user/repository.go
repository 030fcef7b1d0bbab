package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/usergate/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// pqUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pqUniqueViolation = "23505"

// Repository handles user data persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores a new user row. The id must already be assigned.
func (r *Repository) Insert(ctx context.Context, u *User) error {
	_, err := r.db.NewInsert().
		Model(mapModelToDBUser(u)).
		Exec(ctx)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Update writes the profile columns of the row identified by u.ID. The
// blocked and deleted flags only change through SetBlocked and MarkDeleted.
func (r *Repository) Update(ctx context.Context, u *User) error {
	result, err := r.db.NewUpdate().
		Model(mapModelToDBUser(u)).
		Column("email", "name", "password_hash", "last_login_at").
		WherePK().
		Exec(ctx)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// TouchLastLogin sets last_login_at for an active account. A row that is
// missing, blocked or deleted at write time yields ErrNotFound.
func (r *Repository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("last_login_at = ?", at.UTC()).
		Where("id = ?", id).
		Where("is_blocked = ?", false).
		Where("is_deleted = ?", false).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to record login time: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// FindByEmail retrieves a user by exact email, deleted rows included.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("email = ?", email).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// FindByID retrieves a user by ID
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// ExistsByEmail reports whether any row, in any status, holds the email.
func (r *Repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*database.User)(nil)).
		Where("email = ?", email).
		Exists(ctx)

	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}

	return exists, nil
}

// ListActive returns every non-deleted user, most recent login first.
func (r *Repository) ListActive(ctx context.Context) ([]*User, error) {
	var rows []database.User
	err := r.db.NewSelect().
		Model(&rows).
		Where("is_deleted = ?", false).
		OrderExpr("last_login_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*User, 0, len(rows))
	for i := range rows {
		users = append(users, mapDBUserToModel(&rows[i]))
	}

	return users, nil
}

// SetBlocked sets the blocked flag on the given ids and returns how many rows changed.
func (r *Repository) SetBlocked(ctx context.Context, ids []uuid.UUID, blocked bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("is_blocked = ?", blocked).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)

	if err != nil {
		return 0, fmt.Errorf("failed to set blocked flag: %w", err)
	}

	return result.RowsAffected()
}

// MarkDeleted soft-deletes the given ids. Rows are never removed.
func (r *Repository) MarkDeleted(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("is_deleted = ?", true).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)

	if err != nil {
		return 0, fmt.Errorf("failed to mark users deleted: %w", err)
	}

	return result.RowsAffected()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}

	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:           dbu.ID,
		Email:        dbu.Email,
		Name:         dbu.Name,
		PasswordHash: dbu.PasswordHash,
		CreatedAt:    dbu.CreatedAt.UTC(),
		LastLoginAt:  dbu.LastLoginAt.UTC(),
		IsBlocked:    dbu.IsBlocked,
		IsDeleted:    dbu.IsDeleted,
	}
}

func mapModelToDBUser(u *User) *database.User {
	return &database.User{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UTC(),
		LastLoginAt:  u.LastLoginAt.UTC(),
		IsBlocked:    u.IsBlocked,
		IsDeleted:    u.IsDeleted,
	}
}
