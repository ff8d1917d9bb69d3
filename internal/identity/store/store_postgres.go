package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"zimmet/internal/identity/models"
	"zimmet/internal/platform/postgres"
	id "zimmet/pkg/domain"
	"zimmet/pkg/platform/sentinel"
)

// PostgresUserStore persists users in PostgreSQL.
type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

const userColumns = `id, full_name, email, department, role, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u          models.User
		userID     uuid.UUID
		department sql.NullString
		role       string
	)
	if err := row.Scan(&userID, &u.FullName, &u.Email, &department, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.ID = id.UserID(userID)
	u.Department = department.String
	u.Role = id.Role(role)
	return &u, nil
}

func (s *PostgresUserStore) Create(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID.String(), user.FullName, models.NormalizeEmail(user.Email),
		sql.NullString{String: user.Department, Valid: user.Department != ""},
		user.Role.String(), user.IsActive, user.CreatedAt, user.UpdatedAt)
	if postgres.IsUniqueViolation(err, "") {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) Update(ctx context.Context, user *models.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET full_name = $2, email = $3, department = $4, role = $5, is_active = $6, updated_at = $7
		WHERE id = $1
	`, user.ID.String(), user.FullName, models.NormalizeEmail(user.Email),
		sql.NullString{String: user.Department, Valid: user.Department != ""},
		user.Role.String(), user.IsActive, user.UpdatedAt)
	if postgres.IsUniqueViolation(err, "") {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresUserStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.findOne(ctx, `WHERE id = $1`, userID.String())
}

func (s *PostgresUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, `WHERE lower(email) = $1`, models.NormalizeEmail(email))
}

func (s *PostgresUserStore) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *PostgresUserStore) FindByIDs(ctx context.Context, ids []id.UserID) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, u := range ids {
		raw[i] = u.String()
	}
	return s.query(ctx, `WHERE id = ANY($1::uuid[]) ORDER BY full_name, email`, pq.Array(raw))
}

func (s *PostgresUserStore) List(ctx context.Context, activeOnly bool) ([]*models.User, error) {
	if activeOnly {
		return s.query(ctx, `WHERE is_active ORDER BY full_name, email`)
	}
	return s.query(ctx, `ORDER BY full_name, email`)
}

func (s *PostgresUserStore) query(ctx context.Context, tail string, args ...any) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}
