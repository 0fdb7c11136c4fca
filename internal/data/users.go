package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

const userColumns = `id, created_at, updated_at, name, email, password_hash, is_admin,
	reset_password_token, reset_password_expire, version`

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

func (s *Storage) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u User
	err := s.db.GetContext(ctx, &u, query, args...)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, nil
		default:
			return nil, err
		}
	}
	return &u, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE email = $1`
	return s.getUser(ctx, query, NormalizeEmail(email))
}

func (s *Storage) GetUserByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE id = $1`
	return s.getUser(ctx, query, id)
}

// GetUserByResetToken looks up the user holding an unexpired reset token with the given hash.
func (s *Storage) GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error) {
	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE reset_password_token = $1 AND reset_password_expire > $2`
	return s.getUser(ctx, query, tokenHash, now)
}

func (s *Storage) InsertUser(ctx context.Context, u *User) error {
	query := `INSERT INTO users (name, email, password_hash, is_admin)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id, created_at, updated_at, version`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	u.Email = NormalizeEmail(u.Email)
	row := s.db.QueryRowxContext(ctx, query, u.Name, u.Email, u.PasswordHash, u.IsAdmin)
	err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// UpdateUser writes every mutable column, guarded by the record version.
func (s *Storage) UpdateUser(ctx context.Context, u *User) error {
	query := `UPDATE users
			  SET name = $1, email = $2, password_hash = $3, is_admin = $4,
			      reset_password_token = $5, reset_password_expire = $6,
			      updated_at = now(), version = version + 1
			  WHERE id = $7 AND version = $8
			  RETURNING updated_at, version`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	u.Email = NormalizeEmail(u.Email)
	row := s.db.QueryRowxContext(ctx, query,
		u.Name, u.Email, u.PasswordHash, u.IsAdmin,
		u.ResetPasswordToken, u.ResetPasswordExpire,
		u.ID, u.Version,
	)
	err := row.Scan(&u.UpdatedAt, &u.Version)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrDuplicateEmail
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		default:
			return err
		}
	}
	return nil
}
