package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) UserByEmail(ctx context.Context, email string) (User, error) {
	var (
		u    User
		role string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, email, role, password_hash
		FROM users WHERE lower(email)=lower($1)`, email).
		Scan(&u.ID, &u.Name, &u.Email, &role, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	u.Role = Role(role)
	return u, nil
}

// EnsureAdmin seeds the first admin account when the users table is empty.
func (r *Repo) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	tag, err := r.DB.Exec(ctx, `
		INSERT INTO users(name, email, password_hash, role)
		SELECT $1, $2, $3, 'admin'
		WHERE NOT EXISTS (SELECT 1 FROM users)`, name, email, hash)
	if err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
