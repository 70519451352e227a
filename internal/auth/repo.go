package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"timetrack/internal/store"
)

// Admin is a back-office user allowed to mutate the roster and run batch
// operations.
type Admin struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Repository persists admin users.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// GetByUsername fetches one admin.
func (r *Repository) GetByUsername(ctx context.Context, username string) (Admin, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(
		`SELECT id, username, password_hash, created_at FROM admins WHERE username = ?`), username)
	var a Admin
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Admin{}, store.ErrNotFound
	}
	return a, err
}

// Create inserts a new admin with a hashed password.
func (r *Repository) Create(ctx context.Context, username, password string) (Admin, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return Admin{}, err
	}
	a := Admin{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO admins (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)
	`), a.ID, a.Username, a.PasswordHash, a.CreatedAt)
	if err != nil {
		if store.IsDuplicate(err) {
			return Admin{}, fmt.Errorf("admin %s: %w", username, store.ErrDuplicate)
		}
		return Admin{}, err
	}
	return a, nil
}

// EnsureDefault seeds the initial admin when none exist yet, so a fresh
// deployment is reachable.
func (r *Repository) EnsureDefault(ctx context.Context, username, password string) error {
	var n int
	if err := r.db.Client.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := r.Create(ctx, username, password)
	return err
}

// Login verifies credentials and returns the admin.
func (r *Repository) Login(ctx context.Context, username, password string) (Admin, error) {
	a, err := r.GetByUsername(ctx, username)
	if err != nil {
		return Admin{}, err
	}
	if err := CheckPassword(a.PasswordHash, password); err != nil {
		return Admin{}, store.ErrNotFound
	}
	return a, nil
}
