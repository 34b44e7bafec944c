package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/homestay-reservations/backend/internal/storage/models"
)

// UserRepository provides read access to the identity collaborator's users
// and role assignments.
type UserRepository struct {
	BaseRepository
}

// NewUserRepository creates a new user repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

// Create inserts a user with the given roles.
func (r *UserRepository) Create(ctx context.Context, q Queryable, u *models.User, roles ...models.Role) error {
	if u.ID == "" {
		u.ID = GenerateID()
	}
	u.CreatedAt = r.Now()

	if _, err := r.exec(ctx, q, `
		INSERT INTO users (id, email, full_name, created_at) VALUES (?, ?, ?, ?)
	`, u.ID, u.Email, u.FullName, u.CreatedAt); err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	for _, role := range roles {
		if _, err := r.exec(ctx, q, `
			INSERT INTO user_roles (user_id, role) VALUES (?, ?)
		`, u.ID, role); err != nil {
			return fmt.Errorf("inserting user role: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, q Queryable, id string) (*models.User, error) {
	u := &models.User{}

	err := r.get(ctx, q, u, `SELECT id, email, full_name, created_at FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return u, nil
}

// ListRoles returns the roles assigned to a user.
func (r *UserRepository) ListRoles(ctx context.Context, q Queryable, userID string) ([]models.Role, error) {
	var roles []models.Role
	if err := r.selectAll(ctx, q, &roles, `SELECT role FROM user_roles WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("querying user roles: %w", err)
	}
	return roles, nil
}
