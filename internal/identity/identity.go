// Package identity resolves users to their platform roles and answers
// permission questions from a role set.
package identity

import (
	"context"

	"github.com/homestay-reservations/backend/internal/apperr"
	"github.com/homestay-reservations/backend/internal/storage"
	"github.com/homestay-reservations/backend/internal/storage/models"
)

// Roles is the set of roles a user holds.
type Roles map[models.Role]bool

// NewRoles builds a role set.
func NewRoles(roles ...models.Role) Roles {
	set := make(Roles, len(roles))
	for _, r := range roles {
		set[r] = true
	}
	return set
}

// Provider resolves a user's roles.
type Provider interface {
	Roles(ctx context.Context, userID string) (Roles, error)
}

// IsAdmin returns true if the role set includes admin.
func IsAdmin(r Roles) bool { return r[models.RoleAdmin] }

// IsHost returns true if the role set includes host.
func IsHost(r Roles) bool { return r[models.RoleHost] }

// IsGuest returns true if the role set includes guest.
func IsGuest(r Roles) bool { return r[models.RoleGuest] }

// CanManage returns true if the user owns the homestay or is an admin.
func CanManage(r Roles, userID string, h *models.Homestay) bool {
	return IsAdmin(r) || (h != nil && h.HostID == userID)
}

// SQLProvider reads roles from the users and user_roles tables.
type SQLProvider struct {
	db    *storage.DB
	users *storage.UserRepository
}

// NewSQLProvider creates a role provider backed by the database.
func NewSQLProvider(db *storage.DB, users *storage.UserRepository) *SQLProvider {
	return &SQLProvider{db: db, users: users}
}

// Roles returns the user's roles. Unknown users are NotFound.
func (p *SQLProvider) Roles(ctx context.Context, userID string) (Roles, error) {
	u, err := p.users.GetByID(ctx, p.db, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user %s not found", userID)
	}

	roles, err := p.users.ListRoles(ctx, p.db, userID)
	if err != nil {
		return nil, err
	}

	return NewRoles(roles...), nil
}
