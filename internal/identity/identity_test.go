package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homestay-reservations/backend/internal/apperr"
	"github.com/homestay-reservations/backend/internal/storage"
	"github.com/homestay-reservations/backend/internal/storage/models"
	"github.com/homestay-reservations/backend/internal/storage/storagetest"
)

func TestPredicates(t *testing.T) {
	roles := NewRoles(models.RoleGuest, models.RoleHost)

	assert.True(t, IsGuest(roles))
	assert.True(t, IsHost(roles))
	assert.False(t, IsAdmin(roles))

	h := &models.Homestay{HostID: "owner"}
	assert.True(t, CanManage(roles, "owner", h))
	assert.False(t, CanManage(roles, "someone-else", h))
	assert.True(t, CanManage(NewRoles(models.RoleAdmin), "someone-else", h))
}

func TestSQLProvider(t *testing.T) {
	db := storagetest.NewDB(t)
	provider := NewSQLProvider(db, storage.NewUserRepository())
	admin := storagetest.User(t, db, "admin", models.RoleAdmin)

	roles, err := provider.Roles(context.Background(), admin.ID)
	require.NoError(t, err)
	assert.True(t, IsAdmin(roles))
	assert.False(t, IsGuest(roles))

	_, err = provider.Roles(context.Background(), "ghost")
	assert.True(t, apperr.IsNotFound(err))
}
