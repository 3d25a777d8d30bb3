package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
	gormlog "gorm.io/gorm/logger"

	"github.com/charleshuang3/authsession/internal/gormw"
	"github.com/charleshuang3/authsession/internal/models"
	"github.com/charleshuang3/authsession/internal/types"
)

func setupTestDB(t *testing.T) *gormw.DB {
	t.Helper()
	db, err := gormw.Open(&gormw.Config{
		LogLevel: gormlog.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	return db
}

func createTestUser(t *testing.T, db *gormw.DB, email string) *models.User {
	t.Helper()
	e, err := types.ParseEmail(email)
	require.NoError(t, err)
	n, err := types.ParseName("Test User")
	require.NoError(t, err)

	user, err := CreateUser(db, NewUser{Email: e, Name: n, HashedPassword: "hashed"})
	require.NoError(t, err)
	return user
}

func mustUserID(t *testing.T, user *models.User) types.UserID {
	t.Helper()
	id, err := types.ParseUserID(user.ID)
	require.NoError(t, err)
	return id
}
