package storage

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleshuang3/authsession/internal/gormw"
	"github.com/charleshuang3/authsession/internal/models"
	"github.com/charleshuang3/authsession/internal/types"
)

func TestCreateAndGetRefreshToken(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "user@example.com")
	other := createTestUser(t, db, "other@example.com")
	userID := mustUserID(t, user)

	token, err := CreateRefreshToken(db, userID)
	require.NoError(t, err)

	row, err := GetRefreshToken(db, userID, token)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, token.String(), row.ID)
	assert.Equal(t, token.String(), row.PreviousID)
	assert.Equal(t, user.ID, row.UserID)
	assert.True(t, row.CreatedAt.Equal(row.PreviousCreatedAt))

	// wrong owner
	row, err = GetRefreshToken(db, mustUserID(t, other), token)
	require.NoError(t, err)
	assert.Nil(t, row)

	// unknown value
	row, err = GetRefreshToken(db, userID, types.NewRefreshToken())
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestReplaceRefreshToken(t *testing.T) {
	db := setupTestDB(t)
	userID := mustUserID(t, createTestUser(t, db, "user@example.com"))

	first, err := CreateRefreshToken(db, userID)
	require.NoError(t, err)
	row, err := GetRefreshToken(db, userID, first)
	require.NoError(t, err)
	require.NotNil(t, row)

	next, err := ReplaceRefreshToken(db, row)
	require.NoError(t, err)
	assert.NotEqual(t, first.String(), next.ID)
	assert.Equal(t, first.String(), next.PreviousID)
	assert.True(t, next.PreviousCreatedAt.Equal(row.CreatedAt))

	// the old value is now only reachable as previous
	old, err := GetRefreshToken(db, userID, first)
	require.NoError(t, err)
	assert.Nil(t, old)

	byPrevious, err := GetRefreshTokenByPrevious(db, userID, first)
	require.NoError(t, err)
	require.NotNil(t, byPrevious)
	assert.Equal(t, next.ID, byPrevious.ID)

	// rotation rewrites the row in place
	var count int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReplaceRefreshTokenStaleRow(t *testing.T) {
	db := setupTestDB(t)
	userID := mustUserID(t, createTestUser(t, db, "user@example.com"))

	token, err := CreateRefreshToken(db, userID)
	require.NoError(t, err)
	stale, err := GetRefreshToken(db, userID, token)
	require.NoError(t, err)

	winner, err := ReplaceRefreshToken(db, stale)
	require.NoError(t, err)

	_, err = ReplaceRefreshToken(db, stale)
	assert.ErrorIs(t, err, ErrRefreshTokenReplaced)

	// the loser did not overwrite the winner
	row, err := GetRefreshToken(db, userID, mustParseRefreshToken(t, winner.ID))
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, token.String(), row.PreviousID)
}

func TestReplaceRefreshTokenConcurrent(t *testing.T) {
	db := setupTestDB(t)
	userID := mustUserID(t, createTestUser(t, db, "user@example.com"))

	token, err := CreateRefreshToken(db, userID)
	require.NoError(t, err)
	row, err := GetRefreshToken(db, userID, token)
	require.NoError(t, err)

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		replaced int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stale := *row
			_, err := ReplaceRefreshToken(db, &stale)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, ErrRefreshTokenReplaced) {
				replaced++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, replaced)
}

func TestReplaceRefreshTokenWrongUser(t *testing.T) {
	db := setupTestDB(t)
	userID := mustUserID(t, createTestUser(t, db, "user@example.com"))
	other := createTestUser(t, db, "other@example.com")

	token, err := CreateRefreshToken(db, userID)
	require.NoError(t, err)
	row, err := GetRefreshToken(db, userID, token)
	require.NoError(t, err)

	forged := *row
	forged.UserID = other.ID
	_, err = ReplaceRefreshToken(db, &forged)
	assert.ErrorIs(t, err, ErrRefreshTokenReplaced)
}

func TestMultipleSessionsAreIndependent(t *testing.T) {
	db := setupTestDB(t)
	userID := mustUserID(t, createTestUser(t, db, "user@example.com"))

	phone, err := CreateRefreshToken(db, userID)
	require.NoError(t, err)
	laptop, err := CreateRefreshToken(db, userID)
	require.NoError(t, err)
	assert.NotEqual(t, phone, laptop)

	phoneRow, err := GetRefreshToken(db, userID, phone)
	require.NoError(t, err)
	_, err = ReplaceRefreshToken(db, phoneRow)
	require.NoError(t, err)

	laptopRow, err := GetRefreshToken(db, userID, laptop)
	require.NoError(t, err)
	require.NotNil(t, laptopRow)
	assert.Equal(t, laptop.String(), laptopRow.PreviousID)
}

func TestRemoveAllRefreshTokensByUser(t *testing.T) {
	db := setupTestDB(t)
	userID := mustUserID(t, createTestUser(t, db, "user@example.com"))
	otherID := mustUserID(t, createTestUser(t, db, "other@example.com"))

	for range 3 {
		_, err := CreateRefreshToken(db, userID)
		require.NoError(t, err)
	}
	otherToken, err := CreateRefreshToken(db, otherID)
	require.NoError(t, err)

	n, err := RemoveAllRefreshTokensByUser(db, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = RemoveAllRefreshTokensByUser(db, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	row, err := GetRefreshToken(db, otherID, otherToken)
	require.NoError(t, err)
	assert.NotNil(t, row)
}

func TestRemoveAllExpiredRefreshTokens(t *testing.T) {
	db := setupTestDB(t)
	userID := mustUserID(t, createTestUser(t, db, "user@example.com"))
	otherID := mustUserID(t, createTestUser(t, db, "other@example.com"))

	bad := createExpiredRefreshToken(t, db, userID)
	good, err := CreateRefreshToken(db, userID)
	require.NoError(t, err)
	other, err := CreateRefreshToken(db, otherID)
	require.NoError(t, err)

	n, err := RemoveAllExpiredRefreshTokens(db, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	row, err := GetRefreshToken(db, userID, bad)
	require.NoError(t, err)
	assert.Nil(t, row)

	row, err = GetRefreshToken(db, userID, good)
	require.NoError(t, err)
	assert.NotNil(t, row)

	row, err = GetRefreshToken(db, otherID, other)
	require.NoError(t, err)
	assert.NotNil(t, row)
}

func TestSweepExpiredRefreshTokens(t *testing.T) {
	db := setupTestDB(t)
	userID := mustUserID(t, createTestUser(t, db, "user@example.com"))
	createExpiredRefreshToken(t, db, userID)
	createExpiredRefreshToken(t, db, userID)

	SweepExpiredRefreshTokens(db, nil)

	var count int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestRemoveUserCascadesRefreshTokens(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "user@example.com")
	_, err := CreateRefreshToken(db, mustUserID(t, user))
	require.NoError(t, err)

	require.NoError(t, db.Delete(&models.User{}, "id = ?", user.ID).Error)

	var count int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

// createExpiredRefreshToken inserts a session issued one second past the TTL.
func createExpiredRefreshToken(t *testing.T, db *gormw.DB, userID types.UserID) types.RefreshToken {
	t.Helper()
	token := types.NewRefreshToken()
	expiredAt := time.Now().Add(-models.RefreshTokenTTL - time.Second)
	require.NoError(t, db.Create(&models.RefreshToken{
		ID:                token.String(),
		UserID:            userID.String(),
		PreviousID:        token.String(),
		PreviousCreatedAt: expiredAt,
		CreatedAt:         expiredAt,
	}).Error)
	return token
}

func mustParseRefreshToken(t *testing.T, s string) types.RefreshToken {
	t.Helper()
	token, err := types.ParseRefreshToken(s)
	require.NoError(t, err)
	return token
}
