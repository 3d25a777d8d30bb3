package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleshuang3/authsession/internal/accesstoken"
	"github.com/charleshuang3/authsession/internal/types"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAuthToken(t *testing.T) *AuthToken {
	t.Helper()

	codec, err := accesstoken.NewCodec(testSecret)
	require.NoError(t, err)

	userID := types.NewUserID()
	access, err := codec.Issue(userID)
	require.NoError(t, err)

	return &AuthToken{
		UserID:       userID,
		AccessToken:  access,
		RefreshToken: types.NewRefreshToken(),
	}
}

func TestTokenStore(t *testing.T) {
	storage := NewMemoryStorage()
	s := NewTokenStore(storage)

	got, err := s.Get()
	require.NoError(t, err)
	assert.Nil(t, got)

	token := newTestAuthToken(t)
	require.NoError(t, s.Set(token))

	// stored under obfuscated keys
	v, ok, err := storage.Get("_xr")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, token.RefreshToken.String(), v)

	got, err = s.Get()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, token.UserID, got.UserID)
	assert.Equal(t, token.RefreshToken, got.RefreshToken)
	assert.Equal(t, token.AccessToken.String(), got.AccessToken.String())

	require.NoError(t, s.Remove())
	got, err = s.Get()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTokenStoreIncomplete(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s DeviceStorage)
	}{
		{
			name:   "missing refresh token",
			mutate: func(s DeviceStorage) { _ = s.Remove(keyRefreshToken) },
		},
		{
			name:   "malformed user id",
			mutate: func(s DeviceStorage) { _ = s.Set(map[string]string{keyUserID: "nope"}) },
		},
		{
			name:   "malformed access token",
			mutate: func(s DeviceStorage) { _ = s.Set(map[string]string{keyAccessToken: "nope"}) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := NewMemoryStorage()
			s := NewTokenStore(storage)
			require.NoError(t, s.Set(newTestAuthToken(t)))

			tt.mutate(storage)

			got, err := s.Get()
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}
