package client

import (
	"github.com/charleshuang3/authsession/internal/accesstoken"
	"github.com/charleshuang3/authsession/internal/types"
)

// keys are obfuscated on purpose
const (
	keyUserID       = "_xu"
	keyAccessToken  = "_xa"
	keyRefreshToken = "_xr"
)

// AuthToken is the credential a device holds for one logged in user.
type AuthToken struct {
	UserID       types.UserID
	AccessToken  *accesstoken.AccessToken
	RefreshToken types.RefreshToken
}

type TokenStore struct {
	storage DeviceStorage
}

func NewTokenStore(storage DeviceStorage) *TokenStore {
	return &TokenStore{storage: storage}
}

func (s *TokenStore) Set(t *AuthToken) error {
	return s.storage.Set(map[string]string{
		keyUserID:       t.UserID.String(),
		keyAccessToken:  t.AccessToken.String(),
		keyRefreshToken: t.RefreshToken.String(),
	})
}

// Get returns nil, nil when no complete, well-formed token is stored.
func (s *TokenStore) Get() (*AuthToken, error) {
	values := make(map[string]string, 3)
	for _, k := range []string{keyUserID, keyAccessToken, keyRefreshToken} {
		v, ok, err := s.storage.Get(k)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		values[k] = v
	}

	userID, err := types.ParseUserID(values[keyUserID])
	if err != nil {
		logger.Warn().Err(err).Msg("Stored user id is malformed")
		return nil, nil
	}
	accessToken, err := accesstoken.ParseUnverified(values[keyAccessToken])
	if err != nil {
		logger.Warn().Err(err).Msg("Stored access token is malformed")
		return nil, nil
	}
	refreshToken, err := types.ParseRefreshToken(values[keyRefreshToken])
	if err != nil {
		logger.Warn().Err(err).Msg("Stored refresh token is malformed")
		return nil, nil
	}

	return &AuthToken{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *TokenStore) Remove() error {
	return s.storage.Remove(keyUserID, keyAccessToken, keyRefreshToken)
}
