// Package account serves login, refresh token rotation, logout and profile
// updates.
package account

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/charleshuang3/authsession/internal/accesstoken"
	"github.com/charleshuang3/authsession/internal/contract"
	"github.com/charleshuang3/authsession/internal/gormw"
	"github.com/charleshuang3/authsession/internal/handlers/api"
	"github.com/charleshuang3/authsession/internal/metrics"
	"github.com/charleshuang3/authsession/internal/models"
	"github.com/charleshuang3/authsession/internal/password"
	"github.com/charleshuang3/authsession/internal/types"
)

var (
	logger = log.With().Str("component", "account").Logger()
)

type Service struct {
	db      *gormw.DB
	codec   *accesstoken.Codec
	hasher  password.Hasher
	metrics *metrics.Metrics
	authn   *api.Authenticator
	now     func() time.Time
}

func NewService(db *gormw.DB, codec *accesstoken.Codec, hasher password.Hasher, m *metrics.Metrics) *Service {
	return &Service{
		db:      db,
		codec:   codec,
		hasher:  hasher,
		metrics: m,
		authn:   api.NewAuthenticator(db, codec, m),
		now:     time.Now,
	}
}

// RegisterHandlers mounts the account endpoints on rg. throttle runs in front
// of the credential endpoints, login and refresh token, only.
func (s *Service) RegisterHandlers(rg *gin.RouterGroup, throttle ...gin.HandlerFunc) {
	public := rg.Group("", throttle...)
	{
		public.Handle(contract.Login.Method, contract.Login.Route, api.Public(s.metrics, s.Login))
		public.Handle(contract.RefreshToken.Method, contract.RefreshToken.Route, api.Public(s.metrics, s.RefreshToken))
	}

	auth := rg.Group("", s.authn.Middleware())
	{
		auth.Handle(contract.Logout.Method, contract.Logout.Route, api.Auth(s.metrics, s.Logout))
		auth.Handle(contract.UpdateProfile.Method, contract.UpdateProfile.Route, api.Auth(s.metrics, s.UpdateProfile))
		auth.Handle(contract.Home.Method, contract.Home.Route, api.Auth(s.metrics, s.Home))
	}
}

// authPayload issues an access token for user and pairs it with token.
func (s *Service) authPayload(user *models.User, token types.RefreshToken) (*contract.AuthPayload, error) {
	u, err := toUser(user)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.codec.Issue(u.ID)
	if err != nil {
		return nil, err
	}

	return &contract.AuthPayload{
		User:         u,
		AccessToken:  accessToken,
		RefreshToken: token,
	}, nil
}

func toUser(row *models.User) (contract.User, error) {
	id, err := types.ParseUserID(row.ID)
	if err != nil {
		return contract.User{}, fmt.Errorf("user row %q: %w", row.ID, err)
	}
	name, err := types.ParseName(row.Name)
	if err != nil {
		return contract.User{}, fmt.Errorf("user row %q: %w", row.ID, err)
	}
	email, err := types.ParseEmail(row.Email)
	if err != nil {
		return contract.User{}, fmt.Errorf("user row %q: %w", row.ID, err)
	}
	return contract.User{ID: id, Name: name, Email: email}, nil
}
