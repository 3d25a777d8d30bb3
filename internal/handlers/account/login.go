package account

import (
	"github.com/charleshuang3/authsession/internal/contract"
	"github.com/charleshuang3/authsession/internal/metrics"
	"github.com/charleshuang3/authsession/internal/storage"
	"github.com/charleshuang3/authsession/internal/types"
)

// Login checks email and password and starts a new session. Sessions on
// other devices are kept.
func (s *Service) Login(p *contract.LoginBody) (*contract.AuthPayload, error) {
	user, err := storage.GetUserByEmail(s.db, p.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.metrics.ObserveLogin(metrics.LoginUserNotFound)
		return nil, contract.CodeUserNotFound
	}

	if !s.hasher.Verify(p.Password, user.Password) {
		s.metrics.ObserveLogin(metrics.LoginInvalidPassword)
		return nil, contract.CodeInvalidPassword
	}

	userID, err := types.ParseUserID(user.ID)
	if err != nil {
		return nil, err
	}
	token, err := storage.CreateRefreshToken(s.db, userID)
	if err != nil {
		return nil, err
	}

	payload, err := s.authPayload(user, token)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveLogin(metrics.LoginSuccess)
	logger.Info().Str("user", user.ID).Msg("User logged in")
	return payload, nil
}
