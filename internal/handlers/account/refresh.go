package account

import (
	"errors"

	"github.com/charleshuang3/authsession/internal/contract"
	"github.com/charleshuang3/authsession/internal/metrics"
	"github.com/charleshuang3/authsession/internal/storage"
	"github.com/charleshuang3/authsession/internal/types"
)

// RefreshToken rotates the presented refresh token and issues a new access
// token. It needs no access token since that may have expired already.
//
// The token the client held before its last rotation is still accepted, once
// per generation: a client that lost the response retries with the old value
// and gets the already rotated value back, unchanged. Anything older, expired,
// unknown or owned by another user is INVALID, without telling which.
func (s *Service) RefreshToken(p *contract.RefreshTokenBody) (*contract.AuthPayload, error) {
	token, outcome, err := s.rotate(p.UserID, p.RefreshToken)
	if errors.Is(err, contract.CodeInvalid) {
		s.metrics.ObserveRefresh(metrics.RefreshInvalid)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	// a valid token is not enough, the user must still exist
	user, err := storage.GetUserByID(s.db, p.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.metrics.ObserveRefresh(metrics.RefreshInvalid)
		return nil, contract.CodeInvalid
	}

	payload, err := s.authPayload(user, token)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveRefresh(outcome)
	return payload, nil
}

// rotate returns the refresh token the client should hold from now on.
func (s *Service) rotate(userID types.UserID, presented types.RefreshToken) (types.RefreshToken, string, error) {
	now := s.now()

	row, err := storage.GetRefreshToken(s.db, userID, presented)
	if err != nil {
		return types.RefreshToken{}, "", err
	}
	if row != nil {
		if row.Expired(now) {
			return types.RefreshToken{}, "", contract.CodeInvalid
		}

		next, err := storage.ReplaceRefreshToken(s.db, row)
		if errors.Is(err, storage.ErrRefreshTokenReplaced) {
			// lost the race to a concurrent refresh of the same session
			return types.RefreshToken{}, "", contract.CodeInvalid
		}
		if err != nil {
			return types.RefreshToken{}, "", err
		}
		token, err := types.ParseRefreshToken(next.ID)
		return token, metrics.RefreshRotated, err
	}

	row, err = storage.GetRefreshTokenByPrevious(s.db, userID, presented)
	if err != nil {
		return types.RefreshToken{}, "", err
	}
	if row == nil || row.PreviousExpired(now) {
		return types.RefreshToken{}, "", contract.CodeInvalid
	}

	token, err := types.ParseRefreshToken(row.ID)
	return token, metrics.RefreshReplayed, err
}
