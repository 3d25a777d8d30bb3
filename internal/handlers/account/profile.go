package account

import (
	"github.com/charleshuang3/authsession/internal/contract"
	"github.com/charleshuang3/authsession/internal/models"
	"github.com/charleshuang3/authsession/internal/storage"
	"github.com/charleshuang3/authsession/internal/types"
)

// UpdateProfile changes name, email and optionally the password. The current
// password is required even though the request is already authenticated.
func (s *Service) UpdateProfile(user *models.User, p *contract.UpdateProfileBody) (*contract.UserPayload, error) {
	if !s.hasher.Verify(p.CurrentPassword, user.Password) {
		return nil, contract.CodeInvalidPassword
	}

	userID, err := types.ParseUserID(user.ID)
	if err != nil {
		return nil, err
	}

	taken, err := storage.EmailTakenByOther(s.db, p.Email, userID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, contract.CodeEmailAlreadyExists
	}

	update := storage.ProfileUpdate{
		Name:  p.Name,
		Email: p.Email,
	}
	if p.NewPassword != nil {
		update.NewHashedPassword, err = s.hasher.Issue(*p.NewPassword)
		if err != nil {
			return nil, err
		}
	}

	updated, err := storage.UpdateUserProfile(s.db, userID, update)
	if err != nil {
		return nil, err
	}

	u, err := toUser(updated)
	if err != nil {
		return nil, err
	}
	return &contract.UserPayload{User: u}, nil
}

// Home returns the authenticated user.
func (s *Service) Home(user *models.User, _ *contract.NoBody) (*contract.UserPayload, error) {
	u, err := toUser(user)
	if err != nil {
		return nil, err
	}
	return &contract.UserPayload{User: u}, nil
}
