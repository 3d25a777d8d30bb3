package account

import (
	"github.com/charleshuang3/authsession/internal/contract"
	"github.com/charleshuang3/authsession/internal/models"
	"github.com/charleshuang3/authsession/internal/storage"
	"github.com/charleshuang3/authsession/internal/types"
)

// Logout ends every session of the user on every device. It always succeeds
// for the client, a failed delete is only logged.
func (s *Service) Logout(user *models.User, _ *contract.NoBody) (*contract.NoPayload, error) {
	userID, err := types.ParseUserID(user.ID)
	if err != nil {
		logger.Error().Err(err).Str("user", user.ID).Msg("Logout with malformed user id")
		return &contract.NoPayload{}, nil
	}

	n, err := storage.RemoveAllRefreshTokensByUser(s.db, userID)
	if err != nil {
		logger.Error().Err(err).Str("user", user.ID).Msg("Failed to remove refresh tokens on logout")
		return &contract.NoPayload{}, nil
	}

	logger.Info().Str("user", user.ID).Int64("sessions", n).Msg("User logged out")
	return &contract.NoPayload{}, nil
}
