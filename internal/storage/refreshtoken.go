package storage

import (
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/charleshuang3/authsession/internal/gormw"
	"github.com/charleshuang3/authsession/internal/metrics"
	"github.com/charleshuang3/authsession/internal/models"
	"github.com/charleshuang3/authsession/internal/types"
)

var (
	logger = log.With().Str("component", "storage").Logger()

	// ErrRefreshTokenReplaced is returned by ReplaceRefreshToken when the row
	// no longer holds the value it was read with: a concurrent refresh won.
	ErrRefreshTokenReplaced = errors.New("refresh token already replaced")
)

// CreateRefreshToken starts a new session for the user. Other sessions of the
// same user are kept, one user may be logged in on several devices.
func CreateRefreshToken(db *gormw.DB, userID types.UserID) (types.RefreshToken, error) {
	token := types.NewRefreshToken()
	now := time.Now()
	row := &models.RefreshToken{
		ID:                token.String(),
		UserID:            userID.String(),
		PreviousID:        token.String(),
		PreviousCreatedAt: now,
		CreatedAt:         now,
	}
	if err := db.Create(row).Error; err != nil {
		return types.RefreshToken{}, err
	}
	return token, nil
}

// GetRefreshToken looks up a session by its current value. It returns nil, nil
// when there is none.
func GetRefreshToken(db *gormw.DB, userID types.UserID, token types.RefreshToken) (*models.RefreshToken, error) {
	row := &models.RefreshToken{}
	err := db.Where("id = ? AND user_id = ?", token.String(), userID.String()).Take(row).Error
	return refreshTokenOrNil(row, err)
}

// GetRefreshTokenByPrevious looks up a session by the value it replaced last.
// It returns nil, nil when there is none.
func GetRefreshTokenByPrevious(db *gormw.DB, userID types.UserID, token types.RefreshToken) (*models.RefreshToken, error) {
	row := &models.RefreshToken{}
	err := db.Where("previous_id = ? AND user_id = ?", token.String(), userID.String()).Take(row).Error
	return refreshTokenOrNil(row, err)
}

// ReplaceRefreshToken rotates row to a new value in a single conditional
// update keyed on the value row was read with. If another caller rotated it
// first nothing is written and ErrRefreshTokenReplaced is returned.
func ReplaceRefreshToken(db *gormw.DB, row *models.RefreshToken) (*models.RefreshToken, error) {
	next := &models.RefreshToken{
		ID:                types.NewRefreshToken().String(),
		UserID:            row.UserID,
		PreviousID:        row.ID,
		PreviousCreatedAt: row.CreatedAt,
		CreatedAt:         time.Now(),
	}

	res := db.Model(&models.RefreshToken{}).
		Where("id = ? AND user_id = ?", row.ID, row.UserID).
		Updates(map[string]any{
			"id":                  next.ID,
			"previous_id":         next.PreviousID,
			"previous_created_at": next.PreviousCreatedAt,
			"created_at":          next.CreatedAt,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrRefreshTokenReplaced
	}
	return next, nil
}

// RemoveAllRefreshTokensByUser ends every session of the user.
func RemoveAllRefreshTokensByUser(db *gormw.DB, userID types.UserID) (int64, error) {
	res := db.Where("user_id = ?", userID.String()).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

// RemoveAllExpiredRefreshTokens deletes sessions whose current value is past
// models.RefreshTokenTTL at now.
func RemoveAllExpiredRefreshTokens(db *gormw.DB, now time.Time) (int64, error) {
	lastCreatedAt := now.Add(-models.RefreshTokenTTL)
	res := db.Where("created_at <= ?", lastCreatedAt).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

// Refresh token will exists in database forever if not register a cleaner.
func RegisterRefreshTokensCleaner(scheduler gocron.Scheduler, db *gormw.DB, m *metrics.Metrics) error {
	_, err := scheduler.NewJob(
		gocron.CronJob(
			// 4am Daily
			"0 4 * * *",
			false,
		),
		gocron.NewTask(
			func() {
				SweepExpiredRefreshTokens(db, m)
			},
		),
	)
	return err
}

// SweepExpiredRefreshTokens runs one expiry sweep and logs the outcome.
func SweepExpiredRefreshTokens(db *gormw.DB, m *metrics.Metrics) {
	logger.Info().Msg("Cleaning up expired refresh tokens")
	n, err := RemoveAllExpiredRefreshTokens(db, time.Now())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to clean up expired refresh tokens")
		return
	}
	m.ObserveSwept(n)
	logger.Info().Int64("removed", n).Msg("Cleaned up expired refresh tokens")
}

func refreshTokenOrNil(row *models.RefreshToken, err error) (*models.RefreshToken, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}
