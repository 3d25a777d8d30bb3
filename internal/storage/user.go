package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/charleshuang3/authsession/internal/gormw"
	"github.com/charleshuang3/authsession/internal/models"
	"github.com/charleshuang3/authsession/internal/types"
)

// GetUserByID returns nil, nil if there is no live user with the id.
func GetUserByID(db *gormw.DB, id types.UserID) (*models.User, error) {
	user := &models.User{}
	err := db.Where("id = ? AND is_deleted = ?", id.String(), false).Take(user).Error
	return userOrNil(user, err)
}

// GetUserByEmail returns nil, nil if there is no live user with the email.
func GetUserByEmail(db *gormw.DB, email types.Email) (*models.User, error) {
	user := &models.User{}
	err := db.Where("email = ? AND is_deleted = ?", email.String(), false).Take(user).Error
	return userOrNil(user, err)
}

// EmailTakenByOther reports whether any row other than userID holds email.
// Soft-deleted rows count, the column is unique regardless.
func EmailTakenByOther(db *gormw.DB, email types.Email, userID types.UserID) (bool, error) {
	var n int64
	err := db.Model(&models.User{}).
		Where("email = ? AND id <> ?", email.String(), userID.String()).
		Count(&n).Error
	return n > 0, err
}

type NewUser struct {
	Email          types.Email
	Name           types.Name
	HashedPassword string
}

func CreateUser(db *gormw.DB, params NewUser) (*models.User, error) {
	user := &models.User{
		ID:       types.NewUserID().String(),
		Email:    params.Email.String(),
		Name:     params.Name.String(),
		Password: params.HashedPassword,
	}
	if err := db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

type ProfileUpdate struct {
	Name  types.Name
	Email types.Email
	// NewHashedPassword leaves the stored hash untouched when empty.
	NewHashedPassword string
}

// UpdateUserProfile writes the profile and returns the row as stored.
func UpdateUserProfile(db *gormw.DB, id types.UserID, params ProfileUpdate) (*models.User, error) {
	fields := map[string]any{
		"name":       params.Name.String(),
		"email":      params.Email.String(),
		"updated_at": time.Now(),
	}
	if params.NewHashedPassword != "" {
		fields["password"] = params.NewHashedPassword
	}

	res := db.Model(&models.User{}).Where("id = ?", id.String()).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	user := &models.User{}
	if err := db.Where("id = ?", id.String()).Take(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// SoftDeleteUser marks the user deleted, which ends every session at the next
// refresh or authenticated request.
func SoftDeleteUser(db *gormw.DB, id types.UserID) error {
	return db.Model(&models.User{}).
		Where("id = ?", id.String()).
		Updates(map[string]any{"is_deleted": true, "updated_at": time.Now()}).Error
}

func CountUsers(db *gormw.DB) (int64, error) {
	var n int64
	err := db.Model(&models.User{}).Count(&n).Error
	return n, err
}

func userOrNil(user *models.User, err error) (*models.User, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
