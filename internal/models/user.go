package models

import "time"

type User struct {
	ID        string `gorm:"primarykey;size:36"`
	Email     string `gorm:"uniqueIndex;size:320;not null"`
	Name      string `gorm:"size:100;not null"`
	Password  string `gorm:"size:100;not null"` // bcrypt hash
	IsDeleted bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
