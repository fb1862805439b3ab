package models

import (
	"time"

	"gorm.io/gorm"
)

// DefaultImageFile is the placeholder profile picture assigned at registration.
const DefaultImageFile = "default.jpg"

// User represents a blog author. Passwords are stored as bcrypt hashes only.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:20;uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"size:120;uniqueIndex;not null" json:"email"`
	ImageFile string    `gorm:"size:32;not null;default:'default.jpg'" json:"image_file"`
	Password  string    `gorm:"size:60;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Posts     []Post    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// BeforeCreate hook fills the placeholder picture when none was chosen.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ImageFile == "" {
		u.ImageFile = DefaultImageFile
	}
	return nil
}
