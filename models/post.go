package models

import (
	"time"

	"gorm.io/gorm"
)

// Post represents a blog entry written by exactly one user.
type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"size:100;not null" json:"title"`
	DatePosted time.Time `gorm:"index;not null" json:"date_posted"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	Author     User      `gorm:"foreignKey:UserID" json:"author"`
}

// BeforeCreate stamps DatePosted in UTC. It is never touched again afterwards.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.DatePosted.IsZero() {
		p.DatePosted = time.Now().UTC()
	}
	return nil
}
