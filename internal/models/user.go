// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered Warbler account.
type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Username       string         `gorm:"unique;not null" json:"username"`
	Email          string         `gorm:"unique;not null" json:"email"`
	Password       string         `gorm:"not null" json:"-"`
	ImageURL       string         `json:"image_url"`
	HeaderImageURL string         `json:"header_image_url"`
	Bio            string         `json:"bio"`
	Location       string         `json:"location"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	Messages       []Message      `gorm:"foreignKey:UserID" json:"messages,omitempty"`
}

// DefaultImageURL is used when signup does not provide a profile image.
const DefaultImageURL = "/static/images/default-pic.png"

// DefaultHeaderImageURL is used when no header image has been set.
const DefaultHeaderImageURL = "/static/images/warbler-hero.jpg"
