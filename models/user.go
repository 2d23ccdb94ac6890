// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User is a microblogs account. Credentials are handled by internal/auth;
// the only credential data kept here is the bcrypt hash.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:30;uniqueIndex;not null" json:"username"`
	FirstName    string    `gorm:"size:50;not null" json:"first_name"`
	LastName     string    `gorm:"size:50;not null" json:"last_name"`
	Email        string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Bio          string    `gorm:"size:520;not null;default:''" json:"bio"`
	PasswordHash string    `gorm:"column:password;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// PublicUser is the profile view served to other users.
type PublicUser struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"created_at"`
}

// Public strips the email address.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt,
	}
}
