package model

import "time"

// Identity is the authentication record (credentials + flags).
type Identity struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email       string    `gorm:"uniqueIndex;size:254;not null" json:"email"`
	Password    string    `gorm:"not null" json:"-"` // bcrypt hash, never serialized
	FirstName   string    `gorm:"size:150" json:"first_name"`
	LastName    string    `gorm:"size:150" json:"last_name"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	IsSuperuser bool      `gorm:"not null;default:false" json:"is_superuser"`
	IsStaff     bool      `gorm:"not null;default:false" json:"is_staff"`
	DateJoined  time.Time `gorm:"autoCreateTime" json:"date_joined"`
}

// FullName returns "first last", falling back to the username.
func (i *Identity) FullName() string {
	full := i.FirstName
	if i.LastName != "" {
		if full != "" {
			full += " "
		}
		full += i.LastName
	}
	if full == "" {
		return i.Username
	}
	return full
}
