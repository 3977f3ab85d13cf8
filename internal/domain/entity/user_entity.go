package entity

import (
	"time"
)

// Status is the account state; only active accounts can log in.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// User is the aggregate root for user domain
// Passwords are stored as bcrypt hashes in Password field
//
// ResetPasswordToken and ResetPasswordExpires are set together and cleared together.
type User struct {
	ID                   string
	Name                 string
	Email                string
	Phone                string
	ProfilePicture       string
	Password             string
	Status               Status
	ResetPasswordToken   *string
	ResetPasswordExpires *time.Time
	LastLogin            *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (u *User) IsActive() bool { return u.Status == StatusActive }

// Profile is the public view of a user. It never carries the password hash or reset state.
type Profile struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	ProfilePicture string    `json:"profilePicture"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Phone:          u.Phone,
		ProfilePicture: u.ProfilePicture,
		Status:         u.Status,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}
