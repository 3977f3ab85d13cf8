package repository

import (
	"context"
	"errors"
	"time"

	"github.com/oksasatya/kios-auth/internal/domain/entity"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already exists")
	ErrPhoneTaken = errors.New("phone already exists")
)

// ResetTicket is the persisted half of a password reset: the issued token and
// the expiry stored next to it.
type ResetTicket struct {
	Token     string
	ExpiresAt time.Time
}

// UserUpdate is a partial update. Nil fields are left untouched.
// Reset sets both reset fields; ClearReset clears both.
type UserUpdate struct {
	Name           *string
	Phone          *string
	ProfilePicture *string
	Password       *string
	Status         *entity.Status
	LastLogin      *time.Time
	Reset          *ResetTicket
	ClearReset     bool
}

// UserRepository defines the interface for user-related database operations.
// Emails are expected to arrive normalized; the store enforces uniqueness of
// email and of non-empty phone numbers.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByID(ctx context.Context, id string) (*entity.User, error)
	Create(ctx context.Context, u *entity.User) error
	Update(ctx context.Context, id string, upd UserUpdate) (*entity.User, error)
	Delete(ctx context.Context, id string) (bool, error)
	// CompletePasswordReset sets the password hash and clears the reset fields
	// only while the stored reset token still equals token.
	CompletePasswordReset(ctx context.Context, id, token, passwordHash string) (bool, error)
}
