package application

import (
	"context"
	"io"
	"time"

	"github.com/oksasatya/kios-auth/internal/domain/entity"
	"github.com/oksasatya/kios-auth/pkg/helpers"
)

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

type TokenIssuer interface {
	IssueSession(userID, email, name string) (string, time.Time, error)
	IssueReset(userID string, ttl time.Duration) (string, time.Time, error)
	Validate(token string) (*helpers.Claims, error)
}

// EventPublisher hands domain events to whoever delivers mail or notifications.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type ProfileCache interface {
	Get(ctx context.Context, userID string) (*entity.Profile, bool, error)
	Set(ctx context.Context, p entity.Profile) error
	Delete(ctx context.Context, userID string) error
}

type ProfileIndex interface {
	Index(ctx context.Context, p entity.Profile) error
	Search(ctx context.Context, query string, size int) ([]entity.Profile, error)
}

type PictureStorage interface {
	// Upload stores the object and returns its public URL.
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)
}

const (
	EventUserRegistered         = "user.registered"
	EventPasswordResetRequested = "password.reset_requested"
)

type UserRegisteredEvent struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	OccurredAt time.Time `json:"occurred_at"`
}

type PasswordResetRequestedEvent struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
