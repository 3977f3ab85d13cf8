package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/kios-auth/internal/domain/entity"
	repo "github.com/oksasatya/kios-auth/internal/domain/repository"
	"github.com/oksasatya/kios-auth/pkg/helpers"
)

// ResetTokenTTL bounds both the signed reset token and the expiry persisted next to it.
const ResetTokenTTL = time.Hour

const sideEffectTimeout = 3 * time.Second

// AuthService composes the user store, hasher and token issuer into the
// account operations. Events, Cache, Index and Pictures are optional.
type AuthService struct {
	Repo     repo.UserRepository
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Logger   *logrus.Logger
	Events   EventPublisher
	Cache    ProfileCache
	Index    ProfileIndex
	Pictures PictureStorage
	Now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(r repo.UserRepository, hasher PasswordHasher, tokens TokenIssuer, logger *logrus.Logger) *AuthService {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &AuthService{Repo: r, Hasher: hasher, Tokens: tokens, Logger: logger, Now: time.Now}
}

type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

type AuthResult struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"-"`
}

type UpdateProfileInput struct {
	Name           *string
	Phone          *string
	ProfilePicture *string
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// NormalizeEmail is applied on every write and lookup so that login is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := NormalizeEmail(in.Email)

	_, err := s.Repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrEmailAlreadyRegistered
	case !errors.Is(err, repo.ErrNotFound):
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	u := &entity.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    email,
		Phone:    strings.TrimSpace(in.Phone),
		Password: hash,
		Status:   entity.StatusActive,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, repo.ErrEmailTaken):
			return nil, ErrEmailAlreadyRegistered
		case errors.Is(err, repo.ErrPhoneTaken):
			return nil, ErrPhoneAlreadyRegistered
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	res, err := s.issueSession(u)
	if err != nil {
		return nil, err
	}

	s.Logger.WithField("user_id", u.ID).Info("user registered")
	s.publish(ctx, EventUserRegistered, UserRegisteredEvent{UserID: u.ID, Email: u.Email, Name: u.Name, OccurredAt: u.CreatedAt})
	s.index(ctx, u.Profile())
	return res, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.Repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// keep the unknown-email path as slow as a wrong password
			s.Hasher.Verify(password, s.fallbackHash())
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}
	if !s.Hasher.Verify(password, u.Password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive() {
		return nil, ErrAccountInactive
	}

	now := s.now().UTC()
	if _, err := s.Repo.Update(ctx, u.ID, repo.UserUpdate{LastLogin: &now}); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("update last login: %w", err)
	}
	return s.issueSession(u)
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*entity.Profile, error) {
	if s.Cache != nil {
		p, ok, err := s.Cache.Get(ctx, userID)
		if err != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Warn("profile cache read failed")
		} else if ok {
			return p, nil
		}
	}

	u, err := s.Repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	p := u.Profile()
	s.cache(ctx, p)
	return &p, nil
}

// UpdateProfile changes only the supplied fields.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*entity.Profile, error) {
	upd := repo.UserUpdate{ProfilePicture: in.ProfilePicture}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		upd.Name = &name
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		upd.Phone = &phone
	}

	u, err := s.Repo.Update(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.evict(ctx, userID)
			return nil, ErrUserNotFound
		}
		if errors.Is(err, repo.ErrPhoneTaken) {
			return nil, ErrPhoneAlreadyRegistered
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	p := u.Profile()
	s.cache(ctx, p)
	s.index(ctx, p)
	return &p, nil
}

// UploadProfilePicture stores the image and points the profile at its public URL.
func (s *AuthService) UploadProfilePicture(ctx context.Context, userID string, r io.Reader, filename, contentType string) (*entity.Profile, error) {
	if s.Pictures == nil {
		return nil, ErrPictureStorageDisabled
	}
	if _, err := s.Repo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", userID, uuid.NewString()+ext))
	url, err := s.Pictures.Upload(ctx, objectPath, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("upload picture: %w", err)
	}
	return s.UpdateProfile(ctx, userID, UpdateProfileInput{ProfilePicture: &url})
}

// SearchProfiles runs a free-text search over indexed profiles.
func (s *AuthService) SearchProfiles(ctx context.Context, query string, size int) ([]entity.Profile, error) {
	if s.Index == nil || strings.TrimSpace(query) == "" {
		return []entity.Profile{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	return s.Index.Search(ctx, query, size)
}

// ForgotPassword answers the same way whether or not the email is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = NormalizeEmail(email)
	u, err := s.Repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.Logger.WithField("email", email).Debug("password reset requested for unknown email")
			return MsgForgotPassword, nil
		}
		return "", fmt.Errorf("lookup user by email: %w", err)
	}

	token, _, err := s.Tokens.IssueReset(u.ID, ResetTokenTTL)
	if err != nil {
		return "", fmt.Errorf("issue reset token: %w", err)
	}
	expires := s.now().UTC().Add(ResetTokenTTL)
	if _, err := s.Repo.Update(ctx, u.ID, repo.UserUpdate{Reset: &repo.ResetTicket{Token: token, ExpiresAt: expires}}); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return MsgForgotPassword, nil
		}
		return "", fmt.Errorf("store reset token: %w", err)
	}

	s.Logger.WithFields(logrus.Fields{
		"user_id":    u.ID,
		"email":      u.Email,
		"reset":      token,
		"expires_at": expires,
	}).Debug("password reset token issued")
	s.publish(ctx, EventPasswordResetRequested, PasswordResetRequestedEvent{
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Token:     token,
		ExpiresAt: expires,
	})
	return MsgForgotPassword, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	return s.resetPassword(ctx, "", token, newPassword)
}

// ResetPasswordForUser is ResetPassword for routes that also name the user;
// the token must have been issued to that user.
func (s *AuthService) ResetPasswordForUser(ctx context.Context, userID, token, newPassword string) (string, error) {
	if userID == "" {
		return "", ErrInvalidResetToken
	}
	return s.resetPassword(ctx, userID, token, newPassword)
}

func (s *AuthService) resetPassword(ctx context.Context, userID, token, newPassword string) (string, error) {
	claims, err := s.Tokens.Validate(token)
	if err != nil || claims.Purpose != helpers.PurposeReset {
		return "", ErrInvalidResetToken
	}
	subject := claims.UserID()
	if userID != "" && userID != subject {
		return "", ErrInvalidResetToken
	}

	u, err := s.Repo.FindByID(ctx, subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrInvalidResetToken
		}
		return "", fmt.Errorf("find user: %w", err)
	}
	if u.ResetPasswordToken == nil || *u.ResetPasswordToken != token {
		return "", ErrInvalidResetToken
	}
	if u.ResetPasswordExpires == nil || !s.now().Before(*u.ResetPasswordExpires) {
		return "", ErrResetTokenExpired
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return "", err
	}
	ok, err := s.Repo.CompletePasswordReset(ctx, u.ID, token, hash)
	if err != nil {
		return "", fmt.Errorf("complete password reset: %w", err)
	}
	if !ok {
		return "", ErrInvalidResetToken
	}

	s.Logger.WithField("user_id", u.ID).Info("password reset completed")
	return MsgPasswordReset, nil
}

// DeleteUser removes the account and drops its cached profile, so a still-valid
// session token for it resolves to ErrUserNotFound.
func (s *AuthService) DeleteUser(ctx context.Context, userID string) error {
	ok, err := s.Repo.Delete(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.evict(ctx, userID)
	if !ok {
		return ErrUserNotFound
	}
	s.Logger.WithField("user_id", userID).Info("user deleted")
	return nil
}

// Logout has nothing to revoke: bearer tokens stay valid until they expire.
func (s *AuthService) Logout(_ context.Context, userID string) string {
	s.Logger.WithField("user_id", userID).Debug("logout")
	return MsgLoggedOut
}

// ValidateToken accepts session tokens only. Account status is not re-checked.
func (s *AuthService) ValidateToken(token string) (*helpers.Claims, error) {
	claims, err := s.Tokens.Validate(token)
	if err != nil || claims.Purpose != "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) issueSession(u *entity.User) (*AuthResult, error) {
	tok, exp, err := s.Tokens.IssueSession(u.ID, u.Email, u.Name)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	return &AuthResult{ID: u.ID, Email: u.Email, Name: u.Name, AccessToken: tok, ExpiresAt: exp}, nil
}

func (s *AuthService) hash(plain string) (string, error) {
	h, err := s.Hasher.Hash(plain)
	if err != nil {
		if errors.Is(err, helpers.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return h, nil
}

func (s *AuthService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.Hasher.Hash(uuid.NewString())
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func (s *AuthService) publish(ctx context.Context, key string, event any) {
	if s.Events == nil {
		return
	}
	c, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()
	if err := s.Events.Publish(c, key, event); err != nil {
		s.Logger.WithError(err).WithField("routing_key", key).Warn("publish event failed")
	}
}

func (s *AuthService) cache(ctx context.Context, p entity.Profile) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Set(ctx, p); err != nil {
		s.Logger.WithError(err).WithField("user_id", p.ID).Warn("profile cache write failed")
	}
}

func (s *AuthService) evict(ctx context.Context, userID string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, userID); err != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Warn("profile cache evict failed")
	}
}

func (s *AuthService) index(ctx context.Context, p entity.Profile) {
	if s.Index == nil {
		return
	}
	c, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()
	if err := s.Index.Index(c, p); err != nil {
		s.Logger.WithError(err).WithField("user_id", p.ID).Warn("profile index failed")
	}
}
