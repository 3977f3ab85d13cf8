package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/kios-auth/internal/domain/entity"
	"github.com/oksasatya/kios-auth/internal/domain/repository"
)

// UserRepository keeps users in process memory. Used by tests and STORE_DRIVER=memory.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*entity.User
	byEmail map[string]string
	byPhone map[string]string
	now     func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]*entity.User),
		byEmail: make(map[string]string),
		byPhone: make(map[string]string),
		now:     time.Now,
	}
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(u), nil
}

func (r *UserRepository) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[u.Email]; taken {
		return repository.ErrEmailTaken
	}
	if _, taken := r.byPhone[u.Phone]; taken && u.Phone != "" {
		return repository.ErrPhoneTaken
	}
	now := r.now().UTC()
	u.ID = uuid.NewString()
	if u.Status == "" {
		u.Status = entity.StatusActive
	}
	u.CreatedAt, u.UpdatedAt = now, now
	r.byID[u.ID] = clone(u)
	r.byEmail[u.Email] = u.ID
	if u.Phone != "" {
		r.byPhone[u.Phone] = u.ID
	}
	return nil
}

func (r *UserRepository) Update(_ context.Context, id string, upd repository.UserUpdate) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if upd.Phone != nil && *upd.Phone != "" {
		if owner, taken := r.byPhone[*upd.Phone]; taken && owner != id {
			return nil, repository.ErrPhoneTaken
		}
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Phone != nil {
		delete(r.byPhone, u.Phone)
		u.Phone = *upd.Phone
		if u.Phone != "" {
			r.byPhone[u.Phone] = id
		}
	}
	if upd.ProfilePicture != nil {
		u.ProfilePicture = *upd.ProfilePicture
	}
	if upd.Password != nil {
		u.Password = *upd.Password
	}
	if upd.Status != nil {
		u.Status = *upd.Status
	}
	if upd.LastLogin != nil {
		t := *upd.LastLogin
		u.LastLogin = &t
	}
	switch {
	case upd.Reset != nil:
		tok, exp := upd.Reset.Token, upd.Reset.ExpiresAt
		u.ResetPasswordToken, u.ResetPasswordExpires = &tok, &exp
	case upd.ClearReset:
		u.ResetPasswordToken, u.ResetPasswordExpires = nil, nil
	}
	u.UpdatedAt = r.now().UTC()
	return clone(u), nil
}

func (r *UserRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	delete(r.byEmail, u.Email)
	delete(r.byPhone, u.Phone)
	delete(r.byID, id)
	return true, nil
}

func (r *UserRepository) CompletePasswordReset(_ context.Context, id, token, passwordHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || u.ResetPasswordToken == nil || *u.ResetPasswordToken != token {
		return false, nil
	}
	u.Password = passwordHash
	u.ResetPasswordToken, u.ResetPasswordExpires = nil, nil
	u.UpdatedAt = r.now().UTC()
	return true, nil
}

func clone(u *entity.User) *entity.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.ResetPasswordToken != nil {
		t := *u.ResetPasswordToken
		c.ResetPasswordToken = &t
	}
	if u.ResetPasswordExpires != nil {
		t := *u.ResetPasswordExpires
		c.ResetPasswordExpires = &t
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

var _ repository.UserRepository = (*UserRepository)(nil)
