package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/kios-auth/internal/domain/entity"
	"github.com/oksasatya/kios-auth/internal/domain/repository"
	"github.com/oksasatya/kios-auth/internal/infrastructure/memory"
	"github.com/oksasatya/kios-auth/pkg/helpers"
)

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) lastReset(t *testing.T) PasswordResetRequestedEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if ev, ok := p.events[i].(PasswordResetRequestedEvent); ok {
			return ev
		}
	}
	t.Fatal("no password reset event published")
	return PasswordResetRequestedEvent{}
}

type mapCache struct {
	items map[string]entity.Profile
	gets  int
}

func newMapCache() *mapCache { return &mapCache{items: map[string]entity.Profile{}} }

func (c *mapCache) Get(_ context.Context, id string) (*entity.Profile, bool, error) {
	c.gets++
	p, ok := c.items[id]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (c *mapCache) Set(_ context.Context, p entity.Profile) error {
	c.items[p.ID] = p
	return nil
}

func (c *mapCache) Delete(_ context.Context, id string) error {
	delete(c.items, id)
	return nil
}

type fakeIndex struct {
	docs map[string]entity.Profile
}

func (f *fakeIndex) Index(_ context.Context, p entity.Profile) error {
	f.docs[p.ID] = p
	return nil
}

func (f *fakeIndex) Search(_ context.Context, q string, _ int) ([]entity.Profile, error) {
	out := []entity.Profile{}
	for _, p := range f.docs {
		if strings.Contains(p.Email, q) || strings.Contains(p.Name, q) {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeStorage struct {
	paths []string
}

func (f *fakeStorage) Upload(_ context.Context, objectPath, _ string, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	f.paths = append(f.paths, objectPath)
	return "https://storage.example/" + objectPath, nil
}

// racyRepo hides existing users from FindByEmail to simulate a concurrent register.
type racyRepo struct {
	*memory.UserRepository
}

func (r racyRepo) FindByEmail(context.Context, string) (*entity.User, error) {
	return nil, repository.ErrNotFound
}

type fixture struct {
	svc    *AuthService
	repo   *memory.UserRepository
	events *recordingPublisher
	tokens *helpers.JWTManager
	phones int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := memory.NewUserRepository()
	tokens := helpers.NewJWTManager("test-secret", time.Hour)
	svc := NewAuthService(r, &helpers.BcryptHasher{Cost: bcrypt.MinCost}, tokens, nil)
	events := &recordingPublisher{}
	svc.Events = events
	return &fixture{svc: svc, repo: r, events: events, tokens: tokens}
}

// register gives every user its own phone, starting at 081234567890.
func (f *fixture) register(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	phone := fmt.Sprintf("0812345678%02d", 90+f.phones)
	f.phones++
	res, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "John Doe",
		Email:    email,
		Phone:    phone,
		Password: password,
	})
	require.NoError(t, err)
	return res
}

func TestRegister_ThenProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.register(t, "john@x.com", "Secret@123")
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "john@x.com", res.Email)
	assert.Equal(t, "John Doe", res.Name)
	assert.NotEmpty(t, res.AccessToken)

	claims, err := f.svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.ID, claims.UserID())
	assert.Equal(t, "john@x.com", claims.Email)

	p, err := f.svc.Profile(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "john@x.com", p.Email)
	assert.Equal(t, "John Doe", p.Name)
	assert.Equal(t, entity.StatusActive, p.Status)

	stored, err := f.repo.FindByID(ctx, res.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "Secret@123", stored.Password)
	assert.True(t, (&helpers.BcryptHasher{}).Verify("Secret@123", stored.Password))

	require.Len(t, f.events.keys, 1)
	assert.Equal(t, EventUserRegistered, f.events.keys[0])
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.register(t, "john@x.com", "Secret@123")

	_, err := f.svc.Register(ctx, RegisterInput{Name: "Other", Email: " John@X.com ", Password: "Another@1"})
	assert.ErrorIs(t, err, ErrEmailAlreadyRegistered)

	u, err := f.repo.FindByEmail(ctx, "john@x.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, u.ID)
	assert.Equal(t, "John Doe", u.Name)
}

func TestRegister_StoreUniquenessWinsRace(t *testing.T) {
	f := newFixture(t)
	f.register(t, "john@x.com", "Secret@123")

	f.svc.Repo = racyRepo{f.repo}
	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Dup", Email: "john@x.com", Password: "Secret@123"})
	assert.ErrorIs(t, err, ErrEmailAlreadyRegistered)
}

func TestRegister_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")

	res, err := f.svc.Register(context.Background(), RegisterInput{Name: "A", Email: "a@x.com", Password: "Secret@123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "john@x.com", "Secret@123")

	start := time.Now().UTC()
	res, err := f.svc.Login(ctx, "JOHN@x.com", "Secret@123")
	require.NoError(t, err)
	assert.Equal(t, reg.ID, res.ID)
	assert.NotEmpty(t, res.AccessToken)

	u, err := f.repo.FindByID(ctx, reg.ID)
	require.NoError(t, err)
	require.NotNil(t, u.LastLogin)
	assert.False(t, u.LastLogin.Before(start))
}

func TestLogin_WrongPasswordAndUnknownEmailLookTheSame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "john@x.com", "Secret@123")

	_, errWrong := f.svc.Login(ctx, "john@x.com", "wrong-password")
	_, errUnknown := f.svc.Login(ctx, "nobody@x.com", "Secret@123")

	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())

	u, err := f.repo.FindByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Nil(t, u.LastLogin)
}

func TestLogin_InactiveAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "john@x.com", "Secret@123")

	inactive := entity.StatusInactive
	_, err := f.repo.Update(ctx, reg.ID, repository.UserUpdate{Status: &inactive})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "john@x.com", "Secret@123")
	assert.ErrorIs(t, err, ErrAccountInactive)

	u, err := f.repo.FindByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Nil(t, u.LastLogin)

	// wrong password on an inactive account still reads as bad credentials
	_, err = f.svc.Login(ctx, "john@x.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestProfile_UnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Profile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestProfile_ReadsThroughCache(t *testing.T) {
	f := newFixture(t)
	cache := newMapCache()
	f.svc.Cache = cache
	ctx := context.Background()
	reg := f.register(t, "john@x.com", "Secret@123")

	_, err := f.svc.Profile(ctx, reg.ID)
	require.NoError(t, err)
	assert.Contains(t, cache.items, reg.ID)

	p, err := f.svc.Profile(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, p.ID)
	assert.Equal(t, 2, cache.gets)

	// a failed update evicts a stale entry
	cache.items["ghost"] = entity.Profile{ID: "ghost"}
	name := "x"
	_, err = f.svc.UpdateProfile(ctx, "ghost", UpdateProfileInput{Name: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NotContains(t, cache.items, "ghost")
}

func TestDeleteUser_EvictsCachedProfile(t *testing.T) {
	f := newFixture(t)
	cache := newMapCache()
	f.svc.Cache = cache
	ctx := context.Background()
	reg := f.register(t, "john@x.com", "Secret@123")

	_, err := f.svc.Profile(ctx, reg.ID)
	require.NoError(t, err)
	require.Contains(t, cache.items, reg.ID)

	require.NoError(t, f.svc.DeleteUser(ctx, reg.ID))
	assert.NotContains(t, cache.items, reg.ID)

	// the session token is still signed and unexpired, the account is not
	claims, err := f.svc.ValidateToken(reg.AccessToken)
	require.NoError(t, err)
	_, err = f.svc.Profile(ctx, claims.UserID())
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.ErrorIs(t, f.svc.DeleteUser(ctx, reg.ID), ErrUserNotFound)
}

func TestPhoneAlreadyRegistered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.register(t, "john@x.com", "Secret@123")
	jane := f.register(t, "jane@x.com", "Secret@123")

	_, err := f.svc.Register(ctx, RegisterInput{Name: "Dup", Email: "dup@x.com", Phone: "081234567890", Password: "Secret@123"})
	assert.ErrorIs(t, err, ErrPhoneAlreadyRegistered)
	_, err = f.repo.FindByEmail(ctx, "dup@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	johnsPhone := "081234567890"
	_, err = f.svc.UpdateProfile(ctx, jane.ID, UpdateProfileInput{Phone: &johnsPhone})
	assert.ErrorIs(t, err, ErrPhoneAlreadyRegistered)

	p, err := f.svc.UpdateProfile(ctx, john.ID, UpdateProfileInput{Phone: &johnsPhone})
	require.NoError(t, err)
	assert.Equal(t, johnsPhone, p.Phone)
}

func TestPasswordTooLong(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	long := strings.Repeat("é", 37) // 74 bytes

	_, err := f.svc.Register(ctx, RegisterInput{Name: "A", Email: "a@x.com", Password: long})
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	f.register(t, "john@x.com", "Secret@123")
	_, err = f.svc.ForgotPassword(ctx, "john@x.com")
	require.NoError(t, err)
	token := f.events.lastReset(t).Token

	_, err = f.svc.ResetPassword(ctx, token, long)
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	// the token survives a rejected attempt
	_, err = f.svc.ResetPassword(ctx, token, "NewSecret@456")
	assert.NoError(t, err)
}

func TestUpdateProfile_Partial(t *testing.T) {
	f := newFixture(t)
	idx := &fakeIndex{docs: map[string]entity.Profile{}}
	f.svc.Index = idx
	ctx := context.Background()
	reg := f.register(t, "john@x.com", "Secret@123")

	pic := "https://img/a.png"
	_, err := f.svc.UpdateProfile(ctx, reg.ID, UpdateProfileInput{ProfilePicture: &pic})
	require.NoError(t, err)

	name := "Johnny"
	p, err := f.svc.UpdateProfile(ctx, reg.ID, UpdateProfileInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Johnny", p.Name)
	assert.Equal(t, "081234567890", p.Phone)
	assert.Equal(t, pic, p.ProfilePicture)
	assert.Equal(t, "Johnny", idx.docs[reg.ID].Name)
}

func TestUpdateProfile_UnknownUser(t *testing.T) {
	f := newFixture(t)
	name := "x"
	_, err := f.svc.UpdateProfile(context.Background(), "missing", UpdateProfileInput{Name: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUploadProfilePicture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "john@x.com", "Secret@123")

	_, err := f.svc.UploadProfilePicture(ctx, reg.ID, strings.NewReader("img"), "me.PNG", "image/png")
	assert.ErrorIs(t, err, ErrPictureStorageDisabled)

	store := &fakeStorage{}
	f.svc.Pictures = store
	p, err := f.svc.UploadProfilePicture(ctx, reg.ID, strings.NewReader("img"), "me.PNG", "image/png")
	require.NoError(t, err)
	require.Len(t, store.paths, 1)
	assert.True(t, strings.HasPrefix(store.paths[0], "avatars/"+reg.ID+"/"))
	assert.True(t, strings.HasSuffix(store.paths[0], ".png"))
	assert.Equal(t, "https://storage.example/"+store.paths[0], p.ProfilePicture)

	_, err = f.svc.UploadProfilePicture(ctx, "missing", strings.NewReader("img"), "me.png", "image/png")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSearchProfiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hits, err := f.svc.SearchProfiles(ctx, "john", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	f.svc.Index = &fakeIndex{docs: map[string]entity.Profile{}}
	f.register(t, "john@x.com", "Secret@123")
	hits, err = f.svc.SearchProfiles(ctx, "john", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "john@x.com", hits[0].Email)
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "john@x.com", "Secret@123")

	known, err := f.svc.ForgotPassword(context.Background(), "john@x.com")
	require.NoError(t, err)
	unknown, err := f.svc.ForgotPassword(context.Background(), "nobody@x.com")
	require.NoError(t, err)

	assert.Equal(t, MsgForgotPassword, known)
	assert.Equal(t, known, unknown)
	assert.Equal(t, []string{EventUserRegistered, EventPasswordResetRequested}, f.events.keys)
}

func TestForgotPassword_PersistsTokenAndExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.svc.Now = func() time.Time { return fixed }
	reg := f.register(t, "john@x.com", "Secret@123")

	_, err := f.svc.ForgotPassword(ctx, "john@x.com")
	require.NoError(t, err)

	ev := f.events.lastReset(t)
	u, err := f.repo.FindByID(ctx, reg.ID)
	require.NoError(t, err)
	require.NotNil(t, u.ResetPasswordToken)
	require.NotNil(t, u.ResetPasswordExpires)
	assert.Equal(t, ev.Token, *u.ResetPasswordToken)
	assert.Equal(t, fixed.Add(ResetTokenTTL), *u.ResetPasswordExpires)
	assert.Equal(t, fixed.Add(ResetTokenTTL), ev.ExpiresAt)
}

func TestResetPassword_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "john@x.com", "Secret@123")

	_, err := f.svc.ForgotPassword(ctx, "john@x.com")
	require.NoError(t, err)
	token := f.events.lastReset(t).Token

	msg, err := f.svc.ResetPassword(ctx, token, "NewSecret@456")
	require.NoError(t, err)
	assert.Equal(t, MsgPasswordReset, msg)

	_, err = f.svc.ResetPassword(ctx, token, "Again@789")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	u, err := f.repo.FindByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Nil(t, u.ResetPasswordToken)
	assert.Nil(t, u.ResetPasswordExpires)

	_, err = f.svc.Login(ctx, "john@x.com", "Secret@123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "john@x.com", "NewSecret@456")
	assert.NoError(t, err)
}

func TestResetPassword_PersistedExpiryPassed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "john@x.com", "Secret@123")

	_, err := f.svc.ForgotPassword(ctx, "john@x.com")
	require.NoError(t, err)
	token := f.events.lastReset(t).Token

	// the signed token is still good, only the stored expiry has lapsed
	_, err = f.repo.Update(ctx, reg.ID, repository.UserUpdate{Reset: &repository.ResetTicket{Token: token, ExpiresAt: time.Now().Add(-time.Minute)}})
	require.NoError(t, err)

	_, err = f.svc.ResetPassword(ctx, token, "NewSecret@456")
	assert.ErrorIs(t, err, ErrResetTokenExpired)

	_, err = f.svc.Login(ctx, "john@x.com", "Secret@123")
	assert.NoError(t, err)
}

func TestResetPassword_ServiceClockPastExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "john@x.com", "Secret@123")

	_, err := f.svc.ForgotPassword(ctx, "john@x.com")
	require.NoError(t, err)
	token := f.events.lastReset(t).Token

	f.svc.Now = func() time.Time { return time.Now().Add(ResetTokenTTL + time.Minute) }
	_, err = f.svc.ResetPassword(ctx, token, "NewSecret@456")
	assert.ErrorIs(t, err, ErrResetTokenExpired)
}

func TestResetPassword_SupersededToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "john@x.com", "Secret@123")

	_, err := f.svc.ForgotPassword(ctx, "john@x.com")
	require.NoError(t, err)
	old := f.events.lastReset(t).Token
	_, err = f.svc.ForgotPassword(ctx, "john@x.com")
	require.NoError(t, err)
	current := f.events.lastReset(t).Token
	require.NotEqual(t, old, current)

	_, err = f.svc.ResetPassword(ctx, old, "NewSecret@456")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	_, err = f.svc.ResetPassword(ctx, current, "NewSecret@456")
	assert.NoError(t, err)
}

func TestResetPassword_RejectsNonResetTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "john@x.com", "Secret@123")

	_, err := f.svc.ResetPassword(ctx, reg.AccessToken, "NewSecret@456")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	_, err = f.svc.ResetPassword(ctx, "garbage", "NewSecret@456")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	foreign, _, err := helpers.NewJWTManager("other-secret", time.Hour).IssueReset(reg.ID, time.Hour)
	require.NoError(t, err)
	_, err = f.svc.ResetPassword(ctx, foreign, "NewSecret@456")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestResetPassword_NeverRequested(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "john@x.com", "Secret@123")

	token, _, err := f.tokens.IssueReset(reg.ID, time.Hour)
	require.NoError(t, err)

	_, err = f.svc.ResetPassword(context.Background(), token, "NewSecret@456")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestResetPasswordForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	john := f.register(t, "john@x.com", "Secret@123")
	jane := f.register(t, "jane@x.com", "Secret@123")

	_, err := f.svc.ForgotPassword(ctx, "john@x.com")
	require.NoError(t, err)
	token := f.events.lastReset(t).Token

	_, err = f.svc.ResetPasswordForUser(ctx, jane.ID, token, "NewSecret@456")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	msg, err := f.svc.ResetPasswordForUser(ctx, john.ID, token, "NewSecret@456")
	require.NoError(t, err)
	assert.Equal(t, MsgPasswordReset, msg)
}

func TestValidateToken(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "john@x.com", "Secret@123")

	_, err := f.svc.ValidateToken(reg.AccessToken)
	assert.NoError(t, err)

	reset, _, err := f.tokens.IssueReset(reg.ID, time.Hour)
	require.NoError(t, err)
	_, err = f.svc.ValidateToken(reset)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.svc.ValidateToken(reg.AccessToken + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_DoesNotCheckStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "john@x.com", "Secret@123")

	inactive := entity.StatusInactive
	_, err := f.repo.Update(ctx, reg.ID, repository.UserUpdate{Status: &inactive})
	require.NoError(t, err)

	_, err = f.svc.ValidateToken(reg.AccessToken)
	assert.NoError(t, err)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, MsgLoggedOut, f.svc.Logout(context.Background(), "any"))
}
