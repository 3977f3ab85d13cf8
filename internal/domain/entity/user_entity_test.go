package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserProfile_OmitsSecrets(t *testing.T) {
	tok := "reset-token"
	exp := time.Now().Add(time.Hour)
	u := &User{
		ID:                   "u-1",
		Name:                 "John Doe",
		Email:                "john@x.com",
		Password:             "$2a$10$hash",
		Status:               StatusActive,
		ResetPasswordToken:   &tok,
		ResetPasswordExpires: &exp,
	}

	b, err := json.Marshal(u.Profile())
	require.NoError(t, err)

	body := string(b)
	assert.Contains(t, body, `"email":"john@x.com"`)
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "$2a$10$hash")
	assert.NotContains(t, body, "reset-token")
}

func TestUserIsActive(t *testing.T) {
	assert.True(t, (&User{Status: StatusActive}).IsActive())
	assert.False(t, (&User{Status: StatusInactive}).IsActive())
	assert.False(t, (&User{}).IsActive())
}
