package application

import "errors"

var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrPhoneAlreadyRegistered = errors.New("phone already registered")
	ErrPasswordTooLong        = errors.New("password must be at most 72 bytes")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrAccountInactive        = errors.New("user account is inactive")
	ErrUserNotFound           = errors.New("user not found")
	ErrInvalidToken           = errors.New("invalid token")
	ErrInvalidResetToken      = errors.New("invalid reset token")
	ErrResetTokenExpired      = errors.New("reset token has expired")
	ErrPictureStorageDisabled = errors.New("picture storage not configured")
)

const (
	MsgForgotPassword = "If the email exists, a reset link was sent"
	MsgPasswordReset  = "Password has been reset successfully"
	MsgLoggedOut      = "Logged out successfully"
)
