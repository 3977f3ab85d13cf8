package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/kios-auth/internal/application"
	"github.com/oksasatya/kios-auth/internal/domain/entity"
	"github.com/oksasatya/kios-auth/internal/interface/middleware"
	"github.com/oksasatya/kios-auth/pkg/helpers"
	"github.com/oksasatya/kios-auth/pkg/response"
	"github.com/oksasatya/kios-auth/pkg/validation"
)

// AuthService is the application surface the HTTP layer depends on.
type AuthService interface {
	Register(ctx context.Context, in application.RegisterInput) (*application.AuthResult, error)
	Login(ctx context.Context, email, password string) (*application.AuthResult, error)
	Profile(ctx context.Context, userID string) (*entity.Profile, error)
	UpdateProfile(ctx context.Context, userID string, in application.UpdateProfileInput) (*entity.Profile, error)
	UploadProfilePicture(ctx context.Context, userID string, r io.Reader, filename, contentType string) (*entity.Profile, error)
	SearchProfiles(ctx context.Context, query string, size int) ([]entity.Profile, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) (string, error)
	ResetPasswordForUser(ctx context.Context, userID, token, newPassword string) (string, error)
	Logout(ctx context.Context, userID string) string
}

type AuthHandler struct {
	Svc     AuthService
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewAuthHandler(svc AuthService, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,notblank,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"required,phone"`
	Password string `json:"password" binding:"required,pwd"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,pwd"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Register(c.Request.Context(), application.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, h.Logger, "register", err)
		return
	}
	observe("register", nil)
	response.Success(c, http.StatusCreated, res, "registration successful", nil)
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.Logger, "login", err)
		return
	}
	observe("login", nil)
	h.Cookies.SetAccess(c, res.AccessToken, res.ExpiresAt)
	response.Success(c, http.StatusOK, res, "login successful", map[string]any{"access_expires_at": res.ExpiresAt})
}

// ForgotPassword POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	msg, err := h.Svc.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, h.Logger, "forgot_password", err)
		return
	}
	observe("forgot_password", nil)
	response.Success(c, http.StatusOK, messageResponse{Message: msg}, msg, nil)
}

// ResetPassword POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	msg, err := h.Svc.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		writeError(c, h.Logger, "reset_password", err)
		return
	}
	observe("reset_password", nil)
	response.Success(c, http.StatusOK, messageResponse{Message: msg}, msg, nil)
}

// ResetPasswordForUser POST /api/auth/users/:id/reset-password
func (h *AuthHandler) ResetPasswordForUser(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	msg, err := h.Svc.ResetPasswordForUser(c.Request.Context(), c.Param("id"), req.Token, req.NewPassword)
	if err != nil {
		writeError(c, h.Logger, "reset_password", err)
		return
	}
	observe("reset_password", nil)
	response.Success(c, http.StatusOK, messageResponse{Message: msg}, msg, nil)
}

// Logout POST /api/auth/logout (auth required)
func (h *AuthHandler) Logout(c *gin.Context) {
	msg := h.Svc.Logout(c.Request.Context(), c.GetString(middleware.CtxUserIDKey))
	observe("logout", nil)
	h.Cookies.Clear(c)
	response.Success(c, http.StatusOK, messageResponse{Message: msg}, msg, nil)
}
