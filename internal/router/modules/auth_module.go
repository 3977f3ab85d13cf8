package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/kios-auth/internal/interface/http"
	"github.com/oksasatya/kios-auth/internal/interface/middleware"
)

// AuthModule wires the account endpoints.
// Public: register, login, forgot-password, reset-password
// Protected: profile, profile/update, profile/picture, logout
type AuthModule struct {
	Auth  *handlers.AuthHandler
	Users *handlers.UserHandler
	Guard gin.HandlerFunc
	RDB   *redis.Client
}

func NewAuthModule(auth *handlers.AuthHandler, users *handlers.UserHandler, guard gin.HandlerFunc, rdb *redis.Client) *AuthModule {
	return &AuthModule{Auth: auth, Users: users, Guard: guard, RDB: rdb}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	// Public endpoints with IP-based rate limits
	registerLimiter := middleware.RateLimit(m.RDB, 10, time.Minute, middleware.KeyByIPAndPath(), nil)
	loginLimiter := middleware.RateLimit(m.RDB, 10, time.Minute, middleware.KeyByIPAndPath(), nil)
	forgotLimiter := middleware.RateLimit(m.RDB, 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetLimiter := middleware.RateLimit(m.RDB, 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	g := rg.Group("/auth")
	g.POST("/register", registerLimiter, m.Auth.Register)
	g.POST("/login", loginLimiter, m.Auth.Login)
	g.POST("/forgot-password", forgotLimiter, m.Auth.ForgotPassword)
	g.POST("/reset-password", resetLimiter, m.Auth.ResetPassword)
	g.POST("/users/:id/reset-password", resetLimiter, m.Auth.ResetPasswordForUser)

	// Protected
	auth := g.Group("")
	auth.Use(m.Guard)
	auth.Use(middleware.RateLimit(m.RDB, 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.GET("/profile", m.Users.GetProfile)
		auth.POST("/profile/update", m.Users.UpdateProfile)
		auth.POST("/profile/picture", m.Users.UploadPicture)
		auth.POST("/logout", m.Auth.Logout)
	}
}
