package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/kios-auth/internal/interface/http"
	"github.com/oksasatya/kios-auth/internal/interface/middleware"
)

// UserModule exposes profile search: GET /api/users/search (auth required)
type UserModule struct {
	Handler *handlers.UserHandler
	Guard   gin.HandlerFunc
	RDB     *redis.Client
}

func NewUserModule(h *handlers.UserHandler, guard gin.HandlerFunc, rdb *redis.Client) *UserModule {
	return &UserModule{Handler: h, Guard: guard, RDB: rdb}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	g := rg.Group("/users")
	g.Use(m.Guard, middleware.RateLimit(m.RDB, 60, time.Minute, middleware.KeyByUserID(), nil))
	g.GET("/search", m.Handler.Search)
}
