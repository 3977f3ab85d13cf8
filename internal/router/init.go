package router

import (
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/kios-auth/internal/application"
	"github.com/oksasatya/kios-auth/internal/container"
	repouser "github.com/oksasatya/kios-auth/internal/domain/repository"
	"github.com/oksasatya/kios-auth/internal/infrastructure/esindex"
	"github.com/oksasatya/kios-auth/internal/infrastructure/gcs"
	"github.com/oksasatya/kios-auth/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/kios-auth/internal/infrastructure/postgres"
	"github.com/oksasatya/kios-auth/internal/infrastructure/rediscache"
	handlers "github.com/oksasatya/kios-auth/internal/interface/http"
	"github.com/oksasatya/kios-auth/internal/interface/middleware"
	"github.com/oksasatya/kios-auth/internal/router/modules"
	"github.com/oksasatya/kios-auth/pkg/helpers"
	"github.com/oksasatya/kios-auth/pkg/validation"
)

type AuthModuleDeps struct {
	Repo        repouser.UserRepository
	Service     *application.AuthService
	AuthHandler *handlers.AuthHandler
	UserHandler *handlers.UserHandler
}

// NewUserRepository picks Postgres when a pool is available, memory otherwise.
func NewUserRepository() repouser.UserRepository {
	if pool := container.GetPGPool(); pool != nil {
		return pginfra.NewUserRepository(pool)
	}
	return memory.NewUserRepository()
}

func buildAuthDeps() AuthModuleDeps {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	repo := NewUserRepository()

	service := application.NewAuthService(repo, helpers.NewBcryptHasher(), container.GetJWT(), logger)
	if pub := container.GetRabbitPub(); pub != nil {
		service.Events = pub
	}
	if rdb := container.GetRedis(); rdb != nil {
		service.Cache = rediscache.NewProfileCache(rdb, cfg.ProfileCacheTTL)
	}
	if es := container.GetES(); es != nil {
		service.Index = esindex.NewProfileIndex(es, cfg.ESUsersIndex)
	}
	if pictures, err := gcs.NewPictureStorage(container.GetGCS(), cfg.GCSBucket); err == nil {
		service.Pictures = pictures
	}

	return AuthModuleDeps{
		Repo:        repo,
		Service:     service,
		AuthHandler: handlers.NewAuthHandler(service, logger, cfg.CookieDomain, cfg.CookieSecure),
		UserHandler: handlers.NewUserHandler(service, logger),
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	validation.Init()
	cfg := container.GetConfig()
	rdb := container.GetRedis()

	deps := buildAuthDeps()
	guard := middleware.Auth(deps.Service)

	r.Add(modules.NewAuthModule(deps.AuthHandler, deps.UserHandler, guard, rdb))
	r.Add(modules.NewUserModule(deps.UserHandler, guard, rdb))
	r.AddRoot(modules.NewSystemModule(cfg.MetricsEnabled, rdb))
}
