package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/kios-auth/config"
	"github.com/oksasatya/kios-auth/internal/application"
	"github.com/oksasatya/kios-auth/internal/domain/entity"
	"github.com/oksasatya/kios-auth/internal/domain/repository"
	pginfra "github.com/oksasatya/kios-auth/internal/infrastructure/postgres"
	"github.com/oksasatya/kios-auth/internal/infrastructure/rediscache"
	"github.com/oksasatya/kios-auth/pkg/helpers"
)

type seedUser struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

var defaultUsers = []seedUser{
	{Name: "Admin Kios", Email: "admin@kios.com", Phone: "081234567890", Password: "Admin@123456"},
	{Name: "Test User", Email: "test@kios.com", Phone: "081234567891", Password: "Test@123456"},
	{Name: "Demo User", Email: "demo@kios.com", Phone: "081234567892", Password: "Demo@123456"},
}

func main() {
	purge := flag.Bool("purge", false, "delete the seeded users instead of creating them")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)

	ctx := context.Background()
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{MaxConns: 2, MinConns: 1})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := pginfra.NewUserRepository(pool)
	if *purge {
		svc := application.NewAuthService(repo, helpers.NewBcryptHasher(), helpers.NewJWTManager(cfg.JWTSecret, cfg.AccessTTL), logger)
		// cached profiles of purged users must not outlive them
		rdb, err := helpers.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable; cached profiles expire on their own")
			_ = rdb.Close()
		} else {
			defer func() { _ = rdb.Close() }()
			svc.Cache = rediscache.NewProfileCache(rdb, cfg.ProfileCacheTTL)
		}
		if err := purgeUsers(ctx, svc, defaultUsers, logger); err != nil {
			log.Fatalf("purge failed: %v", err)
		}
		return
	}
	if err := seedUsers(ctx, repo, helpers.NewBcryptHasher(), defaultUsers, logger); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

// seedUsers creates each user unless the email is already registered.
func seedUsers(ctx context.Context, repo repository.UserRepository, hasher application.PasswordHasher, users []seedUser, logger *logrus.Logger) error {
	for _, su := range users {
		email := application.NormalizeEmail(su.Email)
		if _, err := repo.FindByEmail(ctx, email); err == nil {
			logger.WithField("email", email).Info("user exists, skipping")
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		hash, err := hasher.Hash(su.Password)
		if err != nil {
			return err
		}
		u := &entity.User{
			Name:     su.Name,
			Email:    email,
			Phone:    su.Phone,
			Password: hash,
			Status:   entity.StatusActive,
		}
		if err := repo.Create(ctx, u); err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"id": u.ID, "email": email}).Info("seeded user")
	}
	return nil
}

// purgeUsers deletes through the service so the profile cache is evicted too.
func purgeUsers(ctx context.Context, svc *application.AuthService, users []seedUser, logger *logrus.Logger) error {
	for _, su := range users {
		email := application.NormalizeEmail(su.Email)
		u, err := svc.Repo.FindByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := svc.DeleteUser(ctx, u.ID); err != nil && !errors.Is(err, application.ErrUserNotFound) {
			return err
		}
		logger.WithField("email", email).Info("deleted user")
	}
	return nil
}
