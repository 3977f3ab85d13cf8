package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/kios-auth/internal/domain/entity"
	"github.com/oksasatya/kios-auth/internal/domain/repository"
)

const (
	pgUniqueViolation = "23505"
	pgInvalidText     = "22P02"
)

// DBTX is the subset of pgxpool.Pool used by the repository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id, name, email, COALESCE(phone, ''), COALESCE(profile_picture, ''), password_hash, status,
		reset_password_token, reset_password_expires, last_login, created_at, updated_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	if u.Status == "" {
		u.Status = entity.StatusActive
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (name, email, phone, profile_picture, password_hash, status)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6)
		RETURNING id, created_at, updated_at
	`, u.Name, u.Email, u.Phone, u.ProfilePicture, u.Password, string(u.Status))

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapError(err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email)
	return scanUser(row)
}

func (r *UserRepository) Update(ctx context.Context, id string, upd repository.UserUpdate) (*entity.User, error) {
	sets := make([]string, 0, 8)
	args := make([]any, 0, 8)
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if upd.Name != nil {
		add("name = $%d", *upd.Name)
	}
	if upd.Phone != nil {
		add("phone = NULLIF($%d, '')", *upd.Phone)
	}
	if upd.ProfilePicture != nil {
		add("profile_picture = NULLIF($%d, '')", *upd.ProfilePicture)
	}
	if upd.Password != nil {
		add("password_hash = $%d", *upd.Password)
	}
	if upd.Status != nil {
		add("status = $%d", string(*upd.Status))
	}
	if upd.LastLogin != nil {
		add("last_login = $%d", *upd.LastLogin)
	}
	switch {
	case upd.Reset != nil:
		add("reset_password_token = $%d", upd.Reset.Token)
		add("reset_password_expires = $%d", upd.Reset.ExpiresAt)
	case upd.ClearReset:
		sets = append(sets, "reset_password_token = NULL", "reset_password_expires = NULL")
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	q := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING `+userColumns, strings.Join(sets, ", "), len(args))
	return scanUser(r.db.QueryRow(ctx, q, args...))
}

func (r *UserRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(mapError(err), repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *UserRepository) CompletePasswordReset(ctx context.Context, id, token, passwordHash string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET password_hash = $1, reset_password_token = NULL, reset_password_expires = NULL, updated_at = now()
		WHERE id = $2 AND reset_password_token = $3
	`, passwordHash, id, token)
	if err != nil {
		if errors.Is(mapError(err), repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	var status string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.ProfilePicture, &u.Password, &status,
		&u.ResetPasswordToken, &u.ResetPasswordExpires, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	u.Status = entity.Status(status)
	return u, nil
}

// mapError translates driver errors into repository sentinels.
// A malformed uuid can never match a row, so it reads as not found.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			switch {
			case strings.Contains(pgErr.ConstraintName, "email"):
				return repository.ErrEmailTaken
			case strings.Contains(pgErr.ConstraintName, "phone"):
				return repository.ErrPhoneTaken
			}
			return fmt.Errorf("unique violation on %s: %w", pgErr.ConstraintName, err)
		case pgInvalidText:
			return repository.ErrNotFound
		}
	}
	return err
}

var _ repository.UserRepository = (*UserRepository)(nil)
