package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/dbx"
	"github.com/dmitrijs2005/mediakeeper/internal/server/models"
)

const selectColumns = `id, username, email, full_name, bio, password_hash, profile_photo_id, profile_photo_url, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, email, full_name, bio, password_hash, profile_photo_id, profile_photo_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.FullName, user.Bio, user.PasswordHash,
		nullString(user.ProfilePhotoID), nullString(user.ProfilePhotoURL),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, wrapError(err)
	}

	return user, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + selectColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindByUsernameOrEmail returns the first account whose username or email
// matches. Both arguments are expected to be normalized already.
func (r *PostgresRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	query := `SELECT ` + selectColumns + ` FROM users WHERE username = $1 OR email = $2 LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, username, email))
}

// Save writes every mutable column of user. It is an unconditional update:
// concurrent writers to the same row overwrite each other.
func (r *PostgresRepository) Save(ctx context.Context, user *models.User) error {
	query :=
		`UPDATE users
		 SET username = $2, email = $3, full_name = $4, bio = $5, password_hash = $6,
		     profile_photo_id = $7, profile_photo_url = $8, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.FullName, user.Bio, user.PasswordHash,
		nullString(user.ProfilePhotoID), nullString(user.ProfilePhotoURL),
	).Scan(&user.UpdatedAt)
	if err != nil {
		return wrapError(err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return wrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	var (
		user     models.User
		photoID  sql.NullString
		photoURL sql.NullString
	)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.Bio, &user.PasswordHash,
		&photoID, &photoURL, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, wrapError(err)
	}
	user.ProfilePhotoID = photoID.String
	user.ProfilePhotoURL = photoURL.String
	return &user, nil
}

func wrapError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return common.ErrorNotFound
	case dbx.IsUniqueViolation(err):
		return fmt.Errorf("db error: %w: %w", common.ErrorAlreadyExists, err)
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
