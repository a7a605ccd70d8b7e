// Package services contains server-side business logic. This file implements
// UserService: account creation with an optional profile photo, updates,
// profile photo replacement and removal, and deletion.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/dbx"
	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/server/auth"
	"github.com/dmitrijs2005/mediakeeper/internal/server/config"
	"github.com/dmitrijs2005/mediakeeper/internal/server/models"
	"github.com/dmitrijs2005/mediakeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mediakeeper/internal/server/upload"
)

// ErrNoProfilePhoto is returned when removing a photo the account does not have.
var ErrNoProfilePhoto = errors.New("user has no profile photo")

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// NewUser is the input for CreateUser.
type NewUser struct {
	Username string
	Email    string
	FullName string
	Bio      string
	Password string
}

// UserUpdate carries the fields to change; nil fields are left alone.
type UserUpdate struct {
	FullName *string
	Email    *string
	Bio      *string
	Password *string
}

// Uploads is the part of the upload coordinator the account flows need.
type Uploads interface {
	Create(ctx context.Context, p upload.Policy, f upload.File, persist upload.PersistFunc) (*models.UploadedAsset, error)
	Replace(ctx context.Context, p upload.Policy, f upload.File, oldRemoteID string, persist upload.PersistFunc) (*models.UploadedAsset, error)
	Unlink(ctx context.Context, oldRemoteID string, persist func(ctx context.Context) error) error
}

type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	uploads                      Uploads
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, uploads Uploads, logger logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		uploads:                      uploads,
		logger:                       logger.With("module", "users"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// CreateUser validates the account, checks it is not taken and stores it
// together with a refresh token. With a photo, the record is written only
// after the transfer succeeded, and the photo is deleted again if the write
// fails.
func (s *UserService) CreateUser(ctx context.Context, in NewUser, photo *upload.File) (*models.User, *TokenPair, error) {
	user := &models.User{
		Username: common.NormalizeIdentity(in.Username),
		Email:    common.NormalizeIdentity(in.Email),
		FullName: strings.TrimSpace(in.FullName),
		Bio:      strings.TrimSpace(in.Bio),
	}

	if err := errors.Join(
		validateUsername(user.Username),
		validateEmail(user.Email),
		validateFullName(user.FullName),
		validateBio(user.Bio),
		validatePassword(in.Password),
	); err != nil {
		return nil, nil, err
	}

	_, err := s.repomanager.Users(s.db).FindByUsernameOrEmail(ctx, user.Username, user.Email)
	switch {
	case err == nil:
		return nil, nil, common.ErrorAlreadyExists
	case !errors.Is(err, common.ErrorNotFound):
		return nil, nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	var refresh string
	if photo == nil {
		refresh, err = s.insertUser(ctx, user)
	} else {
		_, err = s.uploads.Create(ctx, upload.ProfilePolicy(), *photo, func(ctx context.Context, asset *models.UploadedAsset) error {
			user.SetProfilePhoto(asset)
			var perr error
			refresh, perr = s.insertUser(ctx, user)
			return perr
		})
	}
	if err != nil {
		return nil, nil, err
	}

	access, err := auth.GenerateAccessToken(user.ID, user.Username, user.Email, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "user created", "user_id", user.ID, "with_photo", user.HasProfilePhoto())
	return user, &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// insertUser writes the account and its first refresh token in one
// transaction.
func (s *UserService) insertUser(ctx context.Context, user *models.User) (string, error) {
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return "", common.ErrorInternal
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Users(tx).Create(ctx, user); err != nil {
			return err
		}
		return s.repomanager.RefreshTokens(tx).Create(ctx, &models.RefreshToken{
			UserID:  user.ID,
			Token:   refresh,
			Expires: time.Now().Add(s.refreshTokenValidityDuration),
		})
	})
	if err != nil {
		return "", err
	}
	return refresh, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.repomanager.Users(s.db).FindByID(ctx, id)
}

// UpdateUser applies the non-nil fields of upd. The password is hashed only
// when it is supplied.
func (s *UserService) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	var errs []error
	if upd.FullName != nil {
		user.FullName = strings.TrimSpace(*upd.FullName)
		errs = append(errs, validateFullName(user.FullName))
	}
	if upd.Email != nil {
		user.Email = common.NormalizeIdentity(*upd.Email)
		errs = append(errs, validateEmail(user.Email))
	}
	if upd.Bio != nil {
		user.Bio = strings.TrimSpace(*upd.Bio)
		errs = append(errs, validateBio(user.Bio))
	}
	if upd.Password != nil {
		errs = append(errs, validatePassword(*upd.Password))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if upd.Password != nil {
		hash, err := auth.HashPassword(*upd.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.repomanager.Users(s.db).Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfilePhoto stores photo and points the account at it. The previous
// photo, if any, is deleted only after the new reference is saved.
func (s *UserService) UpdateProfilePhoto(ctx context.Context, id string, photo upload.File) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	old := user.ProfilePhotoID
	_, err = s.uploads.Replace(ctx, upload.ProfilePolicy(), photo, old, func(ctx context.Context, asset *models.UploadedAsset) error {
		user.SetProfilePhoto(asset)
		return s.repomanager.Users(s.db).Save(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RemoveProfilePhoto clears the reference and then deletes the photo.
func (s *UserService) RemoveProfilePhoto(ctx context.Context, id string) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.HasProfilePhoto() {
		return nil, ErrNoProfilePhoto
	}

	old := user.ClearProfilePhoto()
	if err := s.uploads.Unlink(ctx, old, func(ctx context.Context) error {
		return s.repomanager.Users(s.db).Save(ctx, user)
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes the account and then, best-effort, its photo.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	return s.uploads.Unlink(ctx, user.ProfilePhotoID, func(ctx context.Context) error {
		return s.repomanager.Users(s.db).Delete(ctx, id)
	})
}
