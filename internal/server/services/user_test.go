package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/dbx"
	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/server/auth"
	"github.com/dmitrijs2005/mediakeeper/internal/server/config"
	"github.com/dmitrijs2005/mediakeeper/internal/server/models"
	refreshtokensrepo "github.com/dmitrijs2005/mediakeeper/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/mediakeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/mediakeeper/internal/server/storage"
	"github.com/dmitrijs2005/mediakeeper/internal/server/upload"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeUsersRepo struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	err     error // returned by Create and Save when set
	deleted []string
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: make(map[string]*models.User)}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u.ID = uuid.NewString()
	cp := *u
	f.byID[u.ID] = &cp
	return u, nil
}

func (f *fakeUsersRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) FindByUsernameOrEmail(_ context.Context, username, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == username || u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) Save(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.byID[u.ID]; !ok {
		return common.ErrorNotFound
	}
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsersRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUsersRepo) put(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	f.byID[u.ID] = &cp
	return u
}

type fakeRefreshRepo struct {
	created   []*models.RefreshToken
	createErr error
}

func (f *fakeRefreshRepo) Create(_ context.Context, t *models.RefreshToken) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, t)
	return nil
}

type fakeRM struct {
	users   *fakeUsersRepo
	refresh *fakeRefreshRepo
}

func (f *fakeRM) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (f *fakeRM) Users(dbx.DBTX) usersrepo.Repository                 { return f.users }
func (f *fakeRM) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository { return f.refresh }

// --- helpers ---

type fixture struct {
	svc     *UserService
	mock    sqlmock.Sqlmock
	users   *fakeUsersRepo
	refresh *fakeRefreshRepo
	storage *storage.MemoryClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}

	mem := storage.NewMemoryClient("http://cdn.test")
	deleter := upload.NewRetryableDeleter(mem, logging.Nop(), upload.WithBackoffUnit(0))
	coord := upload.NewCoordinator(mem, deleter, logging.Nop())

	rm := &fakeRM{users: newFakeUsersRepo(), refresh: &fakeRefreshRepo{}}
	return &fixture{
		svc:     NewUserService(db, rm, coord, logging.Nop(), cfg),
		mock:    mock,
		users:   rm.users,
		refresh: rm.refresh,
		storage: mem,
	}
}

func validNewUser() NewUser {
	return NewUser{
		Username: "  Ada.L ",
		Email:    "Ada@Example.com",
		FullName: "Ada Lovelace",
		Bio:      "engines",
		Password: "secret1",
	}
}

func photo(name string) *upload.File {
	return &upload.File{
		Request: upload.Request{MimeType: "image/png", Filename: name, Size: 3, FieldName: "profilePhoto", Count: 1},
		Body:    strings.NewReader("png"),
	}
}

func strPtr(s string) *string { return &s }

// --- tests ---

func TestCreateUser_WithoutPhoto(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	u, pair, err := f.svc.CreateUser(context.Background(), validNewUser(), nil)
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.Equal(t, "ada.l", u.Username)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.False(t, u.HasProfilePhoto())

	ok, err := auth.VerifyPassword("secret1", u.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, f.refresh.created, 1)
	assert.Equal(t, pair.RefreshToken, f.refresh.created[0].Token)
	assert.Equal(t, u.ID, f.refresh.created[0].UserID)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestCreateUser_WithPhoto(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	u, _, err := f.svc.CreateUser(context.Background(), validNewUser(), photo("me.png"))
	require.NoError(t, err)
	require.True(t, u.HasProfilePhoto())
	assert.True(t, strings.HasPrefix(u.ProfilePhotoID, "profile_photos/"))
	assert.Equal(t, "http://cdn.test/"+u.ProfilePhotoID, u.ProfilePhotoURL)
	assert.True(t, f.storage.Has(u.ProfilePhotoID))

	stored, err := f.users.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ProfilePhotoID, stored.ProfilePhotoID)
}

func TestCreateUser_InvalidFieldsStoreNothing(t *testing.T) {
	f := newFixture(t)
	in := validNewUser()
	in.Password = "123"
	in.Email = "not-an-email"

	_, _, err := f.svc.CreateUser(context.Background(), in, photo("me.png"))
	require.ErrorIs(t, err, ErrInvalidInput)

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "email", fe.Field)
	assert.Equal(t, 0, f.storage.Len())
}

func TestCreateUser_Taken(t *testing.T) {
	f := newFixture(t)
	f.users.put(&models.User{Username: "ada.l", Email: "other@example.com"})

	_, _, err := f.svc.CreateUser(context.Background(), validNewUser(), photo("me.png"))
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
	assert.Equal(t, 0, f.storage.Len())
}

func TestCreateUser_PersistFailureCompensatesPhoto(t *testing.T) {
	f := newFixture(t)
	f.users.err = common.ErrorAlreadyExists
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, _, err := f.svc.CreateUser(context.Background(), validNewUser(), photo("me.png"))
	require.ErrorIs(t, err, common.ErrorAlreadyExists)

	var ae *upload.AttemptError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, upload.RejectedAtPersistence, ae.State)
	assert.Equal(t, 0, f.storage.Len())
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateUser_RefreshTokenFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.refresh.createErr = errors.New("insert failed")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, _, err := f.svc.CreateUser(context.Background(), validNewUser(), nil)
	require.Error(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateUser_BadPhotoType(t *testing.T) {
	f := newFixture(t)
	p := photo("anim.gif")
	p.MimeType = "image/gif"

	_, _, err := f.svc.CreateUser(context.Background(), validNewUser(), p)

	var ve *upload.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, upload.UnsupportedType, ve.Code)
	assert.Equal(t, 0, f.storage.Len())
}

func TestGetUser(t *testing.T) {
	f := newFixture(t)
	u := f.users.put(&models.User{Username: "ada"})

	got, err := f.svc.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Username)

	_, err = f.svc.GetUser(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = f.svc.GetUser(context.Background(), "42")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateUser_PasswordHashedOnlyWhenSupplied(t *testing.T) {
	f := newFixture(t)
	u := f.users.put(&models.User{Username: "ada", Email: "ada@example.com", FullName: "Ada", PasswordHash: "old-hash"})

	got, err := f.svc.UpdateUser(context.Background(), u.ID, UserUpdate{Bio: strPtr("hello")})
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Bio)
	assert.Equal(t, "old-hash", got.PasswordHash)

	got, err = f.svc.UpdateUser(context.Background(), u.ID, UserUpdate{Password: strPtr("newpass")})
	require.NoError(t, err)
	ok, err := auth.VerifyPassword("newpass", got.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateUser_Invalid(t *testing.T) {
	f := newFixture(t)
	u := f.users.put(&models.User{Username: "ada"})

	_, err := f.svc.UpdateUser(context.Background(), u.ID, UserUpdate{FullName: strPtr("R2D2")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.UpdateUser(context.Background(), u.ID, UserUpdate{Bio: strPtr(strings.Repeat("x", 201))})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateProfilePhoto_ReplacesOld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old, err := f.storage.Store(ctx, storage.Object{Folder: models.FolderProfile, Filename: "old.png", Body: strings.NewReader("x")})
	require.NoError(t, err)
	u := f.users.put(&models.User{Username: "ada", ProfilePhotoID: old.RemoteID, ProfilePhotoURL: old.URL})

	got, err := f.svc.UpdateProfilePhoto(ctx, u.ID, *photo("new.png"))
	require.NoError(t, err)
	assert.NotEqual(t, old.RemoteID, got.ProfilePhotoID)
	assert.True(t, f.storage.Has(got.ProfilePhotoID))
	assert.False(t, f.storage.Has(old.RemoteID))

	stored, err := f.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, got.ProfilePhotoURL, stored.ProfilePhotoURL)
}

func TestUpdateProfilePhoto_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateProfilePhoto(context.Background(), uuid.NewString(), *photo("new.png"))
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, 0, f.storage.Len())
}

func TestRemoveProfilePhoto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old, err := f.storage.Store(ctx, storage.Object{Folder: models.FolderProfile, Filename: "old.png", Body: strings.NewReader("x")})
	require.NoError(t, err)
	u := f.users.put(&models.User{Username: "ada", ProfilePhotoID: old.RemoteID, ProfilePhotoURL: old.URL})

	got, err := f.svc.RemoveProfilePhoto(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.HasProfilePhoto())
	assert.False(t, f.storage.Has(old.RemoteID))

	_, err = f.svc.RemoveProfilePhoto(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNoProfilePhoto)
}

func TestDeleteUser_RemovesRecordThenPhoto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old, err := f.storage.Store(ctx, storage.Object{Folder: models.FolderProfile, Filename: "old.png", Body: strings.NewReader("x")})
	require.NoError(t, err)
	u := f.users.put(&models.User{Username: "ada", ProfilePhotoID: old.RemoteID})

	require.NoError(t, f.svc.DeleteUser(ctx, u.ID))
	assert.Equal(t, []string{u.ID}, f.users.deleted)
	assert.Equal(t, 0, f.storage.Len())

	assert.ErrorIs(t, f.svc.DeleteUser(ctx, u.ID), common.ErrorNotFound)
}
