package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/dbx"
	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/server/config"
	"github.com/dmitrijs2005/mediakeeper/internal/server/models"
	"github.com/dmitrijs2005/mediakeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/mediakeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/mediakeeper/internal/server/services"
	"github.com/dmitrijs2005/mediakeeper/internal/server/storage"
	"github.com/dmitrijs2005/mediakeeper/internal/server/upload"
)

// countingStorage records how often the provider was reached.
type countingStorage struct {
	*storage.MemoryClient
	mu       sync.Mutex
	stores   int
	destroys int
}

func (c *countingStorage) Store(ctx context.Context, obj storage.Object) (*models.UploadedAsset, error) {
	c.mu.Lock()
	c.stores++
	c.mu.Unlock()
	return c.MemoryClient.Store(ctx, obj)
}

func (c *countingStorage) Destroy(ctx context.Context, remoteID string) (storage.Outcome, error) {
	c.mu.Lock()
	c.destroys++
	c.mu.Unlock()
	return c.MemoryClient.Destroy(ctx, remoteID)
}

// memUsers is an in-memory record store. createErr, when set, is returned
// by Create after the duplicate pre-check has already passed.
type memUsers struct {
	mu        sync.Mutex
	rows      map[string]models.User
	createErr error
}

func (m *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.rows[u.ID] = *u
	return u, nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (m *memUsers) FindByUsernameOrEmail(_ context.Context, username, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Username == username || u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) Save(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[u.ID]; !ok {
		return common.ErrorNotFound
	}
	m.rows[u.ID] = *u
	return nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(m.rows, id)
	return nil
}

type memTokens struct{}

func (memTokens) Create(context.Context, *models.RefreshToken) error { return nil }

type memManager struct{ users *memUsers }

func (m memManager) RunMigrations(context.Context, *sql.DB) error     { return nil }
func (m memManager) Users(dbx.DBTX) users.Repository                  { return m.users }
func (m memManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return memTokens{} }

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type testAPI struct {
	router  http.Handler
	storage *countingStorage
	users   *memUsers
	mock    sqlmock.Sqlmock
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := &countingStorage{MemoryClient: storage.NewMemoryClient("http://cdn.test")}
	deleter := upload.NewRetryableDeleter(store, logging.Nop(), upload.WithBackoffUnit(0))
	coord := upload.NewCoordinator(store, deleter, logging.Nop())

	rows := &memUsers{rows: make(map[string]models.User)}
	cfg := &config.Config{SecretKey: "k", AccessTokenValidityDuration: time.Minute, RefreshTokenValidityDuration: time.Hour}
	svc := services.NewUserService(db, memManager{users: rows}, coord, logging.Nop(), cfg)

	ready := pingFunc(func(context.Context) error { return nil })
	h := NewHandler(coord, svc, ready, logging.Nop(), 26<<20)

	return &testAPI{router: NewRouter(h), storage: store, users: rows, mock: mock}
}

type filePart struct {
	field, filename, contentType string
	data                         []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		hdr.Set("Content-Type", f.contentType)
		pw, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = pw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (a *testAPI) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()

	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env Envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func dataMap(t *testing.T, env Envelope) map[string]any {
	t.Helper()
	m, ok := env.Data.(map[string]any)
	require.True(t, ok, "data is %T", env.Data)
	return m
}

var errUniqueViolation = errors.Join(common.ErrorAlreadyExists, errors.New("duplicate key value violates unique constraint"))

// recordingLogger keeps the messages of every Error, Warn and Info call.
type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(context.Context, string, ...any)         {}
func (l *recordingLogger) Info(_ context.Context, msg string, _ ...any)  { l.record(msg) }
func (l *recordingLogger) Warn(_ context.Context, msg string, _ ...any)  { l.record(msg) }
func (l *recordingLogger) Error(_ context.Context, msg string, _ ...any) { l.record(msg) }
func (l *recordingLogger) With(...any) logging.Logger                    { return l }

func (l *recordingLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.msgs...)
}
