package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/task-tracker/internal/config"
	"github.com/iliyamo/task-tracker/internal/middleware"
	"github.com/iliyamo/task-tracker/internal/model"
	"github.com/iliyamo/task-tracker/internal/repository"
)

// fakeUserStore is an in-memory UserStore with the same atomicity
// semantics as the MySQL implementation: RotateRefresh is a
// compare-and-swap, so concurrent rotations with the same stale token
// have exactly one winner.
type fakeUserStore struct {
	mu    sync.Mutex
	seq   uint64
	users map[uint64]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[uint64]*model.User{}}
}

func (s *fakeUserStore) Create(_ context.Context, username, email, passwordHash string, role model.Role) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return 0, repository.ErrUsernameExists
		}
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	s.seq++
	s.users[s.seq] = &model.User{
		ID: s.seq, Username: username, Email: email,
		PasswordHash: passwordHash, Role: role, IsActive: true,
	}
	return s.seq, nil
}

func (s *fakeUserStore) GetByIdentifier(_ context.Context, identifier string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == identifier || u.Email == identifier {
			return *u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (s *fakeUserStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return *u, nil
	}
	return model.User{}, sql.ErrNoRows
}

func (s *fakeUserStore) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	u.RefreshTokenHash = &tokenHash
	u.RefreshTokenExpiresAt = &exp
	return nil
}

func (s *fakeUserStore) RotateRefresh(_ context.Context, userID uint64, oldHash, newHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.RefreshTokenHash == nil || *u.RefreshTokenHash != oldHash ||
		u.RefreshTokenExpiresAt == nil || !u.RefreshTokenExpiresAt.After(time.Now().UTC()) {
		return repository.ErrRefreshMismatch
	}
	u.RefreshTokenHash = &newHash
	u.RefreshTokenExpiresAt = &exp
	return nil
}

func (s *fakeUserStore) ClearRefresh(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.RefreshTokenHash = nil
		u.RefreshTokenExpiresAt = nil
	}
	return nil
}

func (s *fakeUserStore) deactivate(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id].IsActive = false
}

func (s *fakeUserStore) delete(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		JWTSecret:      "auth-handler-test-secret",
		JWTIssuer:      "task-tracker",
		JWTAudience:    "task-tracker-clients",
		AccessTTLMin:   30,
		RefreshTTLDays: 7,
		BcryptCost:     bcrypt.MinCost,
	}
}

func newTestAuthHandler() (*AuthHandler, *fakeUserStore) {
	store := newFakeUserStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthHandler(testConfig(), store, logger), store
}

// call invokes an echo handler directly and returns the recorder.
func call(h echo.HandlerFunc, method, path, body string, setup func(echo.Context)) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}
	_ = h(c)
	return rec
}

func register(h *AuthHandler, username, password, email, role string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{
		"username": username, "password": password, "email": email, "role": role,
	})
	return call(h.Register, http.MethodPost, "/api/auth/register", string(body), nil)
}

func login(h *AuthHandler, identifier, password string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"username": identifier, "password": password})
	return call(h.Login, http.MethodPost, "/api/auth/login", string(body), nil)
}

func refresh(h *AuthHandler, accessToken, refreshToken string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"accessToken": accessToken, "refreshToken": refreshToken})
	return call(h.Refresh, http.MethodPost, "/api/auth/refresh-token", string(body), nil)
}

func tokens(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var resp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.AccessToken, resp.RefreshToken
}

func TestRegisterAndDuplicates(t *testing.T) {
	h, _ := newTestAuthHandler()

	rec := register(h, "Alice", "pw123", "Alice@X.com", "Employee")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "registered")

	// Same username, different casing.
	rec = register(h, "ALICE", "pw456", "other@x.com", "Employee")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "username already exists")

	// Same email, different casing.
	rec = register(h, "bob", "pw456", "ALICE@x.COM", "Employee")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "email already registered")
}

func TestRegisterDefaultsUnknownRoleToEmployee(t *testing.T) {
	h, store := newTestAuthHandler()

	rec := register(h, "dave", "pw123", "dave@x.com", "superuser")
	require.Equal(t, http.StatusOK, rec.Code)

	u, err := store.GetByIdentifier(context.Background(), "dave")
	require.NoError(t, err)
	assert.Equal(t, model.RoleEmployee, u.Role)
}

func TestLoginUniformUnauthorized(t *testing.T) {
	h, _ := newTestAuthHandler()
	require.Equal(t, http.StatusOK, register(h, "alice", "pw123", "alice@x.com", "Employee").Code)

	wrongPassword := login(h, "alice", "nope")
	noSuchUser := login(h, "mallory", "pw123")

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, noSuchUser.Code)
	// No user-existence oracle: identical status and body.
	assert.Equal(t, wrongPassword.Body.String(), noSuchUser.Body.String())
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	h, store := newTestAuthHandler()
	require.Equal(t, http.StatusOK, register(h, "alice", "pw123", "alice@x.com", "Employee").Code)

	active := login(h, "alice", "pw123")
	require.Equal(t, http.StatusOK, active.Code)

	store.deactivate(1)
	inactive := login(h, "alice", "pw123")
	assert.Equal(t, http.StatusUnauthorized, inactive.Code)

	// Disabled account is indistinguishable from bad credentials.
	assert.Equal(t, login(h, "mallory", "pw123").Body.String(), inactive.Body.String())
}

func TestLoginByUsernameOrEmail(t *testing.T) {
	h, _ := newTestAuthHandler()
	require.Equal(t, http.StatusOK, register(h, "alice", "pw123", "alice@x.com", "Employee").Code)

	rec := login(h, "alice", "pw123")
	require.Equal(t, http.StatusOK, rec.Code)
	access, refreshTok := tokens(t, rec)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refreshTok)

	rec = login(h, "Alice@X.com", "pw123")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshRotationAndReplay(t *testing.T) {
	h, _ := newTestAuthHandler()
	require.Equal(t, http.StatusOK, register(h, "alice", "pw123", "alice@x.com", "Employee").Code)
	access, refreshTok := tokens(t, login(h, "alice", "pw123"))

	rec := refresh(h, access, refreshTok)
	require.Equal(t, http.StatusOK, rec.Code)
	newAccess, newRefresh := tokens(t, rec)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)
	assert.NotEqual(t, access, newAccess)
	assert.NotEqual(t, refreshTok, newRefresh)

	// Replaying the original refresh token must fail: rotation
	// invalidated it.
	rec = refresh(h, access, refreshTok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid client request")

	// The rotated pair still works.
	rec = refresh(h, newAccess, newRefresh)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshAcceptsExpiredAccessToken(t *testing.T) {
	h, _ := newTestAuthHandler()
	cfgExpired := testConfig()
	cfgExpired.AccessTTLMin = -1

	require.Equal(t, http.StatusOK, register(h, "alice", "pw123", "alice@x.com", "Employee").Code)
	_, refreshTok := tokens(t, login(h, "alice", "pw123"))

	// Mint an already-expired access token for the same user through a
	// handler sharing the store, then refresh with it.
	hExpired := NewAuthHandler(cfgExpired, h.Users, h.Logger)
	expiredAccess, _ := tokens(t, login(hExpired, "alice", "pw123"))

	// The login above rotated the stored refresh token.
	_, refreshTok = tokens(t, login(h, "alice", "pw123"))

	rec := refresh(h, expiredAccess, refreshTok)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	h, _ := newTestAuthHandler()
	require.Equal(t, http.StatusOK, register(h, "alice", "pw123", "alice@x.com", "Employee").Code)
	access, _ := tokens(t, login(h, "alice", "pw123"))

	assert.Equal(t, http.StatusBadRequest, refresh(h, "not.a.jwt", "whatever").Code)
	assert.Equal(t, http.StatusBadRequest, refresh(h, access, "wrong-refresh-token").Code)
	assert.Equal(t, http.StatusBadRequest, refresh(h, "", "").Code)
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	h, _ := newTestAuthHandler()
	require.Equal(t, http.StatusOK, register(h, "alice", "pw123", "alice@x.com", "Employee").Code)
	access, refreshTok := tokens(t, login(h, "alice", "pw123"))

	const attempts = 2
	codes := make(chan int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- refresh(h, access, refreshTok).Code
		}()
	}
	wg.Wait()
	close(codes)

	var ok, bad int
	for code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusBadRequest:
			bad++
		}
	}
	assert.Equal(t, 1, ok, "exactly one concurrent refresh may succeed")
	assert.Equal(t, attempts-1, bad)
}

func TestLogoutInvalidatesRefreshAndIsIdempotent(t *testing.T) {
	h, _ := newTestAuthHandler()
	require.Equal(t, http.StatusOK, register(h, "alice", "pw123", "alice@x.com", "Employee").Code)
	access, refreshTok := tokens(t, login(h, "alice", "pw123"))

	asUser := func(c echo.Context) { c.Set(middleware.CtxUserID, uint64(1)) }

	rec := call(h.Logout, http.MethodPost, "/api/auth/logout", "", asUser)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The pre-logout refresh token is dead.
	assert.Equal(t, http.StatusBadRequest, refresh(h, access, refreshTok).Code)

	// Logging out twice is not an error.
	rec = call(h.Logout, http.MethodPost, "/api/auth/logout", "", asUser)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMe(t *testing.T) {
	h, store := newTestAuthHandler()
	require.Equal(t, http.StatusOK, register(h, "alice", "pw123", "alice@x.com", "Manager").Code)

	asUser := func(c echo.Context) { c.Set(middleware.CtxUserID, uint64(1)) }

	rec := call(h.Me, http.MethodGet, "/api/auth/me", "", asUser)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ID       uint64 `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Role     string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.ID)
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "alice@x.com", resp.Email)
	assert.Equal(t, "Manager", resp.Role)

	// Identity no longer resolves after an administrative delete.
	store.delete(1)
	rec = call(h.Me, http.MethodGet, "/api/auth/me", "", asUser)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Full scenario: register, login, refresh, replay.
func TestAuthScenario(t *testing.T) {
	h, _ := newTestAuthHandler()

	require.Equal(t, http.StatusOK, register(h, "alice", "pw123", "alice@x.com", "Employee").Code)

	rec := login(h, "alice", "pw123")
	require.Equal(t, http.StatusOK, rec.Code)
	access, refreshTok := tokens(t, rec)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refreshTok)

	rec = refresh(h, access, refreshTok)
	require.Equal(t, http.StatusOK, rec.Code)
	newAccess, newRefresh := tokens(t, rec)
	require.NotEqual(t, access, newAccess)
	require.NotEqual(t, refreshTok, newRefresh)

	assert.Equal(t, http.StatusBadRequest, refresh(h, access, refreshTok).Code)
}
