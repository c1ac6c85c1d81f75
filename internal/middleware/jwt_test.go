package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/task-tracker/internal/model"
	"github.com/iliyamo/task-tracker/internal/utils"
)

const (
	mwSecret   = "middleware-test-secret"
	mwIssuer   = "task-tracker"
	mwAudience = "task-tracker-clients"
)

func runProtected(t *testing.T, mw echo.MiddlewareFunc, authorization string, setup func(echo.Context)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}
	next := func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"message": "ok"})
	}
	_ = mw(next)(c)
	return rec
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	at, err := utils.NewAccessToken(mwSecret, mwIssuer, mwAudience, 5, "alice", model.RoleManager, 30)
	require.NoError(t, err)

	mw := JWTAuth(mwSecret, mwIssuer, mwAudience)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+at.Token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotID uint64
	var gotRole model.Role
	next := func(c echo.Context) error {
		gotID = c.Get(CtxUserID).(uint64)
		gotRole = c.Get(CtxRole).(model.Role)
		return c.NoContent(http.StatusOK)
	}
	require.NoError(t, mw(next)(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(5), gotID)
	assert.Equal(t, model.RoleManager, gotRole)
	assert.Equal(t, "alice", c.Get(CtxUsername))
}

func TestJWTAuthRejections(t *testing.T) {
	valid, err := utils.NewAccessToken(mwSecret, mwIssuer, mwAudience, 5, "alice", model.RoleEmployee, 30)
	require.NoError(t, err)
	expired, err := utils.NewAccessToken(mwSecret, mwIssuer, mwAudience, 5, "alice", model.RoleEmployee, -1)
	require.NoError(t, err)
	foreign, err := utils.NewAccessToken("other-secret", mwIssuer, mwAudience, 5, "alice", model.RoleEmployee, 30)
	require.NoError(t, err)

	mw := JWTAuth(mwSecret, mwIssuer, mwAudience)

	tests := []struct {
		name          string
		authorization string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"expired token", "Bearer " + expired.Token},
		{"wrong signature", "Bearer " + foreign.Token},
		{"valid token wrong scheme", valid.Token},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := runProtected(t, mw, tc.authorization, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
		})
	}
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole(model.RoleAdmin, model.RoleManager)

	asRole := func(role any) func(echo.Context) {
		return func(c echo.Context) { c.Set(CtxRole, role) }
	}

	tests := []struct {
		name  string
		setup func(echo.Context)
		want  int
	}{
		{"admin allowed", asRole(model.RoleAdmin), http.StatusOK},
		{"manager allowed", asRole(model.RoleManager), http.StatusOK},
		{"employee forbidden", asRole(model.RoleEmployee), http.StatusForbidden},
		{"role missing", nil, http.StatusForbidden},
		{"role mistyped", asRole("Admin"), http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := runProtected(t, mw, "", tc.setup)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
