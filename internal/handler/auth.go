package handler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-tracker/internal/config"
	"github.com/iliyamo/task-tracker/internal/model"
	"github.com/iliyamo/task-tracker/internal/repository"
	"github.com/iliyamo/task-tracker/internal/utils"
)

// UserStore is the persistence surface the auth endpoints need.
// *repository.UserRepo is the production implementation; tests swap in
// fakes.
type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash string, role model.Role) (uint64, error)
	GetByIdentifier(ctx context.Context, identifier string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	RotateRefresh(ctx context.Context, userID uint64, oldHash, newHash string, exp time.Time) error
	ClearRefresh(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Logger *slog.Logger
}

func NewAuthHandler(cfg config.Config, users UserStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Logger: logger}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// loginReq carries the identifier in the username field; it is matched
// against username OR email.
type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshReq struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type tokenResp struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register creates a user. No tokens are issued; the caller logs in
// separately. Username and email are trimmed and lowercased before the
// uniqueness checks, so duplicates differing only in case collide.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username, email and password are required"})
	}
	role := model.RoleOrDefault(req.Role)

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.Create(ctx, username, email, hash, role); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameExists):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "username already exists"})
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "email already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "user registered successfully"})
}

// Login verifies credentials and issues a fresh token pair. Unknown
// identifier, wrong password and disabled account all produce the same
// 401 so callers cannot probe which accounts exist.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	identifier := strings.ToLower(strings.TrimSpace(req.Username))
	if identifier == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username and password are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return h.unauthorized(c)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !u.IsActive {
		return h.unauthorized(c)
	}
	if utils.MalformedDigest(u.PasswordHash) {
		// Corrupt stored hash: fail exactly like a bad password, but
		// leave a trace for operators.
		h.Logger.Error("stored password digest is malformed", "user", u.ID)
		return h.unauthorized(c)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return h.unauthorized(c)
	}

	return h.issuePair(c, ctx, u, "")
}

// Refresh rotates a token pair. The identity comes from the expired
// access token (signature, issuer and audience still verified); the
// swap of the stored refresh digest is atomic, so a replayed or
// concurrent refresh with the same token loses. Every failure mode maps
// to the same 400.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil ||
		strings.TrimSpace(req.AccessToken) == "" || strings.TrimSpace(req.RefreshToken) == "" {
		return h.badRefresh(c)
	}

	claims, err := utils.ParseExpiredAccessToken(h.Cfg.JWTSecret, h.Cfg.JWTIssuer, h.Cfg.JWTAudience, req.AccessToken)
	if err != nil {
		return h.badRefresh(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		return h.badRefresh(c)
	}
	if !u.IsActive {
		return h.badRefresh(c)
	}

	return h.issuePair(c, ctx, u, utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken)))
}

// Logout clears the caller's refresh state. Calling it twice is fine.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.ClearRefresh(ctx, uid); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out successfully"})
}

// Me returns the caller's profile fields.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"role":     u.Role,
	})
}

// issuePair mints a fresh access+refresh pair and persists the refresh
// digest. With oldHash empty this is a login (overwrite whatever session
// exists); otherwise it is a rotation guarded by the compare-and-swap.
func (h *AuthHandler) issuePair(c echo.Context, ctx context.Context, u model.User, oldHash string) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, h.Cfg.JWTIssuer, h.Cfg.JWTAudience,
		u.ID, u.Username, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}

	if oldHash == "" {
		if err := h.Users.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
		}
	} else {
		err := h.Users.RotateRefresh(ctx, u.ID, oldHash, utils.HashRefreshRaw(refresh.Raw), refresh.Exp)
		if errors.Is(err, repository.ErrRefreshMismatch) {
			return h.badRefresh(c)
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
		}
	}

	return c.JSON(http.StatusOK, tokenResp{AccessToken: access.Token, RefreshToken: refresh.Raw})
}

func (h *AuthHandler) unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid username or password"})
}

func (h *AuthHandler) badRefresh(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client request"})
}
