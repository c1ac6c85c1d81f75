package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/task-tracker/internal/model"
)

// UserRepo persists users and their single-session refresh state.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, username, email, password_hash, role, is_active, refresh_token_hash, refresh_token_expires_at, created_at, updated_at"

// Create inserts a user and returns its generated ID. Username and email
// are expected to be normalized (lowercased, trimmed) by the caller; the
// method normalizes again as a guard. Duplicate key violations are mapped
// to ErrUsernameExists / ErrEmailExists based on the index named in the
// driver error.
func (r *UserRepo) Create(ctx context.Context, username, email, passwordHash string, role model.Role) (uint64, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, role) VALUES (?,?,?,?)",
		username, email, passwordHash, string(role))
	if err != nil {
		// MySQL 1062 = duplicate entry; the message names the violated index.
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "1062") {
			if strings.Contains(msg, "email") {
				return 0, ErrEmailExists
			}
			return 0, ErrUsernameExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByIdentifier fetches a user whose username OR email equals the
// normalized identifier, in a single lookup. Returns sql.ErrNoRows when
// nothing matches.
func (r *UserRepo) GetByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? OR email=? LIMIT 1",
		identifier, identifier))
}

// GetByID fetches a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// StoreRefresh overwrites the user's refresh state with a new token
// digest and expiry. Any previously outstanding refresh token is
// invalidated by the overwrite (one session per user).
func (r *UserRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=?, refresh_token_expires_at=? WHERE id=?",
		tokenHash, exp, userID)
	return err
}

// RotateRefresh atomically replaces the stored refresh digest with a new
// one, but only if the stored digest still equals oldHash and has not
// expired. The compare-and-swap lives in the WHERE clause, so of two
// concurrent rotations using the same stale token at most one can match;
// the loser observes zero affected rows and gets ErrRefreshMismatch.
func (r *UserRepo) RotateRefresh(ctx context.Context, userID uint64, oldHash, newHash string, exp time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET refresh_token_hash=?, refresh_token_expires_at=?
		 WHERE id=? AND refresh_token_hash=? AND refresh_token_expires_at > UTC_TIMESTAMP()`,
		newHash, exp, userID, oldHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRefreshMismatch
	}
	return nil
}

// ClearRefresh drops the user's refresh state. Clearing an already-empty
// state is not an error, which makes logout idempotent.
func (r *UserRepo) ClearRefresh(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=NULL, refresh_token_expires_at=NULL WHERE id=?",
		userID)
	return err
}

// List returns all users ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	return r.scanMany(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
}

// ListActive returns users whose is_active flag is set.
func (r *UserRepo) ListActive(ctx context.Context) ([]model.User, error) {
	return r.scanMany(ctx, "SELECT "+userColumns+" FROM users WHERE is_active=1 ORDER BY id")
}

// UpdateProfile sets email, role and the active flag for a user.
// Returns sql.ErrNoRows when the user does not exist.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, email string, role model.Role, isActive bool) error {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email=?, role=?, is_active=? WHERE id=?",
		email, string(role), isActive, id)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrEmailExists
		}
		return err
	}
	return noRowsAsErr(res)
}

// UpdateRole changes only the role column.
func (r *UserRepo) UpdateRole(ctx context.Context, id uint64, role model.Role) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET role=? WHERE id=?", string(role), id)
	if err != nil {
		return err
	}
	return noRowsAsErr(res)
}

// Delete removes a user row.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	return noRowsAsErr(res)
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var (
		u         model.User
		role      string
		tokenHash sql.NullString
		tokenExp  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role,
		&u.IsActive, &tokenHash, &tokenExp, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.RoleOrDefault(role)
	if tokenHash.Valid {
		h := tokenHash.String
		u.RefreshTokenHash = &h
	}
	if tokenExp.Valid {
		t := tokenExp.Time
		u.RefreshTokenExpiresAt = &t
	}
	return u, nil
}

func (r *UserRepo) scanMany(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var (
			u         model.User
			role      string
			tokenHash sql.NullString
			tokenExp  sql.NullTime
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role,
			&u.IsActive, &tokenHash, &tokenExp, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Role = model.RoleOrDefault(role)
		if tokenHash.Valid {
			h := tokenHash.String
			u.RefreshTokenHash = &h
		}
		if tokenExp.Valid {
			t := tokenExp.Time
			u.RefreshTokenExpiresAt = &t
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func noRowsAsErr(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
