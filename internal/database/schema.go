package database

import (
	"context"
	"database/sql"
)

// Statements are idempotent so repeated startups are safe. utf8mb4
// general collation makes the unique indexes on username/email
// case-insensitive on top of the lowercase normalization done in code.
var serverSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		username VARCHAR(64) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(100) NOT NULL,
		role VARCHAR(16) NOT NULL DEFAULT 'Employee',
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		refresh_token_hash CHAR(64) NULL,
		refresh_token_expires_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_users_username (username),
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'Todo',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		due_date DATETIME NULL,
		assigned_to_user_id BIGINT UNSIGNED NOT NULL DEFAULT 0,
		updated_at DATETIME NULL,
		PRIMARY KEY (id),
		KEY idx_tasks_assignee (assigned_to_user_id),
		KEY idx_tasks_due (due_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var analyticsSchema = []string{
	`CREATE TABLE IF NOT EXISTS task_analytics (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		task_id BIGINT UNSIGNED NOT NULL,
		title VARCHAR(255) NOT NULL,
		status VARCHAR(16) NOT NULL,
		assigned_to_user_id BIGINT UNSIGNED NOT NULL DEFAULT 0,
		logged_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		KEY idx_analytics_task (task_id),
		KEY idx_analytics_status (status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates the API service tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	return apply(ctx, db, serverSchema)
}

// EnsureAnalyticsSchema creates the collector's event table when missing.
func EnsureAnalyticsSchema(ctx context.Context, db *sql.DB) error {
	return apply(ctx, db, analyticsSchema)
}

func apply(ctx context.Context, db *sql.DB, stmts []string) error {
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
