package store

import (
	"context"
	"database/sql"
)

// Schema is applied at boot; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		name VARCHAR(128) NOT NULL,
		username VARCHAR(64) NOT NULL,
		password_hash VARCHAR(256) NOT NULL,
		avatar VARCHAR(256) NOT NULL DEFAULT 'default',
		create_time DATETIME(6) NOT NULL,
		UNIQUE KEY uniq_username (username)
	)`,

	`CREATE TABLE IF NOT EXISTS rooms (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		name VARCHAR(128) NOT NULL,
		invite_code VARCHAR(16) NOT NULL,
		create_time DATETIME(6) NOT NULL,
		UNIQUE KEY uniq_invite (invite_code)
	)`,

	`CREATE TABLE IF NOT EXISTS room_members (
		room_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		join_time DATETIME(6) NOT NULL,
		PRIMARY KEY (room_id, user_id)
	)`,

	// seq breaks create_time ties on read: insertion order wins.
	`CREATE TABLE IF NOT EXISTS messages (
		seq BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		id VARCHAR(64) NOT NULL,
		room_id VARCHAR(160) NOT NULL,
		sender_id VARCHAR(64) NOT NULL,
		content TEXT NOT NULL,
		kind VARCHAR(8) NOT NULL,
		status VARCHAR(8) NOT NULL,
		create_time DATETIME(6) NOT NULL,
		UNIQUE KEY uniq_id (id),
		KEY idx_room_time (room_id, create_time, seq)
	)`,
}

// Migrate creates all tables. Safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
