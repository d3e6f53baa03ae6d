package database

import (
	"campushub-backend/internal/models"
	"database/sql"
	"fmt"
)

func setPragmaValues(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	// these next 2 extremely speed up performance of sqlite
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return err
	}

	if _, err := db.Exec("PRAGMA synchronous = normal"); err != nil {
		return err
	}

	return nil
}

func Setup(cfg *models.ConfigFile) (*sql.DB, error) {
	var db *sql.DB
	var err error

	if cfg.SelfContained {
		fmt.Println("Connecting to database sqlite...")

		db, err = sql.Open("sqlite", "./database.db")
		if err != nil {
			return db, err
		}

		// there can be sqlite busy errors if this is not set to 1
		db.SetMaxOpenConns(1)

		err = setPragmaValues(db)
		if err != nil {
			return db, err
		}
	} else {
		fmt.Println("Connecting to database mysql/mariadb...")

		db, err = sql.Open("mysql", fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&timeout=10s", cfg.DbUser, cfg.DbPassword, cfg.DbAddress, cfg.DbPort, cfg.DbDatabase))
		if err != nil {
			return db, err
		}

		db.SetMaxOpenConns(10)
	}

	err = SetupTables(db)
	if err != nil {
		return db, err
	}

	return db, nil
}

// SetupIsolated opens a throwaway in-memory sqlite database. Tests use this
// so every run starts from an empty schema.
func SetupIsolated() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return db, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return db, err
	}

	err = SetupTables(db)
	if err != nil {
		return db, err
	}

	return db, nil
}

func SetupTables(db *sql.DB) error {
	var err error

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS users (
				id BIGINT PRIMARY KEY,
				email VARCHAR(64) NOT NULL UNIQUE,
				username VARCHAR(32) NOT NULL UNIQUE,
				display_name VARCHAR(64) NOT NULL,
				picture TEXT,
				password BINARY(60) NOT NULL
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS servers (
				id BIGINT PRIMARY KEY,
				owner_id BIGINT NOT NULL,
				name VARCHAR(64) NOT NULL,
				description TEXT,
				icon TEXT,
				invite_code VARCHAR(16) NOT NULL UNIQUE,
				rules TEXT,
				visibility VARCHAR(8) NOT NULL DEFAULT 'public',
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS server_roles (
				id BIGINT PRIMARY KEY,
				server_id BIGINT NOT NULL,
				name VARCHAR(32) NOT NULL,
				color VARCHAR(16) NOT NULL,
				permissions TEXT NOT NULL,
				position INT NOT NULL DEFAULT 0,
				FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS channels (
				id BIGINT PRIMARY KEY,
				server_id BIGINT NOT NULL,
				name VARCHAR(100) NOT NULL,
				type VARCHAR(8) NOT NULL DEFAULT 'text',
				category VARCHAR(64) NOT NULL DEFAULT 'General',
				position INT NOT NULL DEFAULT 0,
				is_private BOOLEAN NOT NULL DEFAULT FALSE,
				creator_id BIGINT NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	// the unique pair makes concurrent double-joins fail at the storage
	// layer instead of producing two membership rows
	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS server_members (
				id BIGINT PRIMARY KEY,
				server_id BIGINT NOT NULL,
				user_id BIGINT NOT NULL,
				nickname VARCHAR(64),
				rules_accepted BOOLEAN NOT NULL DEFAULT FALSE,
				joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (server_id, user_id),
				FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS member_roles (
				member_id BIGINT NOT NULL,
				role_id BIGINT NOT NULL,
				PRIMARY KEY (member_id, role_id),
				FOREIGN KEY (member_id) REFERENCES server_members(id) ON DELETE CASCADE,
				FOREIGN KEY (role_id) REFERENCES server_roles(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS server_bans (
				id BIGINT PRIMARY KEY,
				server_id BIGINT NOT NULL,
				user_id BIGINT NOT NULL,
				reason TEXT NOT NULL,
				banned_by_id BIGINT NOT NULL,
				banned_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS invites (
				id BIGINT PRIMARY KEY,
				code VARCHAR(16) NOT NULL UNIQUE,
				server_id BIGINT NOT NULL,
				inviter_id BIGINT NOT NULL,
				uses INT NOT NULL DEFAULT 0,
				max_uses INT NOT NULL DEFAULT 0,
				expires_at TIMESTAMP NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	// member_id nulls out when the membership goes away; messages outlive
	// kicks and bans, sender_id is the durable provenance
	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS messages (
				id BIGINT PRIMARY KEY,
				channel_id BIGINT NOT NULL,
				member_id BIGINT,
				sender_id BIGINT NOT NULL,
				content TEXT,
				file_url TEXT,
				deleted BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE,
				FOREIGN KEY (member_id) REFERENCES server_members(id) ON DELETE SET NULL
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS notifications (
				id BIGINT PRIMARY KEY,
				user_id BIGINT NOT NULL,
				type VARCHAR(32) NOT NULL,
				title VARCHAR(128) NOT NULL,
				message TEXT NOT NULL,
				icon VARCHAR(16) NOT NULL,
				action_url TEXT NOT NULL,
				related_id BIGINT NOT NULL,
				related_type VARCHAR(32) NOT NULL,
				is_read BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`)
	if err != nil {
		return err
	}

	return nil
}
