package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            room_key TEXT NOT NULL,
            sender_id INT NOT NULL,
            text TEXT,
            image_path TEXT,
            reply_to_id BIGINT,
            deleted BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK (deleted OR text IS NOT NULL OR image_path IS NOT NULL)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room ON messages (room_key, id);`,
		`CREATE TABLE IF NOT EXISTS general_chats (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            type TEXT NOT NULL CHECK (type IN ('standard', 'announcement')),
            created_by INT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS general_chat_members (
            chat_id INT NOT NULL REFERENCES general_chats(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            role_at_join TEXT,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (chat_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS room_moderation (
            room_key TEXT PRIMARY KEY,
            paused BOOLEAN NOT NULL DEFAULT FALSE
        );`,
		// Directory tables are owned by the scheduling app; created here only
		// so the service can run standalone in dev.
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            role TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS services (
            id SERIAL PRIMARY KEY,
            client_id INT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS service_assignments (
            service_id INT NOT NULL,
            user_id INT NOT NULL,
            PRIMARY KEY (service_id, user_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
