package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn *sql.DB
}

type Config struct {
	SQLitePath string
}

func NewDB(config Config) (*DB, error) {
	path := config.SQLitePath
	if path == "" {
		path = ":memory:"
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

func (db *DB) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS scans (
		scan_log_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		brand TEXT,
		item_id TEXT,
		source TEXT,
		decision TEXT NOT NULL,
		combined REAL NOT NULL,
		scanned_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS recent_items (
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		logged_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS brand_avoid (
		user_id TEXT NOT NULL,
		canonical_brand TEXT NOT NULL,
		item_id TEXT NOT NULL,
		recorded_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, canonical_brand, item_id)
	);

	CREATE TABLE IF NOT EXISTS anchors (
		anchor_key TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		name TEXT NOT NULL,
		brand TEXT,
		item_id TEXT,
		source TEXT,
		confidence REAL NOT NULL,
		calories REAL,
		protein REAL,
		carbs REAL,
		fat REAL,
		seen_at DATETIME NOT NULL
	);
	`

	_, err := db.conn.Exec(query)
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}
