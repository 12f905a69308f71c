package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ThemeKey is the preference key holding the dashboard colour scheme.
const ThemeKey = "theme"

// Theme values accepted for ThemeKey.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// ValidThemes is the set of allowed theme values.
var ValidThemes = map[string]bool{
	ThemeLight: true,
	ThemeDark:  true,
}

// DB wraps a SQLite connection holding user preferences.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at path, enables WAL mode, and runs migrations.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Every pooled connection to ":memory:" would get its own database.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS preferences (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`)
	return err
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping verifies the database connection is alive.
func (d *DB) Ping() error {
	return d.conn.Ping()
}

// GetPreference returns the stored value for key, or sql.ErrNoRows if unset.
func (d *DB) GetPreference(key string) (string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetPreference stores value under key, replacing any previous value.
func (d *DB) SetPreference(key, value string) error {
	_, err := d.conn.Exec(`
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Theme returns the stored theme, falling back to ThemeLight when unset or
// when the stored value is not a known theme.
func (d *DB) Theme() (string, error) {
	v, err := d.GetPreference(ThemeKey)
	if errors.Is(err, sql.ErrNoRows) {
		return ThemeLight, nil
	}
	if err != nil {
		return "", err
	}
	if !ValidThemes[v] {
		return ThemeLight, nil
	}
	return v, nil
}

// SetTheme stores theme after validating it.
func (d *DB) SetTheme(theme string) error {
	if !ValidThemes[theme] {
		return fmt.Errorf("invalid theme %q", theme)
	}
	return d.SetPreference(ThemeKey, theme)
}
