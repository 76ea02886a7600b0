package sqlite

import (
	"database/sql"
	"fmt"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

const busyTimeoutMillis = 5000

// InitDB opens the SQLite database at path and creates the jobs table if it
// doesn't exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=%d", path, busyTimeoutMillis))
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; serializing connections avoids
	// "database is locked" errors under concurrent workers.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		resolution INTEGER NOT NULL,
		container TEXT NOT NULL,
		audio_format TEXT NOT NULL,
		audio_quality TEXT NOT NULL,
		want_subtitle INTEGER NOT NULL DEFAULT 0,
		want_thumbnail INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'PENDING',
		progress REAL NOT NULL DEFAULT 0,
		filename TEXT,
		locked_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()

		return nil, err
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status)`); err != nil {
		db.Close()

		return nil, err
	}

	return db, nil
}
