package activity

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Fixed-width so created_at sorts lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS activity (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_created ON activity(created_at);
`

// SQLiteMirror stores entries in a sqlite table.
type SQLiteMirror struct {
	db *sql.DB
}

// OpenSQLiteMirror opens the database at dbPath and applies the schema.
func OpenSQLiteMirror(dbPath string) (*SQLiteMirror, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open activity db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteMirror{db: db}, nil
}

func (m *SQLiteMirror) Append(e Entry) error {
	_, err := m.db.Exec(`INSERT INTO activity (text, created_at) VALUES (?, ?)`,
		e.Text, e.Timestamp.UTC().Format(sqliteTimeLayout))
	return err
}

func (m *SQLiteMirror) Recent(n int) ([]Entry, error) {
	if n <= 0 {
		n = TrailCapacity
	}
	rows, err := m.db.Query(`SELECT text, created_at FROM activity ORDER BY created_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var text, created string
		if err := rows.Scan(&text, &created); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(sqliteTimeLayout, created)
		out = append(out, Entry{Text: text, Timestamp: ts})
	}
	return out, rows.Err()
}

func (m *SQLiteMirror) Close() error {
	return m.db.Close()
}
