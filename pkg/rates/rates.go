// Package rates persists per-user command cooldowns in SQLite so rate
// limits survive restarts.
package rates

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kooklab/kord/pkg/kord"
)

const schema = `
CREATE TABLE IF NOT EXISTS cooldowns (
	name       TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (name, user_id)
)`

// Store is a cooldown database shared by any number of commands.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the cooldown database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cooldown store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cooldown store: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying database.
func (st *Store) Close() error {
	return st.db.Close()
}

// Cooldown returns a command checker that vetoes a user retriggering
// name within d of their last accepted run. The first run per window
// passes and stamps the window.
func (st *Store) Cooldown(name string, d time.Duration) kord.Checker {
	return func(bot *kord.Bot, s *kord.Session) (interface{}, error) {
		st.mu.Lock()
		defer st.mu.Unlock()

		now := st.now()
		var expires int64
		err := st.db.QueryRow(
			`SELECT expires_at FROM cooldowns WHERE name = ? AND user_id = ?`,
			name, s.UserID,
		).Scan(&expires)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return nil, fmt.Errorf("read cooldown %s: %w", name, err)
		case expires > now.Unix():
			return false, nil
		}

		_, err = st.db.Exec(
			`INSERT INTO cooldowns (name, user_id, expires_at) VALUES (?, ?, ?)
			 ON CONFLICT (name, user_id) DO UPDATE SET expires_at = excluded.expires_at`,
			name, s.UserID, now.Add(d).Unix(),
		)
		if err != nil {
			return nil, fmt.Errorf("stamp cooldown %s: %w", name, err)
		}
		return true, nil
	}
}

// Reset clears the cooldown of one user for one command.
func (st *Store) Reset(name, userID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, err := st.db.Exec(`DELETE FROM cooldowns WHERE name = ? AND user_id = ?`, name, userID)
	return err
}
