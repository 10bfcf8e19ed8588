package mirror

import (
	"database/sql"
	"errors"
	"log/slog"
	"strings"
)

// Put stores value under key, overwriting unconditionally.
//
// Best-effort by contract: on failure the write is dropped with a logged
// warning. Callers treat the mirror as a cache whose loss degrades offline
// capability, not correctness, so a failing mirror must never abort a save.
func (s *Store) Put(key, value string) {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		slog.Warn("mirror write failed", "key", key, "error", err)
	}
}

// Get returns the value stored under key, or ok=false if the key is absent
// or the read failed.
func (s *Store) Get(key string) (value string, ok bool) {
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		slog.Warn("mirror read failed", "key", key, "error", err)
		return "", false
	}
	return value, true
}

// Remove deletes the value stored under key. Removing an absent key is a
// no-op.
func (s *Store) Remove(key string) {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		slog.Warn("mirror delete failed", "key", key, "error", err)
	}
}

// ListKeysWithPrefix returns every stored key beginning with prefix, in
// lexicographic order. Used at startup to reconstruct cached record lists
// without a network round-trip.
func (s *Store) ListKeysWithPrefix(prefix string) []string {
	// Escape LIKE wildcards so a literal prefix match is performed.
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)

	rows, err := s.db.Query(
		`SELECT key FROM kv WHERE key LIKE ? ESCAPE '\' ORDER BY key`,
		escaped+"%",
	)
	if err != nil {
		slog.Warn("mirror key scan failed", "prefix", prefix, "error", err)
		return nil
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			slog.Warn("mirror key scan failed", "prefix", prefix, "error", err)
			return keys
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		slog.Warn("mirror key scan failed", "prefix", prefix, "error", err)
	}
	return keys
}
