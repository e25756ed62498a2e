// Package knowledge persists librarian answers keyed by normalized query.
package knowledge

import (
	"context"
	"path/filepath"
	"strings"
)

// Store loads and saves the whole knowledge base.
type Store interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, kb map[string]string) error
	Close() error
}

// Open picks a backend by extension: .db, .sqlite and .sqlite3 use SQLite,
// anything else a JSON file.
func Open(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLiteStore(path)
	default:
		return NewJSONFileStore(path), nil
	}
}

// NormalizeKey lower-cases q and collapses runs of whitespace.
func NormalizeKey(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
