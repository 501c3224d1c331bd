package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/capture-preferences/internal/platform/storage/sqlmigrate"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage/sqlite/migrations"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage/sqlquery"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// mostRecentIDs picks each user's latest row over the whole table.
const mostRecentIDs = `SELECT ranked.id FROM (
    SELECT id, ROW_NUMBER() OVER (PARTITION BY username ORDER BY expressed_at DESC) AS rn
    FROM preferences
) ranked WHERE ranked.rn = 1`

// Store persists preference history in SQLite.
type Store struct {
	*sqlquery.Store
}

// Open opens a SQLite preference store, creating its directory, and applies
// embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlmigrate.ApplyMigrations(ctx, sqlDB, sqlmigrate.SQLite, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{Store: sqlquery.NewStore(sqlDB, sqlmigrate.SQLite, mostRecentIDs, isUniqueViolation)}, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.PreferenceStore = (*Store)(nil)
