// Package postgres provides the PostgreSQL-backed preference store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/louisbranch/capture-preferences/internal/platform/storage/sqlmigrate"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage/postgres/migrations"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage/sqlquery"
)

// mostRecentIDs picks each user's latest row over the whole table.
const mostRecentIDs = `SELECT DISTINCT ON (username) id FROM preferences ORDER BY username, expressed_at DESC`

const uniqueViolation = pq.ErrorCode("23505")

// Store persists preference history in PostgreSQL.
type Store struct {
	*sqlquery.Store
}

// Open connects to dsn and applies embedded migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres db: %w", err)
	}
	if err := sqlmigrate.ApplyMigrations(ctx, sqlDB, sqlmigrate.Postgres, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{Store: sqlquery.NewStore(sqlDB, sqlmigrate.Postgres, mostRecentIDs, isUniqueViolation)}, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

var _ storage.PreferenceStore = (*Store)(nil)
