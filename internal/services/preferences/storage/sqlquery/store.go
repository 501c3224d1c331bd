package sqlquery

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/capture-preferences/internal/platform/storage/sqlmigrate"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/preference"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage"
)

// Store runs the preference SQL shared by the relational drivers. Queries are
// written with "?" markers and rebound for the dialect.
type Store struct {
	sqlDB           *sql.DB
	dialect         sqlmigrate.Dialect
	mostRecentIDs   string
	uniqueViolation func(error) bool
}

// NewStore wraps an open, migrated database. mostRecentIDs is the engine's
// resolver subquery and uniqueViolation recognizes its constraint errors.
func NewStore(sqlDB *sql.DB, dialect sqlmigrate.Dialect, mostRecentIDs string, uniqueViolation func(error) bool) *Store {
	if uniqueViolation == nil {
		uniqueViolation = func(error) bool { return false }
	}
	return &Store{
		sqlDB:           sqlDB,
		dialect:         dialect,
		mostRecentIDs:   mostRecentIDs,
		uniqueViolation: uniqueViolation,
	}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// AppendPreference inserts one immutable expression.
func (s *Store) AppendPreference(ctx context.Context, p preference.Preference) (preference.Preference, error) {
	if err := s.ready(ctx); err != nil {
		return preference.Preference{}, err
	}
	if strings.TrimSpace(p.ID) == "" {
		return preference.Preference{}, fmt.Errorf("preference id is required")
	}
	if strings.TrimSpace(p.Username) == "" {
		return preference.Preference{}, fmt.Errorf("username is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, s.dialect.Rebind(`
INSERT INTO preferences (id, username, allow_capture, request_hold, expressed_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`),
		p.ID,
		p.Username,
		p.AllowCapture,
		p.RequestHold,
		ToMicros(p.ExpressedAt),
		ToMicros(p.CreatedAt),
		ToMicros(p.UpdatedAt),
	)
	if err != nil {
		if s.uniqueViolation(err) {
			return preference.Preference{}, fmt.Errorf("append preference for %s: %w", p.Username, storage.ErrAlreadyExists)
		}
		return preference.Preference{}, fmt.Errorf("append preference: %w", err)
	}

	p.ExpressedAt = preference.Timestamp(p.ExpressedAt)
	p.CreatedAt = preference.Timestamp(p.CreatedAt)
	p.UpdatedAt = preference.Timestamp(p.UpdatedAt)
	return p, nil
}

// PutUser creates or refreshes a user directory row, keeping its creation time.
func (s *Store) PutUser(ctx context.Context, u preference.User) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("username is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, s.dialect.Rebind(`
INSERT INTO users (username, first_name, last_name, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (username) DO UPDATE SET
    first_name = excluded.first_name,
    last_name = excluded.last_name,
    updated_at = excluded.updated_at`),
		u.Username,
		u.FirstName,
		u.LastName,
		ToMicros(u.CreatedAt),
		ToMicros(u.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// ListPreferencesPage returns one keyset page of preference history.
func (s *Store) ListPreferencesPage(ctx context.Context, req storage.ListPreferencesPageRequest) (storage.ListPreferencesPageResult, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ListPreferencesPageResult{}, err
	}

	plan, err := BuildListPreferencesPagePlan(req, s.mostRecentIDs)
	if err != nil {
		return storage.ListPreferencesPageResult{}, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, s.dialect.Rebind(plan.Query), plan.Params...)
	if err != nil {
		return storage.ListPreferencesPageResult{}, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	records := make([]storage.PreferenceRecord, 0, req.PageSize+1)
	for rows.Next() {
		record, err := ScanPreferenceRecord(rows)
		if err != nil {
			return storage.ListPreferencesPageResult{}, fmt.Errorf("scan preference: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return storage.ListPreferencesPageResult{}, fmt.Errorf("iterate preferences: %w", err)
	}

	return FinishPage(req, records), nil
}

var _ storage.PreferenceStore = (*Store)(nil)
