package sqlquery

import (
	"time"

	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage"
)

// ToMicros normalizes timestamps into microsecond precision for storage.
func ToMicros(value time.Time) int64 {
	return value.UTC().UnixMicro()
}

// FromMicros restores microsecond precision and keeps UTC normalization.
func FromMicros(value int64) time.Time {
	return time.UnixMicro(value).UTC()
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanPreferenceRecord scans one row of PreferenceColumns.
func ScanPreferenceRecord(row Scanner) (storage.PreferenceRecord, error) {
	var (
		record                       storage.PreferenceRecord
		expressedAt                  int64
		createdAt, updatedAt         int64
		userCreatedAt, userUpdatedAt int64
	)
	if err := row.Scan(
		&record.Preference.ID,
		&record.Preference.Username,
		&record.Preference.AllowCapture,
		&record.Preference.RequestHold,
		&expressedAt,
		&createdAt,
		&updatedAt,
		&record.User.FirstName,
		&record.User.LastName,
		&userCreatedAt,
		&userUpdatedAt,
	); err != nil {
		return storage.PreferenceRecord{}, err
	}
	record.Preference.ExpressedAt = FromMicros(expressedAt)
	record.Preference.CreatedAt = FromMicros(createdAt)
	record.Preference.UpdatedAt = FromMicros(updatedAt)
	record.User.Username = record.Preference.Username
	if userCreatedAt != 0 {
		record.User.CreatedAt = FromMicros(userCreatedAt)
		record.User.UpdatedAt = FromMicros(userUpdatedAt)
	}
	return record, nil
}
