package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/capture-preferences/internal/services/preferences/preference"
)

// ErrAlreadyExists indicates a uniqueness constraint rejected the write.
var ErrAlreadyExists = errors.New("record already exists")

// Cursor directions understood by ListPreferencesPage.
const (
	CursorForward  = "fwd"
	CursorBackward = "bwd"
)

// PreferenceStore persists preference history and the user directory.
type PreferenceStore interface {
	// AppendPreference inserts one immutable expression. A second expression
	// for the same user at the same instant fails with ErrAlreadyExists.
	AppendPreference(ctx context.Context, p preference.Preference) (preference.Preference, error)
	// PutUser creates or refreshes a user directory row.
	PutUser(ctx context.Context, u preference.User) error
	// ListPreferencesPage returns one keyset page of preference history.
	ListPreferencesPage(ctx context.Context, req ListPreferencesPageRequest) (ListPreferencesPageResult, error)
	Close() error
}

// ListPreferencesPageRequest describes one page of the preference collection.
//
// The ordering key is (expressed_at, username). A zero request lists every
// expression oldest first.
type ListPreferencesPageRequest struct {
	// MostRecentOnly narrows the collection to each user's latest expression
	// before any other condition is applied.
	MostRecentOnly bool
	// PageSize is the maximum number of rows to return.
	PageSize int
	// Descending orders by expressed_at then username, newest first.
	Descending bool
	// HasCursor enables the keyset condition below.
	HasCursor bool
	// CursorExpressedAt and CursorUsername are the boundary row's key.
	CursorExpressedAt time.Time
	CursorUsername    string
	// CursorDir is the comparison direction ("fwd" = key > cursor, "bwd" = key < cursor).
	CursorDir string
	// CursorReverse temporarily reverses the sort order so previous pages are
	// read from the rows nearest the cursor.
	CursorReverse bool
	// FilterClause is an optional SQL WHERE clause fragment over the p alias.
	FilterClause string
	// FilterParams are the positional parameters for the filter clause.
	FilterParams []any
}

// PreferenceRecord is a preference joined with its owner's directory row.
// Owners who never wrote through the service have an empty directory row.
type PreferenceRecord struct {
	Preference preference.Preference
	User       preference.User
}

// ListPreferencesPageResult contains one page in the requested order.
type ListPreferencesPageResult struct {
	Preferences []PreferenceRecord
	// HasNextPage indicates whether more rows follow the page.
	HasNextPage bool
	// HasPrevPage indicates whether more rows precede the page.
	HasPrevPage bool
}
