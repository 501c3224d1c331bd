// Package sqlquery builds the SQL shared by the relational preference stores.
package sqlquery

import (
	"fmt"
	"strings"

	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage"
)

// PreferenceColumns is the projection scanned by ScanPreferenceRecord.
const PreferenceColumns = `p.id, p.username, p.allow_capture, p.request_hold, p.expressed_at, p.created_at, p.updated_at,
       COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COALESCE(u.created_at, 0), COALESCE(u.updated_at, 0)`

// ListPreferencesPagePlan is a ready-to-run listing query using "?" markers.
type ListPreferencesPagePlan struct {
	Query  string
	Params []any
}

// BuildListPreferencesPagePlan renders the keyset page query. mostRecentIDs is
// the engine-specific subquery selecting the id of each user's latest row; it
// is evaluated over the whole table so caller conditions never change which
// row is current.
func BuildListPreferencesPagePlan(req storage.ListPreferencesPageRequest, mostRecentIDs string) (ListPreferencesPagePlan, error) {
	if req.PageSize <= 0 {
		return ListPreferencesPagePlan{}, fmt.Errorf("page size must be positive")
	}

	var conditions []string
	var params []any

	if req.MostRecentOnly {
		if strings.TrimSpace(mostRecentIDs) == "" {
			return ListPreferencesPagePlan{}, fmt.Errorf("most recent subquery is required")
		}
		conditions = append(conditions, "p.id IN ("+mostRecentIDs+")")
	}

	if req.FilterClause != "" {
		conditions = append(conditions, req.FilterClause)
		params = append(params, req.FilterParams...)
	}

	// The cursor direction determines comparison operators; sort order is applied separately.
	if req.HasCursor {
		switch req.CursorDir {
		case storage.CursorForward:
			conditions = append(conditions, "(p.expressed_at, p.username) > (?, ?)")
		case storage.CursorBackward:
			conditions = append(conditions, "(p.expressed_at, p.username) < (?, ?)")
		default:
			return ListPreferencesPagePlan{}, fmt.Errorf("invalid cursor direction: %q", req.CursorDir)
		}
		params = append(params, req.CursorExpressedAt.UTC().UnixMicro(), req.CursorUsername)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	descending := req.Descending
	// Reverse sort temporarily for previous-page queries so near-edge rows are fetched first.
	if req.CursorReverse {
		descending = !descending
	}
	orderClause := "ORDER BY p.expressed_at ASC, p.username ASC"
	if descending {
		orderClause = "ORDER BY p.expressed_at DESC, p.username DESC"
	}

	query := fmt.Sprintf(`SELECT %s
FROM preferences p
LEFT JOIN users u ON u.username = p.username
%s
%s
LIMIT %d`, PreferenceColumns, whereClause, orderClause, req.PageSize+1)

	return ListPreferencesPagePlan{Query: query, Params: params}, nil
}

// FinishPage trims the look-ahead row, restores the requested order and
// reports the neighbouring pages.
func FinishPage(req storage.ListPreferencesPageRequest, records []storage.PreferenceRecord) storage.ListPreferencesPageResult {
	hasMore := len(records) > req.PageSize
	if hasMore {
		records = records[:req.PageSize]
	}

	// For "previous page" navigation, reverse the results to maintain consistent order.
	if req.CursorReverse {
		for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
			records[i], records[j] = records[j], records[i]
		}
	}

	result := storage.ListPreferencesPageResult{Preferences: records}
	if req.CursorReverse {
		// We came from the next page, so there is one.
		result.HasNextPage = true
		result.HasPrevPage = hasMore
	} else {
		result.HasNextPage = hasMore
		result.HasPrevPage = req.HasCursor
	}
	return result
}
