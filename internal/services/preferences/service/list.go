package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "github.com/louisbranch/capture-preferences/internal/platform/errors"
	"github.com/louisbranch/capture-preferences/internal/platform/filter"
	"github.com/louisbranch/capture-preferences/internal/platform/otel"
	"github.com/louisbranch/capture-preferences/internal/platform/pagination"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage"
)

// ListQuery selects a page of current preferences. Zero values mean "not
// given".
type ListQuery struct {
	// User restricts results to one username.
	User string
	// ExpressedAtAfter and ExpressedAtBefore are exclusive bounds.
	ExpressedAtAfter  *time.Time
	ExpressedAtBefore *time.Time
	// Ordering is OrderNewestFirst or OrderOldestFirst.
	Ordering string
	// PageSize is clamped to the configured window.
	PageSize int
	// Cursor is a token from a previous page.
	Cursor string
}

// ListPage is one page of current preferences.
type ListPage struct {
	Preferences []storage.PreferenceRecord
	// NextCursor and PrevCursor are empty at either end of the collection.
	NextCursor string
	PrevCursor string
}

// List returns a page of each user's current preference.
func (s *Service) List(ctx context.Context, q ListQuery) (ListPage, error) {
	ctx, span := otel.Tracer().Start(ctx, "preferences.List")
	defer span.End()

	page, err := s.list(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ListPage{}, err
	}
	span.SetAttributes(attribute.Int("preferences.count", len(page.Preferences)))
	return page, nil
}

func (s *Service) list(ctx context.Context, q ListQuery) (ListPage, error) {
	orderBy, err := pagination.NormalizeOrderBy(q.Ordering, orderByConfig)
	if err != nil {
		fields := apperrors.FieldErrors{}
		fields.Add("ordering", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", q.Ordering))
		return ListPage{}, fields.Err()
	}
	descending := orderBy == OrderNewestFirst
	pageSize := pagination.ClampPageSize(q.PageSize, s.pageSize)

	filterStr, ok := buildFilter(q)
	if !ok {
		// A username the store can never hold matches nothing.
		return ListPage{}, nil
	}
	cond, err := filterSchema.Parse(filterStr)
	if err != nil {
		return ListPage{}, apperrors.Wrap(apperrors.KindInvalidInput, "invalid filter", err)
	}

	req := storage.ListPreferencesPageRequest{
		MostRecentOnly: true,
		PageSize:       pageSize,
		Descending:     descending,
		FilterClause:   cond.Clause,
		FilterParams:   cond.Params,
	}

	if q.Cursor != "" {
		c, err := decodeCursor(q.Cursor, filterStr, orderBy)
		if err != nil {
			return ListPage{}, apperrors.Wrap(apperrors.KindInvalidInput, "Invalid cursor", err)
		}
		at, err := pagination.ValueInt(c, fieldExpressedAt)
		if err != nil {
			return ListPage{}, apperrors.Wrap(apperrors.KindInvalidInput, "Invalid cursor", err)
		}
		user, err := pagination.ValueString(c, fieldUser)
		if err != nil {
			return ListPage{}, apperrors.Wrap(apperrors.KindInvalidInput, "Invalid cursor", err)
		}
		req.HasCursor = true
		req.CursorExpressedAt = time.UnixMicro(at).UTC()
		req.CursorUsername = user
		req.CursorDir = string(c.Dir)
		req.CursorReverse = c.Reverse
	}

	result, err := s.store.ListPreferencesPage(ctx, req)
	if err != nil {
		return ListPage{}, apperrors.Wrap(apperrors.KindInternal, "list preferences", err)
	}

	page := ListPage{Preferences: result.Preferences}
	if len(result.Preferences) == 0 {
		return page, nil
	}
	if result.HasNextPage {
		last := result.Preferences[len(result.Preferences)-1]
		page.NextCursor, err = pagination.Encode(pagination.NewNextPageCursor(cursorValues(last), descending, filterStr, orderBy))
		if err != nil {
			return ListPage{}, apperrors.Wrap(apperrors.KindInternal, "encode next cursor", err)
		}
	}
	if result.HasPrevPage {
		first := result.Preferences[0]
		page.PrevCursor, err = pagination.Encode(pagination.NewPrevPageCursor(cursorValues(first), descending, filterStr, orderBy))
		if err != nil {
			return ListPage{}, apperrors.Wrap(apperrors.KindInternal, "encode previous cursor", err)
		}
	}
	return page, nil
}

// buildFilter renders the query as a canonical filter expression. It reports
// false when the user value can never match a stored username.
func buildFilter(q ListQuery) (string, bool) {
	var terms []string
	if q.User != "" {
		term, err := filter.Equals(fieldUser, q.User)
		if err != nil {
			return "", false
		}
		terms = append(terms, term)
	}
	if q.ExpressedAtAfter != nil {
		terms = append(terms, filter.After(fieldExpressedAt, *q.ExpressedAtAfter))
	}
	if q.ExpressedAtBefore != nil {
		terms = append(terms, filter.Before(fieldExpressedAt, *q.ExpressedAtBefore))
	}
	return filter.And(terms...), true
}

func decodeCursor(token, filterStr, orderBy string) (pagination.Cursor, error) {
	c, err := pagination.Decode(token)
	if err != nil {
		return pagination.Cursor{}, err
	}
	if err := pagination.ValidateFilterHash(c, filterStr); err != nil {
		return pagination.Cursor{}, err
	}
	if err := pagination.ValidateOrderHash(c, orderBy); err != nil {
		return pagination.Cursor{}, err
	}
	return c, nil
}

func cursorValues(record storage.PreferenceRecord) []pagination.CursorValue {
	return []pagination.CursorValue{
		pagination.IntValue(fieldExpressedAt, record.Preference.ExpressedAt.UnixMicro()),
		pagination.StringValue(fieldUser, record.Preference.Username),
	}
}
