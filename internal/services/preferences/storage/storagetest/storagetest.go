// Package storagetest holds behaviour tests shared by every PreferenceStore
// driver.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/louisbranch/capture-preferences/internal/services/preferences/preference"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage"
)

// Opener returns an empty store that is closed when the test ends.
type Opener func(t *testing.T) storage.PreferenceStore

// Base is the instant the seeded history starts from.
var Base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// At returns Base shifted by minutes.
func At(minutes int) time.Time {
	return Base.Add(time.Duration(minutes) * time.Minute)
}

// Seed appends a small history: alice at 1 and 5, bob at 2 and 3, carol at 4.
// Current rows are alice@5, carol@4 and bob@3.
func Seed(t *testing.T, store storage.PreferenceStore) {
	t.Helper()
	ctx := context.Background()
	history := []struct {
		user    string
		minutes int
		allow   bool
	}{
		{"alice", 1, true},
		{"bob", 2, true},
		{"bob", 3, false},
		{"carol", 4, true},
		{"alice", 5, false},
	}
	for _, h := range history {
		at := At(h.minutes)
		_, err := store.AppendPreference(ctx, preference.Preference{
			ID:           fmt.Sprintf("%s-%d", h.user, h.minutes),
			Username:     h.user,
			AllowCapture: h.allow,
			ExpressedAt:  at,
			CreatedAt:    at,
			UpdatedAt:    at,
		})
		if err != nil {
			t.Fatalf("append %s@%d: %v", h.user, h.minutes, err)
		}
	}
}

// IDs lists the preference ids of a page in order.
func IDs(records []storage.PreferenceRecord) []string {
	out := make([]string, 0, len(records))
	for _, record := range records {
		out = append(out, record.Preference.ID)
	}
	return out
}

// Run exercises the PreferenceStore contract against open.
func Run(t *testing.T, open Opener) {
	t.Run("append rejects duplicate instant", func(t *testing.T) { testAppendDuplicate(t, open) })
	t.Run("append returns normalized row", func(t *testing.T) { testAppendNormalizes(t, open) })
	t.Run("put user upserts", func(t *testing.T) { testPutUser(t, open) })
	t.Run("list all", func(t *testing.T) { testListAll(t, open) })
	t.Run("most recent per user", func(t *testing.T) { testMostRecent(t, open) })
	t.Run("resolver commutes with filters", func(t *testing.T) { testResolverCommutes(t, open) })
	t.Run("keyset traversal", func(t *testing.T) { testTraversal(t, open) })
	t.Run("records carry directory names", func(t *testing.T) { testDirectoryJoin(t, open) })
	t.Run("canceled context", func(t *testing.T) { testCanceledContext(t, open) })
}

func testAppendDuplicate(t *testing.T, open Opener) {
	store := open(t)
	Seed(t, store)

	_, err := store.AppendPreference(context.Background(), preference.Preference{
		ID:          "alice-dup",
		Username:    "alice",
		ExpressedAt: At(1),
		CreatedAt:   At(1),
		UpdatedAt:   At(1),
	})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("err = %v, want %v", err, storage.ErrAlreadyExists)
	}

	page, err := store.ListPreferencesPage(context.Background(), storage.ListPreferencesPageRequest{PageSize: 50})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Preferences) != 5 {
		t.Fatalf("rows = %d, want 5", len(page.Preferences))
	}
}

func testAppendNormalizes(t *testing.T, open Opener) {
	store := open(t)

	at := time.Date(2026, 3, 2, 10, 0, 0, 123456789, time.FixedZone("x", 3600))
	got, err := store.AppendPreference(context.Background(), preference.Preference{
		ID:          "p-1",
		Username:    "dave",
		RequestHold: true,
		ExpressedAt: at,
		CreatedAt:   at,
		UpdatedAt:   at,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	want := time.Date(2026, 3, 2, 9, 0, 0, 123456000, time.UTC)
	if !got.ExpressedAt.Equal(want) {
		t.Fatalf("expressed_at = %v, want %v", got.ExpressedAt, want)
	}

	page, err := store.ListPreferencesPage(context.Background(), storage.ListPreferencesPageRequest{PageSize: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Preferences) != 1 {
		t.Fatalf("rows = %d, want 1", len(page.Preferences))
	}
	stored := page.Preferences[0].Preference
	if !stored.ExpressedAt.Equal(want) || stored.ExpressedAt.Location() != time.UTC || !stored.RequestHold || stored.AllowCapture {
		t.Fatalf("stored = %+v", stored)
	}

	if _, err := store.AppendPreference(context.Background(), preference.Preference{Username: "dave"}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func testPutUser(t *testing.T, open Opener) {
	store := open(t)
	ctx := context.Background()

	first := preference.User{Username: "alice", FirstName: "Alice", CreatedAt: At(0), UpdatedAt: At(0)}
	if err := store.PutUser(ctx, first); err != nil {
		t.Fatalf("put user: %v", err)
	}
	second := preference.User{Username: "alice", FirstName: "Alice", LastName: "Liddell", CreatedAt: At(9), UpdatedAt: At(9)}
	if err := store.PutUser(ctx, second); err != nil {
		t.Fatalf("put user again: %v", err)
	}
	if _, err := store.AppendPreference(ctx, preference.Preference{
		ID:          "alice-9",
		Username:    "alice",
		ExpressedAt: At(9),
		CreatedAt:   At(9),
		UpdatedAt:   At(9),
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	page, err := store.ListPreferencesPage(ctx, storage.ListPreferencesPageRequest{PageSize: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Preferences) != 1 {
		t.Fatalf("rows = %d, want 1", len(page.Preferences))
	}
	got := page.Preferences[0].User
	if got.LastName != "Liddell" || !got.CreatedAt.Equal(At(0)) || !got.UpdatedAt.Equal(At(9)) {
		t.Fatalf("user = %+v", got)
	}
	if err := store.PutUser(ctx, preference.User{}); err == nil {
		t.Fatal("expected error for missing username")
	}
}

func testListAll(t *testing.T, open Opener) {
	store := open(t)
	Seed(t, store)

	asc, err := store.ListPreferencesPage(context.Background(), storage.ListPreferencesPageRequest{PageSize: 50})
	if err != nil {
		t.Fatalf("list ascending: %v", err)
	}
	if diff := cmp.Diff([]string{"alice-1", "bob-2", "bob-3", "carol-4", "alice-5"}, IDs(asc.Preferences)); diff != "" {
		t.Fatalf("ascending mismatch (-want +got):\n%s", diff)
	}
	if asc.HasNextPage || asc.HasPrevPage {
		t.Fatalf("single page flags = next %v prev %v", asc.HasNextPage, asc.HasPrevPage)
	}

	desc, err := store.ListPreferencesPage(context.Background(), storage.ListPreferencesPageRequest{PageSize: 50, Descending: true})
	if err != nil {
		t.Fatalf("list descending: %v", err)
	}
	if diff := cmp.Diff([]string{"alice-5", "carol-4", "bob-3", "bob-2", "alice-1"}, IDs(desc.Preferences)); diff != "" {
		t.Fatalf("descending mismatch (-want +got):\n%s", diff)
	}
}

func testMostRecent(t *testing.T, open Opener) {
	store := open(t)
	Seed(t, store)

	page, err := store.ListPreferencesPage(context.Background(), storage.ListPreferencesPageRequest{
		MostRecentOnly: true,
		PageSize:       50,
		Descending:     true,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]string{"alice-5", "carol-4", "bob-3"}, IDs(page.Preferences)); diff != "" {
		t.Fatalf("most recent mismatch (-want +got):\n%s", diff)
	}
}

func testResolverCommutes(t *testing.T, open Opener) {
	store := open(t)
	Seed(t, store)
	ctx := context.Background()

	// alice's current row is outside the window; her older row must not stand in.
	before, err := store.ListPreferencesPage(ctx, storage.ListPreferencesPageRequest{
		MostRecentOnly: true,
		PageSize:       50,
		Descending:     true,
		FilterClause:   "p.expressed_at < ?",
		FilterParams:   []any{At(4).Add(30 * time.Second).UnixMicro()},
	})
	if err != nil {
		t.Fatalf("list before: %v", err)
	}
	if diff := cmp.Diff([]string{"carol-4", "bob-3"}, IDs(before.Preferences)); diff != "" {
		t.Fatalf("filtered most recent mismatch (-want +got):\n%s", diff)
	}

	byUser, err := store.ListPreferencesPage(ctx, storage.ListPreferencesPageRequest{
		MostRecentOnly: true,
		PageSize:       50,
		FilterClause:   "p.username = ?",
		FilterParams:   []any{"bob"},
	})
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if diff := cmp.Diff([]string{"bob-3"}, IDs(byUser.Preferences)); diff != "" {
		t.Fatalf("user most recent mismatch (-want +got):\n%s", diff)
	}
}

func testTraversal(t *testing.T, open Opener) {
	store := open(t)
	Seed(t, store)
	ctx := context.Background()

	for _, mostRecent := range []bool{false, true} {
		for _, descending := range []bool{false, true} {
			base := storage.ListPreferencesPageRequest{MostRecentOnly: mostRecent, Descending: descending}

			whole := base
			whole.PageSize = 50
			all, err := store.ListPreferencesPage(ctx, whole)
			if err != nil {
				t.Fatalf("list whole: %v", err)
			}
			want := IDs(all.Preferences)

			for pageSize := 1; pageSize <= len(want)+1; pageSize++ {
				forward, pages := walkForward(t, store, base, pageSize)
				if diff := cmp.Diff(want, IDs(forward)); diff != "" {
					t.Fatalf("most_recent=%v desc=%v size=%d forward mismatch (-want +got):\n%s", mostRecent, descending, pageSize, diff)
				}
				backward := walkBackward(t, store, base, pageSize, pages[len(pages)-1])
				if diff := cmp.Diff(want, IDs(backward)); diff != "" {
					t.Fatalf("most_recent=%v desc=%v size=%d backward mismatch (-want +got):\n%s", mostRecent, descending, pageSize, diff)
				}
			}
		}
	}
}

func nextRequest(base storage.ListPreferencesPageRequest, pageSize int, boundary storage.PreferenceRecord) storage.ListPreferencesPageRequest {
	req := base
	req.PageSize = pageSize
	req.HasCursor = true
	req.CursorExpressedAt = boundary.Preference.ExpressedAt
	req.CursorUsername = boundary.Preference.Username
	req.CursorDir = storage.CursorForward
	if base.Descending {
		req.CursorDir = storage.CursorBackward
	}
	return req
}

func prevRequest(base storage.ListPreferencesPageRequest, pageSize int, boundary storage.PreferenceRecord) storage.ListPreferencesPageRequest {
	req := nextRequest(base, pageSize, boundary)
	req.CursorReverse = true
	if req.CursorDir == storage.CursorForward {
		req.CursorDir = storage.CursorBackward
	} else {
		req.CursorDir = storage.CursorForward
	}
	return req
}

func walkForward(t *testing.T, store storage.PreferenceStore, base storage.ListPreferencesPageRequest, pageSize int) ([]storage.PreferenceRecord, []storage.ListPreferencesPageResult) {
	t.Helper()
	req := base
	req.PageSize = pageSize
	var rows []storage.PreferenceRecord
	var pages []storage.ListPreferencesPageResult
	for i := 0; i < 100; i++ {
		page, err := store.ListPreferencesPage(context.Background(), req)
		if err != nil {
			t.Fatalf("list page: %v", err)
		}
		pages = append(pages, page)
		rows = append(rows, page.Preferences...)
		if !page.HasNextPage {
			return rows, pages
		}
		req = nextRequest(base, pageSize, page.Preferences[len(page.Preferences)-1])
	}
	t.Fatal("forward traversal did not terminate")
	return nil, nil
}

func walkBackward(t *testing.T, store storage.PreferenceStore, base storage.ListPreferencesPageRequest, pageSize int, last storage.ListPreferencesPageResult) []storage.PreferenceRecord {
	t.Helper()
	rows := append([]storage.PreferenceRecord(nil), last.Preferences...)
	page := last
	for i := 0; i < 100; i++ {
		if !page.HasPrevPage || len(page.Preferences) == 0 {
			return rows
		}
		var err error
		page, err = store.ListPreferencesPage(context.Background(), prevRequest(base, pageSize, page.Preferences[0]))
		if err != nil {
			t.Fatalf("list previous page: %v", err)
		}
		rows = append(append([]storage.PreferenceRecord(nil), page.Preferences...), rows...)
	}
	t.Fatal("backward traversal did not terminate")
	return nil
}

func testDirectoryJoin(t *testing.T, open Opener) {
	store := open(t)
	Seed(t, store)
	ctx := context.Background()

	if err := store.PutUser(ctx, preference.User{Username: "bob", FirstName: "Bob", LastName: "Builder", CreatedAt: At(0), UpdatedAt: At(0)}); err != nil {
		t.Fatalf("put user: %v", err)
	}

	page, err := store.ListPreferencesPage(ctx, storage.ListPreferencesPageRequest{MostRecentOnly: true, PageSize: 50, Descending: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	names := map[string]string{}
	for _, record := range page.Preferences {
		if record.User.Username != record.Preference.Username {
			t.Fatalf("record user %q does not match owner %q", record.User.Username, record.Preference.Username)
		}
		names[record.User.Username] = record.User.DisplayName()
	}
	want := map[string]string{"alice": "alice", "bob": "Bob Builder", "carol": "carol"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("display names mismatch (-want +got):\n%s", diff)
	}
}

func testCanceledContext(t *testing.T, open Opener) {
	store := open(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.ListPreferencesPage(ctx, storage.ListPreferencesPageRequest{PageSize: 1}); err == nil {
		t.Fatal("expected context error from ListPreferencesPage")
	}
	if _, err := store.AppendPreference(ctx, preference.Preference{ID: "x", Username: "x"}); err == nil {
		t.Fatal("expected context error from AppendPreference")
	}
	if err := store.PutUser(ctx, preference.User{Username: "x"}); err == nil {
		t.Fatal("expected context error from PutUser")
	}
}
