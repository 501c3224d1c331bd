package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/louisbranch/capture-preferences/internal/platform/errors"
	"github.com/louisbranch/capture-preferences/internal/platform/requestctx"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage/sqlite"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// stepClock advances by one minute on every read.
type stepClock struct {
	mu   sync.Mutex
	next time.Time
}

func newStepClock() *stepClock {
	return &stepClock{next: baseTime}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(time.Minute)
	return now
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "preferences.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestService(t *testing.T) (*Service, *stepClock) {
	t.Helper()
	clock := newStepClock()
	return New(openStore(t), Config{}, WithClock(clock.Now)), clock
}

func asUser(username string) context.Context {
	return requestctx.WithIdentity(context.Background(), requestctx.Identity{Username: username})
}

func boolPtr(v bool) *bool {
	return &v
}

func mustCreate(t *testing.T, svc *Service, username string, allow bool) storage.PreferenceRecord {
	t.Helper()
	record, err := svc.Create(asUser(username), CreateInput{AllowCapture: boolPtr(allow), RequestHold: boolPtr(false)})
	if err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	return record
}

func usernames(page ListPage) []string {
	out := make([]string, 0, len(page.Preferences))
	for _, record := range page.Preferences {
		out = append(out, record.Preference.Username)
	}
	return out
}

func ids(records []storage.PreferenceRecord) []string {
	out := make([]string, 0, len(records))
	for _, record := range records {
		out = append(out, record.Preference.ID)
	}
	return out
}

// seedHistory writes at minutes 0..5: alice, bob, bob, carol, alice, dave.
func seedHistory(t *testing.T, svc *Service) {
	t.Helper()
	mustCreate(t, svc, "alice", true)
	mustCreate(t, svc, "bob", true)
	mustCreate(t, svc, "bob", false)
	mustCreate(t, svc, "carol", true)
	mustCreate(t, svc, "alice", false)
	mustCreate(t, svc, "dave", true)
}

func TestListReturnsOneCurrentRowPerUser(t *testing.T) {
	svc, _ := newTestService(t)
	seedHistory(t, svc)

	page, err := svc.List(context.Background(), ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]string{"dave", "alice", "carol", "bob"}, usernames(page)); diff != "" {
		t.Fatalf("users mismatch (-want +got):\n%s", diff)
	}
	for _, record := range page.Preferences {
		if record.Preference.Username == "alice" && record.Preference.AllowCapture {
			t.Fatal("expected alice's latest expression to win")
		}
		if record.Preference.Username == "bob" && !record.Preference.ExpressedAt.Equal(baseTime.Add(2*time.Minute)) {
			t.Fatalf("bob expressed_at = %v", record.Preference.ExpressedAt)
		}
	}
	if page.NextCursor != "" || page.PrevCursor != "" {
		t.Fatalf("single page cursors = %q %q", page.NextCursor, page.PrevCursor)
	}
}

func TestListAscendingOrdering(t *testing.T) {
	svc, _ := newTestService(t)
	seedHistory(t, svc)

	page, err := svc.List(context.Background(), ListQuery{Ordering: OrderOldestFirst})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]string{"bob", "carol", "alice", "dave"}, usernames(page)); diff != "" {
		t.Fatalf("users mismatch (-want +got):\n%s", diff)
	}
}

func TestListFiltersApplyAfterResolving(t *testing.T) {
	svc, _ := newTestService(t)
	seedHistory(t, svc)

	// alice's old row at minute 0 is inside the window but is not current.
	before := baseTime.Add(3*time.Minute + 30*time.Second)
	page, err := svc.List(context.Background(), ListQuery{ExpressedAtBefore: &before})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]string{"carol", "bob"}, usernames(page)); diff != "" {
		t.Fatalf("users mismatch (-want +got):\n%s", diff)
	}

	page, err = svc.List(context.Background(), ListQuery{User: "alice"})
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(page.Preferences) != 1 || page.Preferences[0].Preference.AllowCapture {
		t.Fatalf("alice page = %+v", page.Preferences)
	}
}

func TestListRangeBoundsAreExclusive(t *testing.T) {
	svc, _ := newTestService(t)
	seedHistory(t, svc)

	// bob@2, carol@3 and alice@4 are current; the bounds sit exactly on bob and alice.
	after := baseTime.Add(2 * time.Minute)
	before := baseTime.Add(4 * time.Minute)
	page, err := svc.List(context.Background(), ListQuery{ExpressedAtAfter: &after, ExpressedAtBefore: &before})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]string{"carol"}, usernames(page)); diff != "" {
		t.Fatalf("users mismatch (-want +got):\n%s", diff)
	}
}

func TestListUnknownOrQuotedUserIsEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	seedHistory(t, svc)

	for _, user := range []string{"nobody", `al"ice`, `a\b`} {
		page, err := svc.List(context.Background(), ListQuery{User: user})
		if err != nil {
			t.Fatalf("list %q: %v", user, err)
		}
		if len(page.Preferences) != 0 {
			t.Fatalf("list %q = %v, want empty", user, usernames(page))
		}
	}
}

func traverse(t *testing.T, svc *Service, q ListQuery) ([]storage.PreferenceRecord, ListPage) {
	t.Helper()
	var rows []storage.PreferenceRecord
	var last ListPage
	for i := 0; i < 100; i++ {
		page, err := svc.List(context.Background(), q)
		if err != nil {
			t.Fatalf("list page %d: %v", i, err)
		}
		rows = append(rows, page.Preferences...)
		last = page
		if page.NextCursor == "" {
			return rows, last
		}
		q.Cursor = page.NextCursor
	}
	t.Fatal("traversal did not terminate")
	return nil, ListPage{}
}

func TestPageSizeOneTraversalMatchesSinglePage(t *testing.T) {
	svc, _ := newTestService(t)
	seedHistory(t, svc)

	after := baseTime.Add(30 * time.Second)
	before := baseTime.Add(10 * time.Minute)
	queries := []ListQuery{
		{},
		{Ordering: OrderOldestFirst},
		{ExpressedAtAfter: &after},
		{Ordering: OrderOldestFirst, ExpressedAtAfter: &after, ExpressedAtBefore: &before},
		{ExpressedAtBefore: &before},
	}
	for _, base := range queries {
		whole := base
		whole.PageSize = MaxPageSize
		all, err := svc.List(context.Background(), whole)
		if err != nil {
			t.Fatalf("list whole: %v", err)
		}

		paged := base
		paged.PageSize = 1
		rows, last := traverse(t, svc, paged)
		if diff := cmp.Diff(ids(all.Preferences), ids(rows)); diff != "" {
			t.Fatalf("query %+v: traversal mismatch (-want +got):\n%s", base, diff)
		}

		// Walking back from the last page reproduces the same sequence.
		back := append([]storage.PreferenceRecord(nil), last.Preferences...)
		page := last
		for page.PrevCursor != "" {
			prev := paged
			prev.Cursor = page.PrevCursor
			page, err = svc.List(context.Background(), prev)
			if err != nil {
				t.Fatalf("list previous: %v", err)
			}
			back = append(append([]storage.PreferenceRecord(nil), page.Preferences...), back...)
		}
		if diff := cmp.Diff(ids(all.Preferences), ids(back)); diff != "" {
			t.Fatalf("query %+v: backward mismatch (-want +got):\n%s", base, diff)
		}
	}
}

func TestCursorSurvivesAppendsForOtherUsers(t *testing.T) {
	svc, _ := newTestService(t)
	seedHistory(t, svc)

	first, err := svc.List(context.Background(), ListQuery{Ordering: OrderOldestFirst, PageSize: 2})
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	mustCreate(t, svc, "erin", true)

	second, err := svc.List(context.Background(), ListQuery{Ordering: OrderOldestFirst, PageSize: 2, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if diff := cmp.Diff([]string{"alice", "dave"}, usernames(second)); diff != "" {
		t.Fatalf("second page mismatch (-want +got):\n%s", diff)
	}
}

func TestCursorRejectedWhenQueryChanges(t *testing.T) {
	svc, _ := newTestService(t)
	seedHistory(t, svc)

	first, err := svc.List(context.Background(), ListQuery{PageSize: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if first.NextCursor == "" {
		t.Fatal("expected next cursor")
	}

	tests := []ListQuery{
		{PageSize: 1, Cursor: first.NextCursor, Ordering: OrderOldestFirst},
		{PageSize: 1, Cursor: first.NextCursor, User: "bob"},
		{PageSize: 1, Cursor: "garbage"},
	}
	for _, q := range tests {
		_, err := svc.List(context.Background(), q)
		if apperrors.KindOf(err) != apperrors.KindInvalidInput {
			t.Fatalf("List(%+v) err = %v, want invalid input", q, err)
		}
	}
}

func TestListRejectsUnknownOrdering(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.List(context.Background(), ListQuery{Ordering: "created_at"})
	if apperrors.KindOf(err) != apperrors.KindInvalidInput {
		t.Fatalf("err = %v, want invalid input", err)
	}
	if _, ok := apperrors.FieldsOf(err)["ordering"]; !ok {
		t.Fatalf("fields = %v, want ordering", apperrors.FieldsOf(err))
	}
}

func TestListPageSizeIsClamped(t *testing.T) {
	store := openStore(t)
	clock := newStepClock()
	svc := New(store, Config{PageSize: 2, MaxPageSize: 3}, WithClock(clock.Now))
	for _, user := range []string{"a1", "b1", "c1", "d1", "e1"} {
		mustCreate(t, svc, user, true)
	}

	tests := []struct {
		pageSize int
		want     int
	}{
		{pageSize: 0, want: 2},
		{pageSize: -4, want: 2},
		{pageSize: 1, want: 1},
		{pageSize: 99, want: 3},
	}
	for _, tc := range tests {
		page, err := svc.List(context.Background(), ListQuery{PageSize: tc.pageSize})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page.Preferences) != tc.want {
			t.Fatalf("page_size %d returned %d rows, want %d", tc.pageSize, len(page.Preferences), tc.want)
		}
	}
}

func TestCreateProducesStrictlyLaterCurrentRow(t *testing.T) {
	svc, _ := newTestService(t)

	first := mustCreate(t, svc, "spqr1", true)
	second := mustCreate(t, svc, "spqr1", false)
	if !second.Preference.ExpressedAt.After(first.Preference.ExpressedAt) {
		t.Fatalf("second expressed_at %v not after %v", second.Preference.ExpressedAt, first.Preference.ExpressedAt)
	}

	page, err := svc.List(context.Background(), ListQuery{User: "spqr1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]string{second.Preference.ID}, ids(page.Preferences)); diff != "" {
		t.Fatalf("current row mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateRecordsDirectoryNames(t *testing.T) {
	svc, _ := newTestService(t)

	ctx := requestctx.WithIdentity(context.Background(), requestctx.Identity{Username: "spqr1", FirstName: "Sam", LastName: "Quentin"})
	record, err := svc.Create(ctx, CreateInput{AllowCapture: boolPtr(true), RequestHold: boolPtr(true)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.User.DisplayName() != "Sam Quentin" {
		t.Fatalf("display name = %q", record.User.DisplayName())
	}

	page, err := svc.List(context.Background(), ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := page.Preferences[0].User.DisplayName(); got != "Sam Quentin" {
		t.Fatalf("listed display name = %q", got)
	}
}

func TestCreateAnonymousIsForbiddenAndWritesNothing(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{AllowCapture: boolPtr(true), RequestHold: boolPtr(true)})
	if apperrors.KindOf(err) != apperrors.KindForbidden {
		t.Fatalf("err = %v, want forbidden", err)
	}

	page, err := svc.List(context.Background(), ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Preferences) != 0 {
		t.Fatalf("rows = %d, want 0", len(page.Preferences))
	}
}

func TestCreateValidationListsEveryField(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(asUser("spqr1"), CreateInput{})
	if apperrors.KindOf(err) != apperrors.KindInvalidInput {
		t.Fatalf("err = %v, want invalid input", err)
	}
	want := map[string][]string{
		"allow_capture": {requiredField},
		"request_hold":  {requiredField},
	}
	if diff := cmp.Diff(want, apperrors.FieldsOf(err)); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateDuplicateInstantIsInternal(t *testing.T) {
	store := openStore(t)
	svc := New(store, Config{}, WithClock(func() time.Time { return baseTime }))

	mustCreate(t, svc, "spqr1", true)
	_, err := svc.Create(asUser("spqr1"), CreateInput{AllowCapture: boolPtr(false), RequestHold: boolPtr(false)})
	if apperrors.KindOf(err) != apperrors.KindInternal {
		t.Fatalf("err = %v, want internal", err)
	}
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("err = %v, want wrapped %v", err, storage.ErrAlreadyExists)
	}
}

func TestProfile(t *testing.T) {
	svc, _ := newTestService(t)

	anonymous := svc.Profile(context.Background())
	if !anonymous.IsAnonymous || anonymous.Username != "" || anonymous.DisplayName != "" {
		t.Fatalf("anonymous profile = %+v", anonymous)
	}

	ctx := requestctx.WithIdentity(context.Background(), requestctx.Identity{Username: "spqr1", LastName: "Quentin"})
	got := svc.Profile(ctx)
	want := Profile{IsAnonymous: false, Username: "spqr1", DisplayName: "Quentin"}
	if got != want {
		t.Fatalf("profile = %+v, want %+v", got, want)
	}
}
