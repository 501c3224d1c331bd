package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage/storagetest"
)

const testDSNEnv = "CAPTURE_PREFERENCES_POSTGRES_TEST_DSN"

// withSearchPath points dsn at schema for either DSN syntax lib/pq accepts.
func withSearchPath(dsn, schema string) string {
	if strings.Contains(dsn, "://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + schema
	}
	return dsn + " search_path=" + schema
}

// openSchemaStore opens a store inside a fresh schema dropped at cleanup.
func openSchemaStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}

	admin, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open admin db: %v", err)
	}
	t.Cleanup(func() { _ = admin.Close() })

	schema := fmt.Sprintf("pref_test_%d", time.Now().UnixNano())
	if _, err := admin.Exec("CREATE SCHEMA " + pq.QuoteIdentifier(schema)); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = admin.Exec("DROP SCHEMA " + pq.QuoteIdentifier(schema) + " CASCADE")
	})

	store, err := Open(context.Background(), withSearchPath(dsn, schema))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.PreferenceStore {
		return openSchemaStore(t)
	})
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestWithSearchPath(t *testing.T) {
	if got := withSearchPath("postgres://u@h/db?sslmode=disable", "s"); got != "postgres://u@h/db?sslmode=disable&search_path=s" {
		t.Fatalf("url dsn = %q", got)
	}
	if got := withSearchPath("postgres://u@h/db", "s"); got != "postgres://u@h/db?search_path=s" {
		t.Fatalf("url dsn = %q", got)
	}
	if got := withSearchPath("host=h dbname=db", "s"); got != "host=h dbname=db search_path=s" {
		t.Fatalf("kv dsn = %q", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505"})) {
		t.Fatal("expected unique violation")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Fatal("foreign key violation is not a unique violation")
	}
	if isUniqueViolation(fmt.Errorf("boom")) {
		t.Fatal("plain error is not a unique violation")
	}
}
