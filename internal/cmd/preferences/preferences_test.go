package preferences

import (
	"bytes"
	"flag"
	"testing"

	server "github.com/louisbranch/capture-preferences/internal/services/preferences/app"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("preferences", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Port)
	}
	if cfg.DBDriver != server.DriverSQLite || cfg.DBPath != "data/preferences.db" {
		t.Fatalf("store = %q %q, want sqlite data/preferences.db", cfg.DBDriver, cfg.DBPath)
	}
	if cfg.PageSize != 50 || cfg.MaxPageSize != 300 {
		t.Fatalf("page sizes = %d/%d, want 50/300", cfg.PageSize, cfg.MaxPageSize)
	}
	if cfg.TokenIssuer != "capture-preferences" {
		t.Fatalf("issuer = %q", cfg.TokenIssuer)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("CAPTURE_PREFERENCES_PORT", "9000")
	t.Setenv("CAPTURE_PREFERENCES_DB_DRIVER", "postgres")
	t.Setenv("CAPTURE_PREFERENCES_DB_DSN", "postgres://localhost/preferences")
	t.Setenv("CAPTURE_PREFERENCES_PAGE_SIZE", "20")

	fs := flag.NewFlagSet("preferences", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-port", "9100", "-frontend-dir", "web/dist"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9100 {
		t.Fatalf("port = %d, want flag value 9100", cfg.Port)
	}
	if cfg.DBDriver != server.DriverPostgres || cfg.DBDSN != "postgres://localhost/preferences" {
		t.Fatalf("store = %q %q", cfg.DBDriver, cfg.DBDSN)
	}
	if cfg.PageSize != 20 || cfg.FrontendDir != "web/dist" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseConfigRejectsBadEnv(t *testing.T) {
	t.Setenv("CAPTURE_PREFERENCES_PORT", "eighty")

	fs := flag.NewFlagSet("preferences", flag.ContinueOnError)
	if _, err := ParseConfig(fs, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseConfigBadArgs(t *testing.T) {
	fs := flag.NewFlagSet("preferences", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	if _, err := ParseConfig(fs, []string{"-invalid"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestServerConfig(t *testing.T) {
	cfg := Config{Port: 8080, DBDriver: "sqlite", DBPath: "x.db", TokenIssuer: "iss", TokenSecret: "s", PageSize: 10, MaxPageSize: 20}
	got := cfg.ServerConfig(nil)
	if got.HTTPAddr != ":8080" {
		t.Fatalf("http addr = %q, want :8080", got.HTTPAddr)
	}
	if got.DBPath != "x.db" || got.PageSize != 10 || got.MaxPageSize != 20 || got.TokenSecret != "s" {
		t.Fatalf("server config = %+v", got)
	}
}
