package token

import (
	"bytes"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/capture-preferences/internal/services/preferences/auth"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv("CAPTURE_PREFERENCES_TOKEN_SECRET", "env-secret")

	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Secret != "env-secret" {
		t.Fatalf("secret = %q, want env-secret", cfg.Secret)
	}
	if cfg.Issuer != "capture-preferences" {
		t.Fatalf("issuer = %q, want capture-preferences", cfg.Issuer)
	}
	if cfg.TTL != 24*time.Hour || cfg.SecretBytes != 32 {
		t.Fatalf("cfg = %+v, want default ttl and secret bytes", cfg)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{
		"-user", "spqr1",
		"-first-name", "Sam",
		"-last-name", "Quentin",
		"-ttl", "90m",
		"-issuer", "other",
	})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.User != "spqr1" || cfg.FirstName != "Sam" || cfg.LastName != "Quentin" {
		t.Fatalf("identity flags = %+v", cfg)
	}
	if cfg.TTL != 90*time.Minute || cfg.Issuer != "other" {
		t.Fatalf("ttl = %v issuer = %q", cfg.TTL, cfg.Issuer)
	}
}

func TestParseConfigBadArgs(t *testing.T) {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	if _, err := ParseConfig(fs, []string{"-invalid"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestRunMintsVerifiableToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cfg := Config{
		Secret:    "test-secret",
		Issuer:    "capture-preferences",
		User:      "spqr1",
		FirstName: "Sam",
		LastName:  "Quentin",
		TTL:       time.Hour,
	}
	buf := &bytes.Buffer{}
	if err := Run(cfg, buf, nil, clock); err != nil {
		t.Fatalf("run: %v", err)
	}

	identity, err := auth.Verify(strings.TrimSpace(buf.String()), auth.Config{
		Issuer: cfg.Issuer,
		Secret: []byte(cfg.Secret),
		Now:    clock,
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.Username != "spqr1" || identity.FirstName != "Sam" || identity.LastName != "Quentin" {
		t.Fatalf("identity = %+v", identity)
	}
}

func TestRunRejectsMissingInputs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing user", cfg: Config{Secret: "s", Issuer: "i", TTL: time.Hour}},
		{name: "missing secret", cfg: Config{User: "spqr1", Issuer: "i", TTL: time.Hour}},
		{name: "non-positive ttl", cfg: Config{User: "spqr1", Secret: "s", Issuer: "i"}},
		{name: "bad secret size", cfg: Config{GenerateSecret: true}},
	}
	for _, tc := range tests {
		if err := Run(tc.cfg, &bytes.Buffer{}, nil, nil); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
	if err := Run(Config{GenerateSecret: true, SecretBytes: 4}, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil output")
	}
}

func TestRunGeneratesSecret(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	reader := bytes.NewReader([]byte{0x01, 0x02, 0x03, 0x04})
	if err := Run(Config{GenerateSecret: true, SecretBytes: 4}, buf, reader, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "CAPTURE_PREFERENCES_TOKEN_SECRET=01020304" {
		t.Fatalf("output = %q", got)
	}
}
