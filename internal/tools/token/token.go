// Package token mints bearer tokens and signing secrets for local development.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/capture-preferences/internal/platform/cmd"
	"github.com/louisbranch/capture-preferences/internal/platform/requestctx"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/auth"
)

const secretEnv = "CAPTURE_PREFERENCES_TOKEN_SECRET"

// Config holds token tool configuration.
type Config struct {
	Secret string `env:"CAPTURE_PREFERENCES_TOKEN_SECRET"`
	Issuer string `env:"CAPTURE_PREFERENCES_TOKEN_ISSUER" envDefault:"capture-preferences"`

	User           string
	FirstName      string
	LastName       string
	TTL            time.Duration
	GenerateSecret bool
	SecretBytes    int
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{TTL: 24 * time.Hour, SecretBytes: 32}
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.User, "user", cfg.User, "username carried in the sub claim")
	fs.StringVar(&cfg.FirstName, "first-name", cfg.FirstName, "given name claim")
	fs.StringVar(&cfg.LastName, "last-name", cfg.LastName, "family name claim")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "token lifetime")
	fs.StringVar(&cfg.Issuer, "issuer", cfg.Issuer, "token issuer")
	fs.BoolVar(&cfg.GenerateSecret, "generate-secret", cfg.GenerateSecret, "print a new signing secret instead of a token")
	fs.IntVar(&cfg.SecretBytes, "secret-bytes", cfg.SecretBytes, "random bytes in a generated secret")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run writes either a signed token or a fresh secret to out.
func Run(cfg Config, out io.Writer, reader io.Reader, now func() time.Time) error {
	if out == nil {
		return errors.New("output is required")
	}
	if cfg.GenerateSecret {
		return writeSecret(cfg.SecretBytes, out, reader)
	}

	if strings.TrimSpace(cfg.User) == "" {
		return errors.New("user is required")
	}
	if cfg.Secret == "" {
		return fmt.Errorf("%s is required", secretEnv)
	}
	token, err := auth.Mint(requestctx.Identity{
		Username:  cfg.User,
		FirstName: cfg.FirstName,
		LastName:  cfg.LastName,
	}, cfg.TTL, auth.Config{Issuer: cfg.Issuer, Secret: []byte(cfg.Secret), Now: now})
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func writeSecret(size int, out io.Writer, reader io.Reader) error {
	if size <= 0 {
		return errors.New("secret bytes must be greater than zero")
	}
	if reader == nil {
		reader = rand.Reader
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	_, err := fmt.Fprintf(out, "%s=%s\n", secretEnv, hex.EncodeToString(buf))
	return err
}
