// Package auth verifies the bearer tokens that carry a caller's identity.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/capture-preferences/internal/platform/errors"
	"github.com/louisbranch/capture-preferences/internal/platform/requestctx"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/preference"
)

const signingMethod = "HS256"

// Config defines how bearer tokens are signed and verified.
type Config struct {
	Issuer string
	Secret []byte
	Now    func() time.Time
}

// identityClaims is the claims type used for JWT parsing.
type identityClaims struct {
	jwt.RegisteredClaims
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
}

func (cfg Config) now() time.Time {
	if cfg.Now == nil {
		return time.Now().UTC()
	}
	return cfg.Now().UTC()
}

func (cfg Config) validate() error {
	if strings.TrimSpace(cfg.Issuer) == "" || len(cfg.Secret) == 0 {
		return errors.New("token verifier is not configured")
	}
	return nil
}

// Verify checks a bearer token and returns the identity it carries.
func Verify(token string, cfg Config) (requestctx.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return requestctx.Identity{}, apperrors.E(apperrors.KindUnauthorized, "token is required")
	}
	if err := cfg.validate(); err != nil {
		return requestctx.Identity{}, err
	}

	var parsed identityClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.now),
	)
	if err != nil {
		return requestctx.Identity{}, mapJWTError(err)
	}

	if err := preference.ValidateUsername(parsed.Subject); err != nil {
		return requestctx.Identity{}, apperrors.Wrap(apperrors.KindUnauthorized, "token subject is invalid", err)
	}

	return requestctx.Identity{
		Username:  parsed.Subject,
		FirstName: strings.TrimSpace(parsed.GivenName),
		LastName:  strings.TrimSpace(parsed.FamilyName),
	}, nil
}

// Mint signs a token for identity that expires after ttl.
func Mint(identity requestctx.Identity, ttl time.Duration, cfg Config) (string, error) {
	if err := cfg.validate(); err != nil {
		return "", err
	}
	if err := preference.ValidateUsername(identity.Username); err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}

	now := cfg.now()
	claims := identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   identity.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		GivenName:  identity.FirstName,
		FamilyName: identity.LastName,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.Wrap(apperrors.KindUnauthorized, "token is expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.Wrap(apperrors.KindUnauthorized, "token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return apperrors.Wrap(apperrors.KindUnauthorized, "token issuer mismatch", err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperrors.Wrap(apperrors.KindUnauthorized, "token alg is invalid", err)
	default:
		return apperrors.Wrap(apperrors.KindUnauthorized, "token is invalid", err)
	}
}
