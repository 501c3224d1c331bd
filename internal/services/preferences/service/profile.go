package service

import (
	"context"

	"github.com/louisbranch/capture-preferences/internal/platform/otel"
	"github.com/louisbranch/capture-preferences/internal/platform/requestctx"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/preference"
)

// Profile describes the caller.
type Profile struct {
	IsAnonymous bool
	Username    string
	DisplayName string
}

// Profile returns the caller's profile from request identity.
func (s *Service) Profile(ctx context.Context) Profile {
	_, span := otel.Tracer().Start(ctx, "preferences.Profile")
	defer span.End()

	identity := requestctx.IdentityFromContext(ctx)
	return Profile{
		IsAnonymous: identity.Anonymous(),
		Username:    identity.Username,
		DisplayName: preference.DisplayName(identity.Username, identity.FirstName, identity.LastName),
	}
}
