package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "github.com/louisbranch/capture-preferences/internal/platform/errors"
	"github.com/louisbranch/capture-preferences/internal/platform/otel"
	"github.com/louisbranch/capture-preferences/internal/platform/requestctx"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/preference"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage"
)

const requiredField = "This field is required."

// CreateInput is a write payload. Nil fields were not supplied.
type CreateInput struct {
	AllowCapture *bool
	RequestHold  *bool
}

// Validate lists every missing field.
func (in CreateInput) Validate() error {
	fields := apperrors.FieldErrors{}
	if in.AllowCapture == nil {
		fields.Add("allow_capture", requiredField)
	}
	if in.RequestHold == nil {
		fields.Add("request_hold", requiredField)
	}
	return fields.Err()
}

// Create appends a new expression for the caller stamped with the current
// time. The caller's directory entry is refreshed first.
func (s *Service) Create(ctx context.Context, input CreateInput) (storage.PreferenceRecord, error) {
	ctx, span := otel.Tracer().Start(ctx, "preferences.Create")
	defer span.End()

	record, err := s.create(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return storage.PreferenceRecord{}, err
	}
	span.SetAttributes(attribute.String("preferences.id", record.Preference.ID))
	return record, nil
}

func (s *Service) create(ctx context.Context, input CreateInput) (storage.PreferenceRecord, error) {
	identity := requestctx.IdentityFromContext(ctx)
	if identity.Anonymous() {
		return storage.PreferenceRecord{}, apperrors.E(apperrors.KindForbidden, "Authentication credentials were not provided.")
	}
	if err := input.Validate(); err != nil {
		return storage.PreferenceRecord{}, err
	}

	p, err := preference.CreatePreference(preference.CreatePreferenceInput{
		Username:     identity.Username,
		AllowCapture: *input.AllowCapture,
		RequestHold:  *input.RequestHold,
	}, s.clock, s.idGenerator)
	if err != nil {
		if errors.Is(err, preference.ErrEmptyUsername) || errors.Is(err, preference.ErrInvalidUsername) {
			return storage.PreferenceRecord{}, apperrors.Wrap(apperrors.KindForbidden, "caller identity is not usable", err)
		}
		return storage.PreferenceRecord{}, apperrors.Wrap(apperrors.KindInternal, "create preference", err)
	}

	user := preference.User{
		Username:  identity.Username,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		CreatedAt: p.ExpressedAt,
		UpdatedAt: p.ExpressedAt,
	}
	if err := s.store.PutUser(ctx, user); err != nil {
		return storage.PreferenceRecord{}, apperrors.Wrap(apperrors.KindInternal, "record user", err)
	}

	stored, err := s.store.AppendPreference(ctx, p)
	if err != nil {
		return storage.PreferenceRecord{}, apperrors.Wrap(apperrors.KindInternal, "append preference", err)
	}
	return storage.PreferenceRecord{Preference: stored, User: user}, nil
}
