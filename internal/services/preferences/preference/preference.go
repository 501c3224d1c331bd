package preference

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/louisbranch/capture-preferences/internal/platform/id"
)

var (
	// ErrEmptyUsername indicates a missing owner.
	ErrEmptyUsername = errors.New("username is required")
	// ErrInvalidUsername indicates a username the filter language cannot quote.
	ErrInvalidUsername = errors.New("username must not contain quotes, backslashes or control characters")
)

// Preference is one immutable expression of a user's capture preference.
type Preference struct {
	ID           string
	Username     string
	AllowCapture bool
	RequestHold  bool
	ExpressedAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// User is the directory entry used to render display names.
type User struct {
	Username  string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName renders the user's display name.
func (u User) DisplayName() string {
	return DisplayName(u.Username, u.FirstName, u.LastName)
}

// CreatePreferenceInput describes a new expression for an authenticated user.
type CreatePreferenceInput struct {
	Username     string
	AllowCapture bool
	RequestHold  bool
}

// ValidateUsername rejects usernames that cannot be stored or filtered on.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return ErrEmptyUsername
	}
	for _, r := range username {
		if r == '"' || r == '\\' || unicode.IsControl(r) {
			return ErrInvalidUsername
		}
	}
	return nil
}

// Timestamp normalizes a time to the stored resolution.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// CreatePreference builds a new expression stamped with now.
func CreatePreference(input CreatePreferenceInput, now func() time.Time, idGenerator func() (string, error)) (Preference, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if err := ValidateUsername(input.Username); err != nil {
		return Preference{}, err
	}

	prefID, err := idGenerator()
	if err != nil {
		return Preference{}, fmt.Errorf("generate preference id: %w", err)
	}

	expressedAt := Timestamp(now())
	return Preference{
		ID:           prefID,
		Username:     input.Username,
		AllowCapture: input.AllowCapture,
		RequestHold:  input.RequestHold,
		ExpressedAt:  expressedAt,
		CreatedAt:    expressedAt,
		UpdatedAt:    expressedAt,
	}, nil
}
