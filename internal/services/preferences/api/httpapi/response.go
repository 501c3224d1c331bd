package httpapi

import (
	"time"

	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage"
)

// timestampLayout renders UTC timestamps with microseconds.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

type profileResponse struct {
	IsAnonymous bool   `json:"is_anonymous"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name"`
}

type userResponse struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

type preferenceResponse struct {
	ID           string       `json:"id,omitempty"`
	User         userResponse `json:"user"`
	AllowCapture bool         `json:"allow_capture"`
	RequestHold  bool         `json:"request_hold"`
	ExpressedAt  string       `json:"expressed_at"`
}

type listResponse struct {
	Results  []preferenceResponse `json:"results"`
	Next     *string              `json:"next"`
	Previous *string              `json:"previous"`
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func newPreferenceResponse(record storage.PreferenceRecord, withID bool) preferenceResponse {
	resp := preferenceResponse{
		User: userResponse{
			Username:    record.Preference.Username,
			DisplayName: record.User.DisplayName(),
		},
		AllowCapture: record.Preference.AllowCapture,
		RequestHold:  record.Preference.RequestHold,
		ExpressedAt:  formatTimestamp(record.Preference.ExpressedAt),
	}
	if withID {
		resp.ID = record.Preference.ID
	}
	return resp
}
