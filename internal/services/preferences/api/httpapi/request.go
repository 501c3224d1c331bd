package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/capture-preferences/internal/platform/errors"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/service"
)

const (
	userParam              = "user"
	expressedAtAfterParam  = "expressed_at_after"
	expressedAtBeforeParam = "expressed_at_before"
	orderingParam          = "ordering"
	pageSizeParam          = "page_size"
	cursorParam            = "cursor"

	maxBodyBytes = 1 << 16
)

// timestampLayouts are the ISO-8601 forms accepted for range bounds. Layouts
// without an offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC().Truncate(time.Microsecond), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

// parseListQuery reads listing parameters. Blank values are ignored and an
// unusable page_size falls back to the default window.
func parseListQuery(values url.Values) (service.ListQuery, error) {
	q := service.ListQuery{
		User:     values.Get(userParam),
		Ordering: strings.TrimSpace(values.Get(orderingParam)),
		Cursor:   values.Get(cursorParam),
	}

	fields := apperrors.FieldErrors{}
	for _, bound := range []struct {
		param string
		dest  **time.Time
	}{
		{expressedAtAfterParam, &q.ExpressedAtAfter},
		{expressedAtBeforeParam, &q.ExpressedAtBefore},
	} {
		raw := values.Get(bound.param)
		if strings.TrimSpace(raw) == "" {
			continue
		}
		t, err := parseTimestamp(raw)
		if err != nil {
			fields.Add(bound.param, "Enter a valid date/time.")
			continue
		}
		*bound.dest = &t
	}
	if err := fields.Err(); err != nil {
		return service.ListQuery{}, err
	}

	if raw := strings.TrimSpace(values.Get(pageSizeParam)); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil && size > 0 {
			q.PageSize = size
		}
	}
	return q, nil
}

// decodeCreateInput reads a JSON or form payload. Unknown fields, including
// expressed_at, are ignored.
func decodeCreateInput(r *http.Request) (service.CreateInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var raw map[string]any
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return service.CreateInput{}, apperrors.Wrap(apperrors.KindInvalidInput, "malformed form body", err)
		}
		raw = make(map[string]any, len(r.PostForm))
		for key := range r.PostForm {
			raw[key] = r.PostForm.Get(key)
		}
	default:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return service.CreateInput{}, apperrors.Wrap(apperrors.KindInvalidInput, "unreadable body", err)
		}
		if len(bytes.TrimSpace(body)) == 0 {
			raw = map[string]any{}
			break
		}
		decoder := json.NewDecoder(bytes.NewReader(body))
		decoder.UseNumber()
		if err := decoder.Decode(&raw); err != nil {
			return service.CreateInput{}, apperrors.Wrap(apperrors.KindInvalidInput, "JSON parse error", err)
		}
	}

	fields := apperrors.FieldErrors{}
	var input service.CreateInput
	for _, field := range []struct {
		name string
		dest **bool
	}{
		{"allow_capture", &input.AllowCapture},
		{"request_hold", &input.RequestHold},
	} {
		value, present := raw[field.name]
		if !present {
			continue
		}
		b, ok := parseBoolean(value)
		if !ok {
			fields.Add(field.name, "Must be a valid boolean.")
			continue
		}
		*field.dest = &b
	}
	if err := fields.Err(); err != nil {
		return service.CreateInput{}, err
	}
	return input, nil
}

// parseBoolean accepts JSON booleans, 0/1 and the usual true/false words.
func parseBoolean(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case json.Number:
		switch v.String() {
		case "1":
			return true, true
		case "0":
			return false, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "t", "yes", "y", "on", "1":
			return true, true
		case "false", "f", "no", "n", "off", "0":
			return false, true
		}
	}
	return false, false
}
