package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/louisbranch/capture-preferences/internal/platform/errors"
	"github.com/louisbranch/capture-preferences/internal/platform/httpx"
	"github.com/louisbranch/capture-preferences/internal/platform/requestctx"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/service"
)

const (
	// ProfilePath is the caller profile endpoint.
	ProfilePath = "/api/profile/"
	// PreferencesPath is the preference collection endpoint.
	PreferencesPath = "/api/preferences/"
)

// Handler serves the preference API.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewHandler builds a Handler over svc.
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(ProfilePath+"{$}", h.handleProfile)
	mux.HandleFunc(PreferencesPath+"{$}", h.handlePreferences)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httpx.MethodNotAllowed("GET, HEAD, OPTIONS")(w, r)
		return
	}
	profile := h.svc.Profile(r.Context())
	h.writeJSON(w, http.StatusOK, profileResponse{
		IsAnonymous: profile.IsAnonymous,
		Username:    profile.Username,
		DisplayName: profile.DisplayName,
	})
}

func (h *Handler) handlePreferences(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.listPreferences(w, r)
	case http.MethodPost:
		h.createPreference(w, r)
	default:
		httpx.MethodNotAllowed("GET, POST, HEAD, OPTIONS")(w, r)
	}
}

func (h *Handler) listPreferences(w http.ResponseWriter, r *http.Request) {
	query, err := parseListQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.svc.List(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := listResponse{Results: make([]preferenceResponse, 0, len(page.Preferences))}
	for _, record := range page.Preferences {
		resp.Results = append(resp.Results, newPreferenceResponse(record, false))
	}
	resp.Next = pageLink(r, page.NextCursor)
	resp.Previous = pageLink(r, page.PrevCursor)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createPreference(w http.ResponseWriter, r *http.Request) {
	// Permission is decided before the body is read.
	if requestctx.IdentityFromContext(r.Context()).Anonymous() {
		h.writeError(w, r, apperrors.E(apperrors.KindForbidden, "Authentication credentials were not provided."))
		return
	}

	input, err := decodeCreateInput(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	record, err := h.svc.Create(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newPreferenceResponse(record, true))
}

// pageLink rebuilds the request URL with cursor replaced, or nil when empty.
func pageLink(r *http.Request, cursor string) *string {
	if cursor == "" {
		return nil
	}
	values := r.URL.Query()
	values.Set(cursorParam, cursor)
	link := httpx.AbsoluteURL(r, values.Encode())
	return &link
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpx.WriteJSON(w, status, payload); err != nil {
		h.logger.Warn("write response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	if writeErr := httpx.WriteError(w, err); writeErr != nil {
		h.logger.Warn("write error response", zap.Error(writeErr))
	}
}
