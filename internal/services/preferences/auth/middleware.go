package auth

import (
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/capture-preferences/internal/platform/errors"
	"github.com/louisbranch/capture-preferences/internal/platform/httpx"
	"github.com/louisbranch/capture-preferences/internal/platform/requestctx"
)

// Middleware resolves the caller identity from the Authorization header.
// Requests without the header proceed anonymously; a header that fails
// verification is rejected with 401.
func Middleware(cfg Config) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				w.Header().Set("WWW-Authenticate", `Bearer`)
				_ = httpx.WriteError(w, apperrors.E(apperrors.KindUnauthorized, "authorization scheme must be Bearer"))
				return
			}

			identity, err := Verify(token, cfg)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				if apperrors.KindOf(err) != apperrors.KindUnauthorized {
					err = apperrors.Wrap(apperrors.KindInternal, "token verifier failed", err)
				}
				_ = httpx.WriteError(w, err)
				return
			}

			ctx := requestctx.WithIdentity(r.Context(), identity)
			httpx.ReportIdentity(ctx, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
