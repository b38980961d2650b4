package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/goliatone/go-listings/internal/auth"
	"github.com/goliatone/go-listings/listing"
)

// requestLogger logs one line per request after it completes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "request completed",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// authenticate resolves a bearer token into the request's requester. A
// request without an Authorization header passes through anonymously; a
// malformed or rejected token is answered with 401.
func authenticate(tokens TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				respondError(w, r, logger, listing.NewUnauthorizedError("invalid authorization header"))
				return
			}

			claims, err := tokens.Verify(strings.TrimSpace(token))
			if err != nil {
				respondError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithRequester(r.Context(), claims.Subject)))
		})
	}
}

// requireRequester rejects anonymous requests.
func requireRequester(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.RequesterFromContext(r.Context()); !ok {
				respondError(w, r, logger, listing.NewUnauthorizedError("authorization required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requester(r *http.Request) string {
	id, _ := auth.RequesterFromContext(r.Context())
	return id
}
