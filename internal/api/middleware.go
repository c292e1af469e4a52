package api

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
)

// requireAdmin accepts requests carrying one of the configured bearer
// tokens. A missing or malformed header is 401; an unknown token is 403.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || scheme != "Bearer" || token == "" {
			s.Error(w, r, errors.AuthError("missing or malformed bearer token").Build())
			return
		}
		if !s.knownToken(token) {
			s.logger.Warn("Admin token rejected", logfields.Path(r.URL.Path))
			body := s.errors.FormatErrorResponse(errors.AuthError("token not authorized").Build())
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) knownToken(token string) bool {
	found := false
	for t := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			found = true
		}
	}
	return found
}

// requestLogger logs each request through slog.
func requestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("Admin request",
				slog.String("method", r.Method),
				logfields.Path(r.URL.Path),
				logfields.Status(ww.Status()),
				logfields.DurationMS(float64(time.Since(start).Microseconds())/1000),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
