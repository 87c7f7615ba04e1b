package handlers

import (
	"net/http"
	"time"

	"github.com/edusphere/apiserver/internal/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestLogger attaches a request-scoped logger to the context and writes
// one access line per request.
func RequestLogger(base *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := base.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			r = r.WithContext(log.WithContext(r.Context()))

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Info().
				Str("uri", r.RequestURI).
				Str("method", r.Method).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Int("size", ww.BytesWritten()).
				Send()
		})
	}
}
