package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mindcare-ai/mindcare/backend/internal/pkg/logger"
)

// RequestLogger logs one line per request at a level chosen by status code.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if log == nil {
				return
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			fields := []interface{}{
				"method", strings.ToUpper(r.Method),
				"path", path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				fields = append(fields, "request_id", reqID)
			}

			switch {
			case status >= 500:
				log.Error("HTTP request", fields...)
			case status >= 400:
				log.Warn("HTTP request", fields...)
			default:
				log.Info("HTTP request", fields...)
			}
		})
	}
}
