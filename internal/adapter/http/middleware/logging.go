package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLoggingMiddleware логирует HTTP запросы. Уровень зависит от статуса
// ответа; health check пишется только в debug.
func NewLoggingMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Оборачиваем ResponseWriter для получения статуса
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				if ce := logger.Check(requestLevel(r.URL.Path, status), "HTTP request"); ce != nil {
					ce.Write(
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("query", r.URL.RawQuery),
						zap.Int("status", status),
						zap.Int("bytes", ww.BytesWritten()),
						zap.Duration("duration", time.Since(start)),
						zap.String("request_id", middleware.GetReqID(r.Context())),
						zap.String("remote_addr", r.RemoteAddr),
					)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func requestLevel(path string, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	case path == "/health":
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
