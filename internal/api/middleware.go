package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
)

// Middleware — функция-обёртка для http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain применяет middleware в порядке слева направо.
// Chain(m1, m2)(handler) = m1(m2(handler))
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Logging пишет одну запись на запрос с run_id и interaction_id из пути.
func Logging(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			level := slog.LevelInfo
			if rw.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := append(routeAttrs(r),
				slog.String("method", r.Method),
				slog.String("route", r.Pattern),
				slog.Int("status", rw.status),
				slog.Duration("duration", time.Since(start)),
			)
			logger.LogAttrs(r.Context(), level, "api request", attrs...)
		})
	}
}

// Recovery превращает панику обработчика в ответ 500.
func Recovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					attrs := append(routeAttrs(r),
						slog.Any("panic", v),
						slog.String("route", r.Pattern),
						slog.String("stack", string(debug.Stack())),
					)
					logger.LogAttrs(r.Context(), slog.LevelError, "api handler panicked", attrs...)
					Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// routeAttrs — идентификаторы run и взаимодействия из шаблона маршрута.
func routeAttrs(r *http.Request) []slog.Attr {
	var attrs []slog.Attr
	if id := r.PathValue("id"); id != "" {
		attrs = append(attrs, slog.String("run_id", id))
	}
	if it := r.PathValue("interaction"); it != "" {
		attrs = append(attrs, slog.String("interaction_id", it))
	}
	return attrs
}

// responseWriter запоминает отправленный статус.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}
