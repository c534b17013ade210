package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/pribylovaa/books-auth/internal/metrics"
	"github.com/pribylovaa/books-auth/internal/pkg/log"
)

// identity — субъект запроса; заполняется Authenticate.
type identity struct {
	userID   string
	username string
}

// Logging кладёт request-scoped логгер в контекст и пишет одну запись
// на запрос: метод, маршрут, статус, длительность, клиент и субъект
// (или anonymous). Длительность также уходит в метрики.
func Logging(l *slog.Logger, m *metrics.Metrics) Middleware {
	if l == nil {
		l = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := l
			if rid := r.Header.Get("X-Request-Id"); rid != "" {
				reqLogger = reqLogger.With(slog.String("request_id", rid))
			}

			id := &identity{}
			ctx := log.Into(r.Context(), reqLogger)
			ctx = context.WithValue(ctx, ctxIdentity, id)
			r = r.WithContext(ctx)

			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)
			dur := time.Since(start)

			if sw.status == 0 {
				sw.status = http.StatusOK
			}

			route := routePattern(r)
			m.ObserveHTTP(r.Method, route, sw.status, dur)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", route),
				slog.Int("status", sw.status),
				slog.Duration("dur", dur),
				slog.Int("bytes", sw.count),
				slog.String("ip", clientIP(r)),
				slog.String("user_agent", r.UserAgent()),
			}
			if id.userID != "" {
				attrs = append(attrs,
					slog.String("user_id", id.userID),
					slog.String("username", id.username),
				)
			} else {
				attrs = append(attrs, slog.String("user", "anonymous"))
			}
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
			}

			log.From(r.Context()).LogAttrs(r.Context(), slog.LevelInfo, "http", attrs...)
		})
	}
}

// routePattern возвращает шаблон маршрута chi ("/profile/{username}"),
// чтобы не раздувать кардинальность метрик.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}

	return "unmatched"
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
