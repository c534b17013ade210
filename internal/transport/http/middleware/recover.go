package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/pribylovaa/books-auth/internal/pkg/log"
	apierrors "github.com/pribylovaa/books-auth/internal/transport/http/errors"
)

var errPanic = errors.New("handler panic")

// Recover перехватывает panic хендлера: клиент получает 500/internal
// в общем конверте с request_id, в лог уходят маршрут, причина и стек.
// http.ErrAbortHandler пробрасывается дальше, net/http обрывает соединение сам.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "panic",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("route", routePattern(r)),
					slog.String("request_id", RequestIDFrom(r.Context())),
					slog.Any("reason", rec),
					slog.String("stack", string(debug.Stack())),
				)
				apierrors.WriteError(w, r, errPanic)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
