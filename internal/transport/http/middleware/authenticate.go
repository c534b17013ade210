package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pribylovaa/books-auth/internal/models"
	"github.com/pribylovaa/books-auth/internal/pkg/log"
	"github.com/pribylovaa/books-auth/internal/service"
	apierrors "github.com/pribylovaa/books-auth/internal/transport/http/errors"
)

// Authorizer проверяет access-токен (реализуется service.Service).
type Authorizer interface {
	Authorize(ctx context.Context, raw string) (*models.Claims, error)
}

// Authenticate пропускает запрос дальше только с действующим access-токеном.
// Проверенные claims кладутся в контекст (см. ClaimsFrom), субъект
// попадает в запись лога Logging и в логгер запроса. Без токена или
// с отвергнутым токеном запрос получает 401.
func Authenticate(a Authorizer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := TokenFrom(r.Context())
			if !ok {
				apierrors.WriteError(w, r, service.ErrUnauthorized)
				return
			}

			claims, err := a.Authorize(r.Context(), raw)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			if id, ok := r.Context().Value(ctxIdentity).(*identity); ok {
				id.userID = claims.Subject.String()
				id.username = claims.Username
			}

			ctx := context.WithValue(r.Context(), ctxClaims, claims)
			ctx = log.With(ctx, slog.String("user_id", claims.Subject.String()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFrom возвращает claims, положенные Authenticate.
func ClaimsFrom(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(ctxClaims).(*models.Claims)
	return claims, ok && claims != nil
}
