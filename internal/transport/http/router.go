package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/pribylovaa/books-auth/internal/metrics"
	"github.com/pribylovaa/books-auth/internal/transport/http/handlers"
	"github.com/pribylovaa/books-auth/internal/transport/http/middleware"
)

// Service — сервисный слой целиком: хендлеры и проверка access-токенов.
type Service interface {
	handlers.AuthService
	middleware.Authorizer
}

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Tracer   trace.TracerProvider // nil — глобальный провайдер otel.
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // до логирования: id попадает в логгер
		middleware.Tracing(opts.Tracer),
		middleware.Logging(opts.Logger, opts.Metrics),
		middleware.AuthBearer(),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	h := handlers.New(svc)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, svc)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, svc)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, auth middleware.Authorizer) {
	// auth
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
	r.Post("/auth/refresh", h.Refresh)

	// profile
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(auth))

		r.Get("/profile/{username}", h.GetProfile)
		r.Put("/profile/{username}", h.UpdateProfile)
		r.Delete("/profile/{username}", h.DeleteProfile)
		r.Put("/profile/{username}/password", h.ChangePassword)
	})
}
