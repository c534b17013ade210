// service содержит бизнес-логику auth-сервиса: регистрацию и вход
// пользователей, выпуск/обновление/отзыв токенов, смену пароля,
// проверку токенов для защищённых маршрутов и операции над профилем.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования, если потокобезопасны хранилище и реестр.
//   - Реестр отзыва передаётся явно (revocation.Registry), глобального
//     состояния нет. Проверка отзыва выполняется только в Authorize и Refresh.
//   - Наружу возвращаются только ошибки из списка ниже (через %w);
//     детали ошибок хранилища пишутся в лог и не покидают сервис.
package service

import (
	"errors"
	"sync"

	"github.com/pribylovaa/books-auth/internal/config"
	"github.com/pribylovaa/books-auth/internal/metrics"
	"github.com/pribylovaa/books-auth/internal/password"
	"github.com/pribylovaa/books-auth/internal/pkg/clock"
	"github.com/pribylovaa/books-auth/internal/revocation"
	"github.com/pribylovaa/books-auth/internal/storage"
	"github.com/pribylovaa/books-auth/internal/token"
)

var (
	// ErrInvalidInput — некорректные входные данные. Транспорт: HTTP 400.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateUser — username или email уже заняты. Транспорт: HTTP 409.
	ErrDuplicateUser = errors.New("user already exists")

	// ErrUserNotFound — пользователь с таким логином не найден. Транспорт: HTTP 401.
	ErrUserNotFound = errors.New("user not found")

	// ErrIncorrectPassword — пароль не совпал при входе. Транспорт: HTTP 401.
	ErrIncorrectPassword = errors.New("incorrect password")

	// ErrIncorrectOldPassword — старый пароль не совпал при смене. Транспорт: HTTP 400.
	ErrIncorrectOldPassword = errors.New("incorrect old password")

	// ErrSignatureInvalid — подпись токена неверна. Транспорт: HTTP 401.
	ErrSignatureInvalid = errors.New("token signature invalid")

	// ErrExpired — срок действия токена истёк. Транспорт: HTTP 401.
	ErrExpired = errors.New("token expired")

	// ErrRevoked — токен отозван. Транспорт: HTTP 401.
	ErrRevoked = errors.New("token revoked")

	// ErrMalformedToken — токен не разбирается. Транспорт: HTTP 401.
	ErrMalformedToken = errors.New("malformed token")

	// ErrWrongTokenKind — refresh вместо access или наоборот. Транспорт: HTTP 401.
	ErrWrongTokenKind = errors.New("wrong token kind")

	// ErrUnauthorized — субъект токена больше не существует. Транспорт: HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden — субъект токена не владелец ресурса. Транспорт: HTTP 403.
	ErrForbidden = errors.New("forbidden")

	// ErrProfileNotFound — запрошенный профиль не существует. Транспорт: HTTP 404.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrStorage — сбой хранилища или реестра отзыва. Транспорт: HTTP 500.
	ErrStorage = errors.New("storage error")
)

// kinds — имена видов ошибок для логов и метрик.
var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidInput, "invalid_input"},
	{ErrDuplicateUser, "duplicate_user"},
	{ErrUserNotFound, "user_not_found"},
	{ErrIncorrectPassword, "incorrect_password"},
	{ErrIncorrectOldPassword, "incorrect_old_password"},
	{ErrSignatureInvalid, "signature_invalid"},
	{ErrExpired, "expired"},
	{ErrRevoked, "revoked"},
	{ErrMalformedToken, "malformed_token"},
	{ErrWrongTokenKind, "wrong_token_kind"},
	{ErrUnauthorized, "unauthorized"},
	{ErrForbidden, "forbidden"},
	{ErrProfileNotFound, "profile_not_found"},
	{ErrStorage, "storage_error"},
}

// Kind возвращает имя вида ошибки ("ok" для nil, "internal" для неизвестной).
func Kind(err error) string {
	if err == nil {
		return "ok"
	}

	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}

	return "internal"
}

// Service описывает бизнес-логику auth-сервиса.
type Service struct {
	users    storage.UserStorage
	hasher   *password.Hasher
	tokens   *token.Issuer
	registry revocation.Registry
	cfg      config.AuthConfig

	clock         clock.Clock
	metrics       *metrics.Metrics
	rehashOnLogin bool

	dummyOnce sync.Once
	dummyHash string
}

// Option настраивает необязательные зависимости Service.
type Option func(*Service)

// WithClock задаёт источник времени (по умолчанию системные часы).
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMetrics подключает prometheus-метрики.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRehashOnLogin включает перехэширование устаревших credential при входе.
func WithRehashOnLogin(enabled bool) Option {
	return func(s *Service) { s.rehashOnLogin = enabled }
}

// New создаёт новый экземпляр Service.
func New(
	users storage.UserStorage,
	hasher *password.Hasher,
	tokens *token.Issuer,
	registry revocation.Registry,
	cfg config.AuthConfig,
	opts ...Option,
) *Service {
	s := &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		registry: registry,
		cfg:      cfg,
		clock:    clock.System{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}
