// handlers — HTTP-эндпоинты auth-сервиса поверх сервисного слоя.
// Здесь только разбор запроса, вызов сервиса и сериализация ответа;
// ошибки транслируются в HTTP через apierrors.WriteError.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/pribylovaa/books-auth/internal/models"
	"github.com/pribylovaa/books-auth/internal/service"
)

// maxBodyBytes ограничивает размер JSON-тела запроса.
const maxBodyBytes = 64 << 10

// AuthService — операции сервисного слоя, которые нужны хендлерам.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*models.PublicUser, error)
	Login(ctx context.Context, login, password string) (*models.TokenPair, error)
	Logout(ctx context.Context, raw string, more ...string) error
	Refresh(ctx context.Context, raw string) (*models.TokenPair, error)
	ChangePassword(ctx context.Context, subjectID uuid.UUID, oldPassword, newPassword string) error
	Profile(ctx context.Context, subjectID uuid.UUID, username string) (*models.PublicUser, error)
	UpdateProfile(ctx context.Context, subjectID uuid.UUID, username string, upd models.ProfileUpdate) (*models.PublicUser, error)
	DeleteProfile(ctx context.Context, subjectID uuid.UUID, username string) error
}

var _ AuthService = (*service.Service)(nil)

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	Service AuthService
}

func New(s AuthService) *Handlers {
	return &Handlers{Service: s}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля
// и хвост после объекта.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		return service.ErrInvalidInput
	}
	if dec.More() {
		return service.ErrInvalidInput
	}

	return nil
}

// decodeOptional — как decodeStrict, но пустое тело допустимо.
func decodeOptional(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return service.ErrInvalidInput
	}

	return nil
}
