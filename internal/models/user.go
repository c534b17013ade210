package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись пользователя вместе с хэшем пароля.
// PasswordHash хранит закодированный credential (алгоритм, параметры,
// соль и производный ключ); открытый пароль нигде не сохраняется.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser — публичное представление пользователя (без credential).
type PublicUser struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Public возвращает публичное представление пользователя.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// ProfileUpdate — частичное обновление профиля; nil-поля не меняются.
type ProfileUpdate struct {
	Username *string
	Email    *string
}
