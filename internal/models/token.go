package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenKind — тип токена.
type TokenKind string

const (
	// KindAccess — короткоживущий токен доступа к API.
	KindAccess TokenKind = "access"
	// KindRefresh — долгоживущий токен для выпуска новых access-токенов.
	KindRefresh TokenKind = "refresh"
)

// Valid сообщает, известен ли тип токена.
func (k TokenKind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Token — выпущенный подписанный токен.
//
// Raw — сериализованная форма (JWT), которую получает клиент;
// остальные поля дублируют содержимое payload для удобства вызывающего кода.
type Token struct {
	Raw       string
	ID        string
	Subject   uuid.UUID
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims — проверенное содержимое токена.
type Claims struct {
	ID        string
	Subject   uuid.UUID
	Kind      TokenKind
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
