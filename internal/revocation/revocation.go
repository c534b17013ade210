// revocation описывает реестр отозванных токенов и его in-memory реализацию.
//
// Запись реестра — идентификатор токена (jti) и момент истечения самого
// токена. После истечения запись больше не нужна: истёкший токен и так
// отклоняется проверкой подписи/срока, поэтому реестр можно очищать.
package revocation

import (
	"context"
	"sync"
	"time"
)

// Registry — контракт реестра отзыва.
type Registry interface {
	// Revoke помечает jti отозванным до expiresAt. Повторный вызов — no-op.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	// IsRevoked сообщает, отозван ли jti. Видит все завершённые Revoke.
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// Purge удаляет записи с истечением <= now и возвращает их число.
	Purge(ctx context.Context, now time.Time) (int, error)
	// Len возвращает текущее число записей.
	Len(ctx context.Context) (int, error)
}

// Memory — реестр в памяти процесса. Безопасен для конкурентного использования.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

var _ Registry = (*Memory)(nil)

// NewMemory создаёт пустой реестр.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]time.Time)}
}

func (m *Memory) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.entries[jti]; ok && !expiresAt.After(cur) {
		return nil
	}
	m.entries[jti] = expiresAt.UTC()

	return nil
}

func (m *Memory) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.entries[jti]
	return ok, nil
}

func (m *Memory) Purge(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for jti, exp := range m.entries {
		if !exp.After(now) {
			delete(m.entries, jti)
			n++
		}
	}

	return n, nil
}

func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries), nil
}
