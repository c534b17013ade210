package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Revoke добавляет jti в реестр отзыва. Повторный вызов ничего не меняет.
func (s *Storage) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	const op = "storage.postgres.Revoke"

	query := `
		INSERT INTO revoked_tokens(jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`

	if _, err := s.db.Exec(ctx, query, jti, expiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// IsRevoked сообщает, есть ли jti в реестре.
func (s *Storage) IsRevoked(ctx context.Context, jti string) (bool, error) {
	const op = "storage.postgres.IsRevoked"

	var one int
	err := s.db.QueryRow(ctx, `SELECT 1 FROM revoked_tokens WHERE jti = $1`, jti).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

// Purge удаляет записи отзыва уже истёкших токенов.
func (s *Storage) Purge(ctx context.Context, now time.Time) (int, error) {
	const op = "storage.postgres.Purge"

	tag, err := s.db.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return int(tag.RowsAffected()), nil
}

// Len возвращает число записей реестра.
func (s *Storage) Len(ctx context.Context) (int, error) {
	const op = "storage.postgres.Len"

	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM revoked_tokens`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}
