package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pribylovaa/books-auth/internal/models"
	"github.com/pribylovaa/books-auth/internal/password"
	"github.com/pribylovaa/books-auth/internal/pkg/log"
	"github.com/pribylovaa/books-auth/internal/pkg/redact"
	"github.com/pribylovaa/books-auth/internal/storage"
	"github.com/pribylovaa/books-auth/internal/token"
)

// Register регистрирует нового пользователя.
func (s *Service) Register(ctx context.Context, username, email, pw string) (_ *models.PublicUser, err error) {
	const op = "service.auth.Register"
	defer func() { s.metrics.AuthOp("register", Kind(err)) }()

	lg := log.From(ctx)

	username, err = validateUsername(username)
	if err != nil {
		return nil, s.reject(ctx, op, err)
	}

	email, err = validateEmail(email)
	if err != nil {
		return nil, s.reject(ctx, op, err)
	}

	if err := validatePassword(pw, s.cfg.MinPasswordLength); err != nil {
		return nil, s.reject(ctx, op, err)
	}

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) || errors.Is(err, password.ErrEmptyPassword) {
			return nil, s.reject(ctx, op, ErrInvalidInput)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, s.reject(ctx, op, ErrDuplicateUser,
				slog.String("username", username),
				slog.String("email", redact.Email(email)),
			)
		}

		return nil, s.storageFailure(ctx, op, err)
	}

	lg.Info("user_registered",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.String("username", username),
	)

	return user.Public(), nil
}

// Login выполняет вход по username или email (если login содержит '@') и паролю.
func (s *Service) Login(ctx context.Context, login, pw string) (_ *models.TokenPair, err error) {
	const op = "service.auth.Login"
	defer func() { s.metrics.AuthOp("login", Kind(err)) }()

	login = strings.TrimSpace(login)
	if login == "" || pw == "" || len(pw) > maxPasswordBytes {
		return nil, s.reject(ctx, op, ErrInvalidInput)
	}

	var user *models.User
	if strings.Contains(login, "@") {
		user, err = s.users.UserByEmail(ctx, strings.ToLower(login))
	} else {
		user, err = s.users.UserByUsername(ctx, login)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Выравниваем время ответа с веткой существующего пользователя.
			s.burnHash(pw)
			return nil, s.reject(ctx, op, ErrUserNotFound, slog.String("login", redact.Login(login)))
		}

		return nil, s.storageFailure(ctx, op, err)
	}

	ok, err := s.hasher.Verify(pw, user.PasswordHash)
	if err != nil {
		return nil, s.storageFailure(ctx, op, err)
	}
	if !ok {
		return nil, s.reject(ctx, op, ErrIncorrectPassword, slog.String("user_id", user.ID.String()))
	}

	if s.rehashOnLogin && s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, pw)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_logged_in",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
	)

	return pair, nil
}

// Logout отзывает access- или refresh-токены (raw и more). Сначала
// проверяются все токены: если хоть один отвергнут, не отзывается ни один.
// Уже отозванный или истёкший токен — успех; токен с неверной подписью
// или неразборчивый — ошибка.
func (s *Service) Logout(ctx context.Context, raw string, more ...string) (err error) {
	const op = "service.auth.Logout"
	defer func() { s.metrics.AuthOp("logout", Kind(err)) }()

	lg := log.From(ctx)

	raws := append([]string{raw}, more...)
	live := make([]*models.Claims, 0, len(raws))
	for _, r := range raws {
		claims, err := s.tokens.Verify(r)
		if err != nil {
			if errors.Is(err, token.ErrExpired) {
				lg.Debug("logout_token_expired", slog.String("op", op))
				continue
			}

			return s.reject(ctx, op, mapTokenError(err))
		}
		live = append(live, claims)
	}

	for _, claims := range live {
		if err := s.registry.Revoke(ctx, claims.ID, s.tokens.AcceptedUntil(claims)); err != nil {
			return s.storageFailure(ctx, op, err)
		}
		s.metrics.Revoked()

		lg.Info("token_revoked",
			slog.String("op", op),
			slog.String("user_id", claims.Subject.String()),
			slog.String("kind", string(claims.Kind)),
			slog.String("jti", claims.ID),
		)
	}

	return nil
}

// Refresh выпускает новый access-токен по действующему refresh-токену.
// При auth.rotate_refresh предъявленный refresh-токен отзывается и выдаётся новый.
func (s *Service) Refresh(ctx context.Context, raw string) (_ *models.TokenPair, err error) {
	const op = "service.auth.Refresh"
	defer func() { s.metrics.AuthOp("refresh", Kind(err)) }()

	claims, err := s.verify(ctx, op, raw, models.KindRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.users.UserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, s.reject(ctx, op, ErrUnauthorized, slog.String("user_id", claims.Subject.String()))
		}

		return nil, s.storageFailure(ctx, op, err)
	}

	access, err := s.tokens.IssueAccess(user.ID, token.AccessClaims{Username: user.Username})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pair := &models.TokenPair{
		AccessToken:      access.Raw,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     raw,
		RefreshExpiresAt: claims.ExpiresAt,
	}

	if s.cfg.RotateRefresh {
		if err := s.registry.Revoke(ctx, claims.ID, s.tokens.AcceptedUntil(claims)); err != nil {
			return nil, s.storageFailure(ctx, op, err)
		}
		s.metrics.Revoked()

		refresh, err := s.tokens.IssueRefresh(user.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		pair.RefreshToken = refresh.Raw
		pair.RefreshExpiresAt = refresh.ExpiresAt
	}

	return pair, nil
}

// Authorize проверяет access-токен для защищённых маршрутов:
// подпись, срок действия, вид токена и отсутствие в реестре отзыва.
func (s *Service) Authorize(ctx context.Context, raw string) (*models.Claims, error) {
	const op = "service.auth.Authorize"

	return s.verify(ctx, op, raw, models.KindAccess)
}

// ChangePassword заменяет credential субъекта при совпадении старого пароля.
func (s *Service) ChangePassword(ctx context.Context, subjectID uuid.UUID, oldPassword, newPassword string) (err error) {
	const op = "service.auth.ChangePassword"
	defer func() { s.metrics.AuthOp("change_password", Kind(err)) }()

	user, err := s.users.UserByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.reject(ctx, op, ErrUnauthorized, slog.String("user_id", subjectID.String()))
		}

		return s.storageFailure(ctx, op, err)
	}

	ok, err := s.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return s.storageFailure(ctx, op, err)
	}
	if !ok {
		return s.reject(ctx, op, ErrIncorrectOldPassword, slog.String("user_id", subjectID.String()))
	}

	if err := validatePassword(newPassword, s.cfg.MinPasswordLength); err != nil {
		return s.reject(ctx, op, err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			return s.reject(ctx, op, ErrInvalidInput)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	user.PasswordHash = hash
	user.UpdatedAt = s.clock.Now().UTC()

	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.reject(ctx, op, ErrUnauthorized, slog.String("user_id", subjectID.String()))
		}

		return s.storageFailure(ctx, op, err)
	}

	log.From(ctx).Info("password_changed",
		slog.String("op", op),
		slog.String("user_id", subjectID.String()),
	)

	return nil
}

// verify проверяет токен, его вид и отсутствие в реестре отзыва.
func (s *Service) verify(ctx context.Context, op, raw string, want models.TokenKind) (*models.Claims, error) {
	if raw == "" {
		return nil, s.reject(ctx, op, ErrMalformedToken)
	}

	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, s.reject(ctx, op, mapTokenError(err))
	}

	if claims.Kind != want {
		return nil, s.reject(ctx, op, ErrWrongTokenKind,
			slog.String("user_id", claims.Subject.String()),
			slog.String("token_kind", string(claims.Kind)),
		)
	}

	revoked, err := s.registry.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, s.storageFailure(ctx, op, err)
	}
	if revoked {
		return nil, s.reject(ctx, op, ErrRevoked,
			slog.String("user_id", claims.Subject.String()),
			slog.String("jti", claims.ID),
		)
	}

	return claims, nil
}

// issuePair выпускает новую пару access+refresh токенов.
func (s *Service) issuePair(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	const op = "service.auth.issuePair"

	access, err := s.tokens.IssueAccess(user.ID, token.AccessClaims{Username: user.Username})
	if err != nil {
		log.From(ctx).Error("access_token_issue_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		log.From(ctx).Error("refresh_token_issue_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:      access.Raw,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// rehash заменяет устаревший credential. Ошибка не прерывает вход.
func (s *Service) rehash(ctx context.Context, user *models.User, pw string) {
	const op = "service.auth.rehash"

	lg := log.From(ctx)

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		lg.Warn("rehash_failed", slog.String("op", op), slog.String("err", err.Error()))
		return
	}

	updated := *user
	updated.PasswordHash = hash
	updated.UpdatedAt = s.clock.Now().UTC()

	if err := s.users.UpdateUser(ctx, &updated); err != nil {
		lg.Warn("rehash_failed", slog.String("op", op), slog.String("err", err.Error()))
		return
	}

	lg.Info("credential_rehashed",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.String("algorithm", s.hasher.Algorithm()),
	)
}

// burnHash тратит на проверку пароля столько же, сколько ветка с существующим пользователем.
func (s *Service) burnHash(pw string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("books-auth-dummy-password")
	})

	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(pw, s.dummyHash)
	}
}

// reject логирует ожидаемый отказ с точным видом ошибки и возвращает её.
func (s *Service) reject(ctx context.Context, op string, err error, attrs ...any) error {
	args := append([]any{slog.String("op", op), slog.String("kind", Kind(err))}, attrs...)
	log.From(ctx).Warn("request_rejected", args...)

	return fmt.Errorf("%s: %w", op, err)
}

// storageFailure логирует сбой коллаборатора и скрывает его детали от вызывающего.
func (s *Service) storageFailure(ctx context.Context, op string, err error) error {
	log.From(ctx).Error("storage_failed",
		slog.String("op", op),
		slog.String("err", err.Error()),
	)

	return fmt.Errorf("%s: %w", op, ErrStorage)
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, token.ErrExpired):
		return ErrExpired
	default:
		return ErrMalformedToken
	}
}
