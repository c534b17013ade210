package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pribylovaa/books-auth/internal/models"
	"github.com/pribylovaa/books-auth/internal/pkg/log"
	"github.com/pribylovaa/books-auth/internal/storage"
)

// CheckOwner сравнивает субъекта проверенного токена с владельцем ресурса.
func CheckOwner(subjectID, ownerID uuid.UUID) error {
	if subjectID == uuid.Nil || subjectID != ownerID {
		return ErrForbidden
	}

	return nil
}

// Profile возвращает профиль username, если он принадлежит субъекту.
func (s *Service) Profile(ctx context.Context, subjectID uuid.UUID, username string) (*models.PublicUser, error) {
	const op = "service.profile.Profile"

	user, err := s.ownedProfile(ctx, op, subjectID, username)
	if err != nil {
		return nil, err
	}

	return user.Public(), nil
}

// UpdateProfile меняет username и/или email профиля субъекта.
func (s *Service) UpdateProfile(ctx context.Context, subjectID uuid.UUID, username string, upd models.ProfileUpdate) (_ *models.PublicUser, err error) {
	const op = "service.profile.UpdateProfile"
	defer func() { s.metrics.AuthOp("update_profile", Kind(err)) }()

	user, err := s.ownedProfile(ctx, op, subjectID, username)
	if err != nil {
		return nil, err
	}

	if upd.Username == nil && upd.Email == nil {
		return nil, s.reject(ctx, op, ErrInvalidInput)
	}

	if upd.Username != nil {
		if user.Username, err = validateUsername(*upd.Username); err != nil {
			return nil, s.reject(ctx, op, err)
		}
	}

	if upd.Email != nil {
		if user.Email, err = validateEmail(*upd.Email); err != nil {
			return nil, s.reject(ctx, op, err)
		}
	}

	user.UpdatedAt = s.clock.Now().UTC()

	if err := s.users.UpdateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			return nil, s.reject(ctx, op, ErrDuplicateUser)
		case errors.Is(err, storage.ErrNotFound):
			return nil, s.reject(ctx, op, ErrProfileNotFound)
		}

		return nil, s.storageFailure(ctx, op, err)
	}

	log.From(ctx).Info("profile_updated",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
	)

	return user.Public(), nil
}

// DeleteProfile удаляет профиль субъекта.
func (s *Service) DeleteProfile(ctx context.Context, subjectID uuid.UUID, username string) (err error) {
	const op = "service.profile.DeleteProfile"
	defer func() { s.metrics.AuthOp("delete_profile", Kind(err)) }()

	user, err := s.ownedProfile(ctx, op, subjectID, username)
	if err != nil {
		return err
	}

	if err := s.users.DeleteUser(ctx, user.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.reject(ctx, op, ErrProfileNotFound)
		}

		return s.storageFailure(ctx, op, err)
	}

	log.From(ctx).Info("profile_deleted",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
	)

	return nil
}

// ownedProfile загружает профиль по username и проверяет владельца.
func (s *Service) ownedProfile(ctx context.Context, op string, subjectID uuid.UUID, username string) (*models.User, error) {
	user, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, s.reject(ctx, op, ErrProfileNotFound, slog.String("username", username))
		}

		return nil, s.storageFailure(ctx, op, err)
	}

	if err := CheckOwner(subjectID, user.ID); err != nil {
		return nil, s.reject(ctx, op, err,
			slog.String("user_id", subjectID.String()),
			slog.String("owner_id", user.ID.String()),
		)
	}

	return user, nil
}
