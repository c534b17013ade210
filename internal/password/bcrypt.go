package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcryptAlg — bcrypt ($2a$/$2b$/$2y$). Соль генерирует сама библиотека.
type bcryptAlg struct {
	cost int
}

func (b bcryptAlg) hash(password, _ []byte) (string, error) {
	out, err := bcrypt.GenerateFromPassword(password, b.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}

		return "", err
	}

	return string(out), nil
}

func (b bcryptAlg) verify(password []byte, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), password)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword),
		errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, ErrCorruptCredential
	}
}

func (b bcryptAlg) weaker(encoded string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return false, ErrCorruptCredential
	}

	return cost < b.cost, nil
}
