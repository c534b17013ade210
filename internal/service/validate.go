package service

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxPasswordBytes — верхняя граница длины пароля (защита от дорогого хэширования).
const maxPasswordBytes = 1024

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// validateUsername проверяет формат username и обрезает пробелы снаружи.
func validateUsername(raw string) (string, error) {
	const op = "service.validate.validateUsername"

	username := strings.TrimSpace(raw)
	if !usernameRe.MatchString(username) {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	return username, nil
}

// validateEmail проверяет базовый формат email, обрезает пробелы и приводит к нижнему регистру.
func validateEmail(raw string) (string, error) {
	const op = "service.validate.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет длину пароля: не короче minLen символов и не длиннее maxPasswordBytes байт.
func validatePassword(pw string, minLen int) error {
	const op = "service.validate.validatePassword"

	if pw == "" || utf8.RuneCountInString(pw) < minLen || len(pw) > maxPasswordBytes {
		return fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	return nil
}
