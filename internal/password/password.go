// password реализует одностороннее хэширование паролей медленными KDF
// и проверку пароля против сохранённого credential.
//
// Credential — одна строка в модульном crypt-формате, содержащая идентификатор
// алгоритма, параметры стоимости, соль и производный ключ. Новые credential
// создаются алгоритмом из конфигурации, проверяются credential любого
// поддерживаемого алгоритма (pbkdf2-sha256, bcrypt, argon2id).
//
// Hasher не хранит изменяемого состояния: параллельные Hash/Verify
// выполняются независимо, без общих блокировок.
package password

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pribylovaa/books-auth/internal/config"
	"golang.org/x/crypto/bcrypt"
)

// Идентификаторы алгоритмов.
const (
	AlgPBKDF2SHA256 = "pbkdf2-sha256"
	AlgBcrypt       = "bcrypt"
	AlgArgon2id     = "argon2id"
)

const (
	saltLength = 16
	keyLength  = 32

	minPBKDF2Iterations = 1000
	minArgon2MemoryKB   = 8 * 1024
)

var (
	// ErrEmptyPassword — пустой пароль (InvalidInput).
	ErrEmptyPassword = errors.New("password is empty")
	// ErrPasswordTooLong — пароль длиннее, чем допускает алгоритм (InvalidInput).
	ErrPasswordTooLong = errors.New("password is too long")
	// ErrCorruptCredential — сохранённый credential не удаётся разобрать.
	ErrCorruptCredential = errors.New("corrupt credential")
)

// algorithm — одна реализация KDF.
type algorithm interface {
	hash(password, salt []byte) (string, error)
	verify(password []byte, encoded string) (bool, error)
	// weaker сообщает, что параметры encoded слабее текущих.
	weaker(encoded string) (bool, error)
}

// Hasher создаёт и проверяет credential.
type Hasher struct {
	current string
	algs    map[string]algorithm
}

// New создаёт Hasher по конфигурации. Ошибка — при неизвестном алгоритме
// или параметрах стоимости ниже допустимого минимума.
func New(cfg config.PasswordConfig) (*Hasher, error) {
	const op = "password.New"

	if cfg.PBKDF2Iterations < minPBKDF2Iterations {
		return nil, fmt.Errorf("%s: pbkdf2 iterations must be >= %d", op, minPBKDF2Iterations)
	}

	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%s: bcrypt cost must be in [%d, %d]", op, bcrypt.MinCost, bcrypt.MaxCost)
	}

	if cfg.Argon2MemoryKB < minArgon2MemoryKB || cfg.Argon2Time < 1 || cfg.Argon2Threads < 1 {
		return nil, fmt.Errorf("%s: invalid argon2 parameters", op)
	}

	h := &Hasher{
		current: cfg.Algorithm,
		algs: map[string]algorithm{
			AlgPBKDF2SHA256: pbkdf2SHA256{iterations: cfg.PBKDF2Iterations},
			AlgBcrypt:       bcryptAlg{cost: cfg.BcryptCost},
			AlgArgon2id: argon2id{
				memory:  cfg.Argon2MemoryKB,
				time:    cfg.Argon2Time,
				threads: cfg.Argon2Threads,
			},
		},
	}

	if _, ok := h.algs[cfg.Algorithm]; !ok {
		return nil, fmt.Errorf("%s: unknown algorithm %q", op, cfg.Algorithm)
	}

	return h, nil
}

// Algorithm возвращает алгоритм, которым создаются новые credential.
func (h *Hasher) Algorithm() string { return h.current }

// Hash создаёт новый credential со свежей случайной солью.
// Два вызова с одним паролем дают разные строки.
func (h *Hasher) Hash(password string) (string, error) {
	const op = "password.Hash"

	if password == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	encoded, err := h.algs[h.current].hash([]byte(password), salt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return encoded, nil
}

// Verify сравнивает пароль с credential.
// Несовпадение — (false, nil); повреждённый credential — ErrCorruptCredential.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	const op = "password.Verify"

	alg, err := h.lookup(encoded)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := alg.verify([]byte(password), encoded)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return ok, nil
}

// NeedsRehash сообщает, что credential создан другим алгоритмом или
// с меньшей стоимостью, чем текущая конфигурация. Повреждённый credential
// всегда требует перехэширования.
func (h *Hasher) NeedsRehash(encoded string) bool {
	id, ok := algorithmID(encoded)
	if !ok || id != h.current {
		return true
	}

	weaker, err := h.algs[id].weaker(encoded)
	if err != nil {
		return true
	}

	return weaker
}

func (h *Hasher) lookup(encoded string) (algorithm, error) {
	id, ok := algorithmID(encoded)
	if !ok {
		return nil, ErrCorruptCredential
	}

	return h.algs[id], nil
}

// algorithmID определяет алгоритм по префиксу credential.
func algorithmID(encoded string) (string, bool) {
	switch {
	case strings.HasPrefix(encoded, "$"+AlgPBKDF2SHA256+"$"):
		return AlgPBKDF2SHA256, true
	case strings.HasPrefix(encoded, "$"+AlgArgon2id+"$"):
		return AlgArgon2id, true
	case strings.HasPrefix(encoded, "$2a$"),
		strings.HasPrefix(encoded, "$2b$"),
		strings.HasPrefix(encoded, "$2y$"):
		return AlgBcrypt, true
	default:
		return "", false
	}
}
