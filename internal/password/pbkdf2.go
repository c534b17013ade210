package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2SHA256 — PBKDF2-HMAC-SHA256 в формате passlib:
//
//	$pbkdf2-sha256$<rounds>$<ab64 salt>$<ab64 key>
//
// ab64 — base64 без паддинга, где '+' заменён на '.'.
type pbkdf2SHA256 struct {
	iterations int
}

func (p pbkdf2SHA256) hash(password, salt []byte) (string, error) {
	key := pbkdf2.Key(password, salt, p.iterations, keyLength, sha256.New)

	return fmt.Sprintf("$%s$%d$%s$%s", AlgPBKDF2SHA256, p.iterations, ab64Encode(salt), ab64Encode(key)), nil
}

func (p pbkdf2SHA256) verify(password []byte, encoded string) (bool, error) {
	rounds, salt, key, err := parsePBKDF2(encoded)
	if err != nil {
		return false, err
	}

	computed := pbkdf2.Key(password, salt, rounds, len(key), sha256.New)

	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

func (p pbkdf2SHA256) weaker(encoded string) (bool, error) {
	rounds, _, _, err := parsePBKDF2(encoded)
	if err != nil {
		return false, err
	}

	return rounds < p.iterations, nil
}

func parsePBKDF2(encoded string) (int, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != AlgPBKDF2SHA256 {
		return 0, nil, nil, ErrCorruptCredential
	}

	rounds, err := strconv.Atoi(parts[2])
	if err != nil || rounds < 1 {
		return 0, nil, nil, ErrCorruptCredential
	}

	salt, err := ab64Decode(parts[3])
	if err != nil || len(salt) == 0 {
		return 0, nil, nil, ErrCorruptCredential
	}

	key, err := ab64Decode(parts[4])
	if err != nil || len(key) == 0 {
		return 0, nil, nil, ErrCorruptCredential
	}

	return rounds, salt, key, nil
}

func ab64Encode(b []byte) string {
	return strings.ReplaceAll(base64.RawStdEncoding.EncodeToString(b), "+", ".")
}

func ab64Decode(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.ReplaceAll(s, ".", "+"))
}
