// token выпускает и проверяет подписанные токены доступа (HS256 JWT).
//
// Issuer не хранит изменяемого состояния и не обращается к реестру отзыва:
// проверка отзыва — ответственность координатора.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pribylovaa/books-auth/internal/config"
	"github.com/pribylovaa/books-auth/internal/models"
	"github.com/pribylovaa/books-auth/internal/pkg/clock"
)

var (
	// ErrSignatureInvalid — подпись не совпадает или алгоритм не HS256.
	ErrSignatureInvalid = errors.New("token signature is invalid")
	// ErrExpired — срок действия токена истёк (с учётом leeway).
	ErrExpired = errors.New("token is expired")
	// ErrMalformedToken — токен не разбирается или в нём нет обязательных полей.
	ErrMalformedToken = errors.New("token is malformed")
)

// AccessClaims — дополнительные поля access-токена.
type AccessClaims struct {
	Username string
}

type jwtClaims struct {
	Kind     models.TokenKind `json:"kind"`
	Username string           `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Issuer выпускает и проверяет токены.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   []string
	leeway     time.Duration
	clock      clock.Clock
	parser     *jwt.Parser
}

// New создаёт Issuer. Ошибка — при пустом секрете или некорректных TTL.
func New(cfg config.AuthConfig, clk clock.Clock) (*Issuer, error) {
	const op = "token.New"

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%s: empty signing secret", op)
	}

	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= cfg.AccessTokenTTL {
		return nil, fmt.Errorf("%s: require 0 < access ttl < refresh ttl", op)
	}

	if clk == nil {
		clk = clock.System{}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(clk.Now),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if len(cfg.Audience) > 0 {
		opts = append(opts, jwt.WithAudience(cfg.Audience...))
	}

	return &Issuer{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		leeway:     cfg.Leeway,
		clock:      clk,
		parser:     jwt.NewParser(opts...),
	}, nil
}

// AccessTTL возвращает время жизни access-токена.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL возвращает время жизни refresh-токена.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// AcceptedUntil возвращает последний момент, когда Verify ещё примет токен
// с такими claims: exp плюс leeway. Запись об отзыве нужно хранить до него.
func (i *Issuer) AcceptedUntil(claims *models.Claims) time.Time {
	return claims.ExpiresAt.Add(i.leeway)
}

// IssueAccess выпускает access-токен для subject.
func (i *Issuer) IssueAccess(subject uuid.UUID, claims AccessClaims) (*models.Token, error) {
	const op = "token.IssueAccess"

	t, err := i.issue(subject, models.KindAccess, claims.Username, i.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

// IssueRefresh выпускает refresh-токен для subject.
func (i *Issuer) IssueRefresh(subject uuid.UUID) (*models.Token, error) {
	const op = "token.IssueRefresh"

	t, err := i.issue(subject, models.KindRefresh, "", i.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

func (i *Issuer) issue(subject uuid.UUID, kind models.TokenKind, username string, ttl time.Duration) (*models.Token, error) {
	if subject == uuid.Nil {
		return nil, ErrMalformedToken
	}

	// В JWT время хранится с секундной точностью.
	now := i.clock.Now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims := jwtClaims{
		Kind:     kind,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject.String(),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings(i.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, err
	}

	return &models.Token{
		Raw:       raw,
		ID:        jti,
		Subject:   subject,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: exp,
	}, nil
}

// Verify проверяет подпись, срок действия и обязательные поля токена.
// Реестр отзыва не проверяется.
func (i *Issuer) Verify(raw string) (*models.Claims, error) {
	const op = "token.Verify"

	var claims jwtClaims
	_, err := i.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapParseError(err))
	}

	if claims.ID == "" || !claims.Kind.Valid() || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}

	sub, err := uuid.Parse(claims.Subject)
	if err != nil || sub == uuid.Nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}

	return &models.Claims{
		ID:        claims.ID,
		Subject:   sub,
		Kind:      claims.Kind,
		Username:  claims.Username,
		IssuedAt:  claims.IssuedAt.UTC(),
		ExpiresAt: claims.ExpiresAt.UTC(),
	}, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformedToken
	}
}
