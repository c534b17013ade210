// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Поддерживаемые хранилища пользователей.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Поддерживаемые реализации реестра отзыва.
const (
	RevocationMemory   = "memory"
	RevocationRedis    = "redis"
	RevocationPostgres = "postgres"
)

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local"`
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Password   PasswordConfig   `yaml:"password"`
	DB         DBConfig         `yaml:"db"`
	Redis      RedisConfig      `yaml:"redis"`
	Revocation RevocationConfig `yaml:"revocation"`
	Timeouts   TimeoutConfig    `yaml:"timeouts"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// TracingConfig — экспорт трейсов по OTLP/HTTP.
// Пустой Endpoint выключает трассировку.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint" env:"OTEL_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"books-auth"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// HTTPConfig — сетевые настройки HTTP-сервера.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов.
// JWTSecret никогда не логируется; его ротация выполняется вне сервиса.
type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenTTL    time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL   time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"720h"`
	Issuer            string        `yaml:"issuer" env:"ISSUER" env-default:"books-auth"`
	Audience          []string      `yaml:"audience" env:"AUDIENCE" env-default:"books-api"`
	Leeway            time.Duration `yaml:"leeway" env:"TOKEN_LEEWAY" env-default:"5s"`
	RotateRefresh     bool          `yaml:"rotate_refresh" env:"ROTATE_REFRESH" env-default:"false"`
	MinPasswordLength int           `yaml:"min_password_length" env:"MIN_PASSWORD_LENGTH" env-default:"8"`
}

// PasswordConfig — параметры хэширования паролей.
// Algorithm задаёт алгоритм для новых credential; проверяются все поддерживаемые.
type PasswordConfig struct {
	Algorithm        string `yaml:"algorithm" env:"PASSWORD_ALGORITHM" env-default:"pbkdf2-sha256"`
	PBKDF2Iterations int    `yaml:"pbkdf2_iterations" env:"PBKDF2_ITERATIONS" env-default:"29000"`
	BcryptCost       int    `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
	Argon2MemoryKB   uint32 `yaml:"argon2_memory_kb" env:"ARGON2_MEMORY_KB" env-default:"65536"`
	Argon2Time       uint32 `yaml:"argon2_time" env:"ARGON2_TIME" env-default:"1"`
	Argon2Threads    uint8  `yaml:"argon2_threads" env:"ARGON2_THREADS" env-default:"2"`
	RehashOnLogin    bool   `yaml:"rehash_on_login" env:"REHASH_ON_LOGIN" env-default:"false"`
}

// DBConfig — настройки подключения к хранилищу пользователей.
type DBConfig struct {
	Driver      string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
}

// RedisConfig — подключение к Redis (нужно только для revocation.backend=redis).
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
}

// RevocationConfig — реестр отозванных токенов.
type RevocationConfig struct {
	Backend       string        `yaml:"backend" env:"REVOCATION_BACKEND" env-default:"memory"`
	RedisPrefix   string        `yaml:"redis_prefix" env:"REVOCATION_REDIS_PREFIX" env-default:"auth:revoked:"`
	JanitorPeriod time.Duration `yaml:"janitor_period" env:"REVOCATION_JANITOR_PERIOD" env-default:"10m"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// ВАЖНО: после чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file does not exist: %q: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	var (
		c   *Config
		err error
	)

	switch envPath := os.Getenv("CONFIG_PATH"); {
	case path != "":
		c, err = tryRead(path)
	case envPath != "":
		c, err = tryRead(envPath)
	default:
		if _, statErr := os.Stat("local.yaml"); statErr == nil {
			c, err = tryRead("local.yaml")
			break
		}

		// Только ENV.
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
		}
		c = &cfg
	}
	if err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// validate проверяет согласованность значений, которые cleanenv не контролирует.
func (c *Config) validate() error {
	switch c.DB.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("invalid config: unknown db.driver %q", c.DB.Driver)
	}

	switch c.Revocation.Backend {
	case RevocationMemory:
	case RevocationRedis:
		if c.Redis.RedisURL == "" {
			return fmt.Errorf("invalid config: redis.redis_url is required for revocation backend %q", RevocationRedis)
		}
	case RevocationPostgres:
		if c.DB.Driver != DriverPostgres {
			return fmt.Errorf("invalid config: revocation backend %q requires db.driver %q", RevocationPostgres, DriverPostgres)
		}
	default:
		return fmt.Errorf("invalid config: unknown revocation.backend %q", c.Revocation.Backend)
	}

	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		return fmt.Errorf("invalid config: require 0 < access_token_ttl < refresh_token_ttl")
	}

	return nil
}
