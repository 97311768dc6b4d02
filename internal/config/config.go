package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Social       SocialConfig
	Realtime     RealtimeConfig
	RateLimit    RateLimitConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines session token and credential parameters.
type AuthConfig struct {
	JWTSecret               string
	JWTAlgorithm            string
	AccessTokenTTLSeconds   int
	RefreshTokenTTLSeconds  int
	ActivationTTLMinutes    int
	PasswordResetTTLMinutes int
	BcryptCost              int
	SecureCookies           bool
	TOTPIssuer              string
}

// SocialConfig holds OAuth client registrations for supported providers.
type SocialConfig struct {
	Google   OAuthClientConfig
	Facebook OAuthClientConfig
}

// OAuthClientConfig is one provider's client registration.
type OAuthClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// RealtimeConfig controls the websocket listener.
type RealtimeConfig struct {
	Port                string
	OriginPatterns      []string
	WriteTimeoutSeconds int
}

// RateLimitConfig toggles redis-backed request limiting.
type RateLimitConfig struct {
	Enabled bool
}

// NotificationConfig holds outbound notification settings.
type NotificationConfig struct {
	EmailFrom string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	appEnv := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "facezhuk"),
			Env:                   appEnv,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:               getEnv("JWT_SECRET", "dev-secret"),
			JWTAlgorithm:            getEnv("JWT_ALGORITHM", "HS256"),
			AccessTokenTTLSeconds:   getEnvAsInt("JWT_EXPIRATION_SECONDS", 900),
			RefreshTokenTTLSeconds:  getEnvAsInt("JWT_REFRESH_EXPIRATION_SECONDS", 30*24*3600),
			ActivationTTLMinutes:    getEnvAsInt("ACTIVATION_TOKEN_DURATION", 60*24),
			PasswordResetTTLMinutes: getEnvAsInt("RESET_PASSWORD_TOKEN_DURATION", 30),
			BcryptCost:              getEnvAsInt("AUTH_BCRYPT_COST", 12),
			SecureCookies:           getEnvAsBool("AUTH_SECURE_COOKIES", appEnv == "production"),
			TOTPIssuer:              getEnv("AUTH_TOTP_ISSUER", "Facezhuk"),
		},
		Social: SocialConfig{
			Google: OAuthClientConfig{
				ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
				ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
				RedirectURI:  os.Getenv("GOOGLE_REDIRECT_URI"),
			},
			Facebook: OAuthClientConfig{
				ClientID:     os.Getenv("FACEBOOK_CLIENT_ID"),
				ClientSecret: os.Getenv("FACEBOOK_CLIENT_SECRET"),
				RedirectURI:  os.Getenv("FACEBOOK_REDIRECT_URI"),
			},
		},
		Realtime: RealtimeConfig{
			Port:                getEnv("REALTIME_PORT", "8001"),
			OriginPatterns:      getEnvAsList("REALTIME_ORIGIN_PATTERNS", "localhost:3000"),
			WriteTimeoutSeconds: getEnvAsInt("REALTIME_WRITE_TIMEOUT_SECONDS", 5),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvAsBool("RATE_LIMIT_ENABLED", true),
		},
		Notification: NotificationConfig{
			EmailFrom: getEnv("MAIL_FROM", "noreply@facezhuk.local"),
		},
	}

	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the token settings can produce verifiable sessions.
func (a AuthConfig) Validate() error {
	if strings.TrimSpace(a.JWTSecret) == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if _, ok := jwt.GetSigningMethod(a.JWTAlgorithm).(*jwt.SigningMethodHMAC); !ok {
		return fmt.Errorf("JWT_ALGORITHM %q is not a supported HMAC algorithm", a.JWTAlgorithm)
	}
	if a.AccessTokenTTLSeconds <= 0 || a.RefreshTokenTTLSeconds <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if a.RefreshTokenTTLSeconds <= a.AccessTokenTTLSeconds {
		return errors.New("JWT_REFRESH_EXPIRATION_SECONDS must exceed JWT_EXPIRATION_SECONDS")
	}
	if a.ActivationTTLMinutes <= 0 || a.PasswordResetTTLMinutes <= 0 {
		return errors.New("link token durations must be positive")
	}
	return nil
}

// AccessTTL returns the access token lifetime.
func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLSeconds) * time.Second
}

// RefreshTTL returns the refresh token lifetime.
func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLSeconds) * time.Second
}

// ActivationTTL returns the activation link lifetime.
func (a AuthConfig) ActivationTTL() time.Duration {
	return time.Duration(a.ActivationTTLMinutes) * time.Minute
}

// PasswordResetTTL returns the reset link lifetime.
func (a AuthConfig) PasswordResetTTL() time.Duration {
	return time.Duration(a.PasswordResetTTLMinutes) * time.Minute
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Addr returns the websocket bind address, sharing the API host.
func (r RealtimeConfig) Addr(host string) string {
	return fmt.Sprintf("%s:%s", host, r.Port)
}

// WriteTimeout returns the per-message write deadline.
func (r RealtimeConfig) WriteTimeout() time.Duration {
	if r.WriteTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.WriteTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
