package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Retry        RetryConfig
	Webhooks     WebhooksConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PRINTDUNGEON_APP_ENV" required:"true"`
	Port         string `envconfig:"PRINTDUNGEON_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PRINTDUNGEON_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PRINTDUNGEON_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PRINTDUNGEON_DB_DSN"`
	Driver string `envconfig:"PRINTDUNGEON_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PRINTDUNGEON_DB_HOST"`
	LegacyPort     int    `envconfig:"PRINTDUNGEON_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PRINTDUNGEON_DB_USER"`
	LegacyPassword string `envconfig:"PRINTDUNGEON_DB_PASSWORD"`
	LegacyName     string `envconfig:"PRINTDUNGEON_DB_NAME"`
	LegacySSLMode  string `envconfig:"PRINTDUNGEON_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PRINTDUNGEON_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PRINTDUNGEON_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PRINTDUNGEON_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PRINTDUNGEON_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PRINTDUNGEON_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PRINTDUNGEON_REDIS_ADDR"`
	Password     string        `envconfig:"PRINTDUNGEON_REDIS_PASSWORD"`
	DB           int           `envconfig:"PRINTDUNGEON_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PRINTDUNGEON_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PRINTDUNGEON_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PRINTDUNGEON_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PRINTDUNGEON_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PRINTDUNGEON_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PRINTDUNGEON_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PRINTDUNGEON_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PRINTDUNGEON_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PRINTDUNGEON_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PRINTDUNGEON_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey            string `envconfig:"PRINTDUNGEON_STRIPE_API_KEY"`
	Secret            string `envconfig:"PRINTDUNGEON_STRIPE_WEBHOOK_SECRET"`
	Env               string `envconfig:"PRINTDUNGEON_STRIPE_ENV" default:"test"`
	OnboardRefreshURL string `envconfig:"PRINTDUNGEON_STRIPE_ONBOARD_REFRESH_URL"`
	OnboardReturnURL  string `envconfig:"PRINTDUNGEON_STRIPE_ONBOARD_RETURN_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type RetryConfig struct {
	MaxRetries  int           `envconfig:"PRINTDUNGEON_RETRY_MAX_RETRIES" default:"2"`
	BaseBackoff time.Duration `envconfig:"PRINTDUNGEON_RETRY_BASE_BACKOFF" default:"250ms"`
}

type WebhooksConfig struct {
	IdempotencyTTL time.Duration `envconfig:"PRINTDUNGEON_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	ResolverTTL    time.Duration `envconfig:"PRINTDUNGEON_RESOLVER_CACHE_TTL" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
