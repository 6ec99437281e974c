package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is empty because every field carries a fully qualified env tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "LANKAMART_DB_DSN"
	EnvDBHost = "LANKAMART_DB_HOST"
	EnvDBUser = "LANKAMART_DB_USER"
	EnvDBName = "LANKAMART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Checkout     CheckoutConfig
	Shipping     ShippingConfig
	Orders       OrdersConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"LANKAMART_APP_ENV" required:"true"`
	Port         string `envconfig:"LANKAMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LANKAMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LANKAMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LANKAMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LANKAMART_DB_DSN"`
	Driver string `envconfig:"LANKAMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LANKAMART_DB_HOST"`
	LegacyPort     int    `envconfig:"LANKAMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LANKAMART_DB_USER"`
	LegacyPassword string `envconfig:"LANKAMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"LANKAMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"LANKAMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LANKAMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LANKAMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LANKAMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LANKAMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LANKAMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LANKAMART_REDIS_ADDR"`
	Password     string        `envconfig:"LANKAMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"LANKAMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LANKAMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LANKAMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LANKAMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LANKAMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LANKAMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LANKAMART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LANKAMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LANKAMART_JWT_EXPIRATION_MINUTES" required:"true"`
}

// CheckoutConfig bounds the checkout transaction.
type CheckoutConfig struct {
	Timeout time.Duration `envconfig:"LANKAMART_CHECKOUT_TIMEOUT" default:"10s"`
}

type ShippingConfig struct {
	DefaultCost string `envconfig:"LANKAMART_SHIPPING_DEFAULT_COST" default:"400.00"`
}

// OrdersConfig controls the pending-order TTL used by the cron worker.
type OrdersConfig struct {
	PendingTTL time.Duration `envconfig:"LANKAMART_ORDER_PENDING_TTL" default:"240h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"LANKAMART_CRON_INTERVAL" default:"1h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LANKAMART_AUTO_MIGRATE" default:"false"`
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
