package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the envconfig namespace for every setting below.
const EnvPrefix = "VELOSHOP"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvDBDSN  = "VELOSHOP_DB_DSN"
	EnvDBHost = "VELOSHOP_DB_HOST"
	EnvDBUser = "VELOSHOP_DB_USER"
	EnvDBName = "VELOSHOP_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Catalog       CatalogConfig
	Shipping      ShippingConfig
	Gateway       GatewayConfig
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
	Env          string `envconfig:"VELOSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"VELOSHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VELOSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VELOSHOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VELOSHOP_DB_DSN"`
	Driver string `envconfig:"VELOSHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VELOSHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"VELOSHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VELOSHOP_DB_USER"`
	LegacyPassword string `envconfig:"VELOSHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"VELOSHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"VELOSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VELOSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VELOSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VELOSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VELOSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VELOSHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VELOSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"VELOSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"VELOSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VELOSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VELOSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VELOSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VELOSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VELOSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"VELOSHOP_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"VELOSHOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"VELOSHOP_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"VELOSHOP_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"VELOSHOP_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"VELOSHOP_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"VELOSHOP_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"VELOSHOP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"VELOSHOP_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"VELOSHOP_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"VELOSHOP_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"VELOSHOP_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"VELOSHOP_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"VELOSHOP_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"VELOSHOP_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VELOSHOP_AUTO_MIGRATE" default:"false"`
}

type CatalogConfig struct {
	CacheTTL time.Duration `envconfig:"VELOSHOP_CATALOG_CACHE_TTL" default:"5m"`
}

// ShippingConfig carries fallback values used until the settings table is seeded.
type ShippingConfig struct {
	FreeThresholdCents int    `envconfig:"VELOSHOP_SHIPPING_FREE_THRESHOLD_CENTS" default:"50000"`
	FlatFeeCents       int    `envconfig:"VELOSHOP_SHIPPING_FLAT_FEE_CENTS" default:"1500"`
	Currency           string `envconfig:"VELOSHOP_CURRENCY" default:"USD"`
}

type GatewayConfig struct {
	AccessToken   string `envconfig:"VELOSHOP_SQUARE_ACCESS_TOKEN"`
	Env           string `envconfig:"VELOSHOP_SQUARE_ENV" default:"sandbox"`
	WebhookSecret string `envconfig:"VELOSHOP_SQUARE_WEBHOOK_SECRET"`
	LocationID    string `envconfig:"VELOSHOP_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized gateway environment (sandbox/production).
func (g GatewayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(g.Env))
	if env == "" {
		return "sandbox"
	}
	return env
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
