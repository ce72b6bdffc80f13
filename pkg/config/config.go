package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Password  PasswordConfig
	Content   ContentConfig
	Monetize  MonetizeConfig
	Viral     ViralConfig
	GCP       GCPConfig
	GCS       GCSConfig
	PubSub    PubSubConfig
	RateLimit RateLimitConfig
	Features  FeatureFlags
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Content.validate(cfg.App); err != nil {
		return nil, err
	}
	if err := cfg.Monetize.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VEILPOST_APP_ENV" required:"true"`
	Port         string `envconfig:"VEILPOST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VEILPOST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VEILPOST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VEILPOST_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VEILPOST_DB_DSN"`
	Driver string `envconfig:"VEILPOST_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VEILPOST_DB_HOST"`
	LegacyPort     int    `envconfig:"VEILPOST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VEILPOST_DB_USER"`
	LegacyPassword string `envconfig:"VEILPOST_DB_PASSWORD"`
	LegacyName     string `envconfig:"VEILPOST_DB_NAME"`
	LegacySSLMode  string `envconfig:"VEILPOST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VEILPOST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VEILPOST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VEILPOST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VEILPOST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VEILPOST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VEILPOST_REDIS_ADDR"`
	Password     string        `envconfig:"VEILPOST_REDIS_PASSWORD"`
	DB           int           `envconfig:"VEILPOST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VEILPOST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VEILPOST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VEILPOST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VEILPOST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VEILPOST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VEILPOST_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VEILPOST_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VEILPOST_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"VEILPOST_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"VEILPOST_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"VEILPOST_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"VEILPOST_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"VEILPOST_ARGON_KEY_LEN" default:"32"`
}

// ContentConfig covers the content-key envelope. MasterSecret is padded or
// truncated to the AES-256 key length; stored envelopes are only readable
// while the secret stays stable.
type ContentConfig struct {
	MasterSecret string `envconfig:"VEILPOST_CONTENT_MASTER_SECRET"`
}

func (c ContentConfig) validate(app AppConfig) error {
	if strings.TrimSpace(c.MasterSecret) == "" && app.IsProd() {
		return fmt.Errorf("%s is required in production", EnvContentMasterSecret)
	}
	return nil
}

// MonetizeConfig holds the revenue-split constants.
type MonetizeConfig struct {
	PlatformFee          string `envconfig:"VEILPOST_PLATFORM_FEE" default:"0.05"`
	PlatformFeeWallet    string `envconfig:"VEILPOST_PLATFORM_FEE_WALLET" default:"platform-treasury"`
	DefaultInvestorSlots int    `envconfig:"VEILPOST_DEFAULT_INVESTOR_SLOTS" default:"10"`
	SlotClaimMaxAttempts int    `envconfig:"VEILPOST_SLOT_CLAIM_MAX_ATTEMPTS" default:"3"`
}

func (m MonetizeConfig) validate() error {
	fee, err := decimal.NewFromString(m.PlatformFee)
	if err != nil {
		return fmt.Errorf("invalid platform fee %q: %w", m.PlatformFee, err)
	}
	if fee.IsNegative() {
		return fmt.Errorf("platform fee must not be negative")
	}
	return nil
}

// PlatformFeeAmount returns the flat per-transaction platform fee.
func (m MonetizeConfig) PlatformFeeAmount() decimal.Decimal {
	fee, err := decimal.NewFromString(m.PlatformFee)
	if err != nil {
		return decimal.Zero
	}
	return fee
}

type ViralConfig struct {
	UpvoteThreshold int64         `envconfig:"VEILPOST_VIRAL_UPVOTE_THRESHOLD" default:"10"`
	SweepInterval   time.Duration `envconfig:"VEILPOST_VIRAL_SWEEP_INTERVAL" default:"5m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VEILPOST_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VEILPOST_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VEILPOST_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"VEILPOST_GCS_BUCKET_NAME"`
}

type PubSubConfig struct {
	EventsTopic string `envconfig:"VEILPOST_PUBSUB_EVENTS_TOPIC" default:"vp-platform-events"`
}

type RateLimitConfig struct {
	AuthWindow    time.Duration `envconfig:"VEILPOST_RATE_LIMIT_AUTH_WINDOW" default:"1m"`
	AuthLimit     int64         `envconfig:"VEILPOST_RATE_LIMIT_AUTH_LIMIT" default:"10"`
	PaymentWindow time.Duration `envconfig:"VEILPOST_RATE_LIMIT_PAYMENT_WINDOW" default:"1m"`
	PaymentLimit  int64         `envconfig:"VEILPOST_RATE_LIMIT_PAYMENT_LIMIT" default:"30"`
}

type FeatureFlags struct {
	AutoMigrate bool `envconfig:"VEILPOST_FEATURE_AUTO_MIGRATE" default:"false"`
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
