package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Auth         AuthConfig
	Ledger       LedgerConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Presence     PresenceConfig
	HTTP         HTTPConfig
	RateLimit    RateLimitConfig
}

// Load reads STARFEED_* variables (envconfig falls back to the bare names)
// and rejects settings the ledger and outbox cannot run with. Every problem is
// reported, not just the first.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	err := c.DB.resolveDSN()
	if c.Ledger.StarValueNGN <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvStarValueNGN))
	}
	if c.Ledger.MaxStarPrice < 1 {
		err = multierr.Append(err, errors.New("STARFEED_LEDGER_MAX_STAR_PRICE must be at least 1"))
	}
	if c.Outbox.BatchSize < 1 || c.Outbox.MaxAttempts < 1 {
		err = multierr.Append(err, errors.New("outbox batch size and max attempts must be at least 1"))
	}
	if c.RateLimit.ViewsPerWindow > 0 && c.RateLimit.Window <= 0 {
		err = multierr.Append(err, errors.New("STARFEED_RATE_LIMIT_WINDOW must be positive when view limits are on"))
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		err = multierr.Append(err, errors.New("http read and write timeouts must be positive"))
	}
	return err
}

type AppConfig struct {
	Env          string `envconfig:"STARFEED_APP_ENV" required:"true"`
	Port         string `envconfig:"STARFEED_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STARFEED_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STARFEED_LOG_WARN_STACK" default:"false"`
	// MetricsAddr is where the worker binaries expose /metrics. Empty disables it.
	MetricsAddr  string `envconfig:"STARFEED_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STARFEED_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STARFEED_DB_DSN"`
	Driver string `envconfig:"STARFEED_DB_DRIVER" default:"postgres"`

	// Used only when DSN is empty.
	Host     string `envconfig:"STARFEED_DB_HOST"`
	Port     int    `envconfig:"STARFEED_DB_PORT" default:"5432"`
	User     string `envconfig:"STARFEED_DB_USER"`
	Password string `envconfig:"STARFEED_DB_PASSWORD"`
	Name     string `envconfig:"STARFEED_DB_NAME"`
	SSLMode  string `envconfig:"STARFEED_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STARFEED_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STARFEED_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STARFEED_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STARFEED_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STARFEED_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STARFEED_REDIS_ADDR"`
	Password     string        `envconfig:"STARFEED_REDIS_PASSWORD"`
	DB           int           `envconfig:"STARFEED_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STARFEED_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STARFEED_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STARFEED_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STARFEED_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STARFEED_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// AuthConfig describes how access tokens minted by the identity provider are verified.
type AuthConfig struct {
	JWTSecret  string `envconfig:"STARFEED_AUTH_JWT_SECRET" required:"true"`
	JWTIssuer  string `envconfig:"STARFEED_AUTH_JWT_ISSUER"`
	Audience   string `envconfig:"STARFEED_AUTH_JWT_AUDIENCE" default:"authenticated"`
	AdminClaim string `envconfig:"STARFEED_AUTH_ADMIN_ROLE" default:"admin"`
}

// LedgerConfig carries the star economy constants.
type LedgerConfig struct {
	StarValueNGN int64 `envconfig:"STARFEED_LEDGER_STAR_VALUE_NGN" default:"500"`
	MaxStarPrice int   `envconfig:"STARFEED_LEDGER_MAX_STAR_PRICE" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STARFEED_AUTO_MIGRATE" default:"false"`
	Presence    bool `envconfig:"STARFEED_FEATURE_PRESENCE" default:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STARFEED_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STARFEED_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	LedgerTopic            string `envconfig:"STARFEED_PUBSUB_LEDGER_TOPIC" default:"sf-ledger-events"`
	ModerationTopic        string `envconfig:"STARFEED_PUBSUB_MODERATION_TOPIC" default:"sf-moderation-events"`
	ModerationSubscription string `envconfig:"STARFEED_PUBSUB_MODERATION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"STARFEED_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"STARFEED_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"STARFEED_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"STARFEED_OUTBOX_RETENTION" default:"168h"`
	IdempotencyTTL time.Duration `envconfig:"STARFEED_OUTBOX_IDEMPOTENCY_TTL" default:"720h"`
}

// CronConfig drives cmd/cron-worker. Tick is how often due jobs are checked;
// each job then runs on its own cadence.
type CronConfig struct {
	Tick                     time.Duration `envconfig:"STARFEED_CRON_TICK" default:"1m"`
	NotificationCleanupEvery time.Duration `envconfig:"STARFEED_CRON_NOTIFICATION_CLEANUP_EVERY" default:"24h"`
	OutboxRetentionEvery     time.Duration `envconfig:"STARFEED_CRON_OUTBOX_RETENTION_EVERY" default:"1h"`
	ViewReconcileEvery       time.Duration `envconfig:"STARFEED_CRON_VIEW_RECONCILE_EVERY" default:"15m"`
	NotificationRetention    int           `envconfig:"STARFEED_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
}

type PresenceConfig struct {
	TTL time.Duration `envconfig:"STARFEED_PRESENCE_TTL" default:"90s"`
}

// HTTPConfig carries edge settings for the api binary.
type HTTPConfig struct {
	CORSOrigins  []string      `envconfig:"STARFEED_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ReadTimeout  time.Duration `envconfig:"STARFEED_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"STARFEED_HTTP_WRITE_TIMEOUT" default:"30s"`
}

type RateLimitConfig struct {
	ViewsPerWindow int           `envconfig:"STARFEED_RATE_LIMIT_VIEWS" default:"120"`
	Window         time.Duration `envconfig:"STARFEED_RATE_LIMIT_WINDOW" default:"1m"`
}

// resolveDSN assembles a postgres URL from the discrete settings when no DSN
// is given.
func (db *DBConfig) resolveDSN() error {
	if db.DSN != "" {
		return nil
	}
	var missing []string
	for env, v := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = u.String()
	return nil
}
