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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	RateLimit    RateLimitConfig
	Scheduling   SchedulingConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Scheduling.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CAKESTORE_APP_ENV" required:"true"`
	Port         string `envconfig:"CAKESTORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CAKESTORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CAKESTORE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"CAKESTORE_LOG_FORMAT" default:"json"`

	CORSOrigins []string `envconfig:"CAKESTORE_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CAKESTORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CAKESTORE_DB_DSN"`
	Driver string `envconfig:"CAKESTORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CAKESTORE_DB_HOST"`
	LegacyPort     int    `envconfig:"CAKESTORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CAKESTORE_DB_USER"`
	LegacyPassword string `envconfig:"CAKESTORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CAKESTORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CAKESTORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CAKESTORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAKESTORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAKESTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAKESTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	LockTimeout     time.Duration `envconfig:"CAKESTORE_DB_LOCK_TIMEOUT" default:"3s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CAKESTORE_REDIS_URL"`
	Address      string        `envconfig:"CAKESTORE_REDIS_ADDR"`
	Password     string        `envconfig:"CAKESTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAKESTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAKESTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAKESTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAKESTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAKESTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAKESTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// RateLimitConfig throttles the public scheduling endpoints per client IP. A zero limit
// disables that policy.
type RateLimitConfig struct {
	Window         time.Duration `envconfig:"CAKESTORE_RATE_LIMIT_WINDOW" default:"1m"`
	PlacementLimit int           `envconfig:"CAKESTORE_RATE_LIMIT_PLACEMENT" default:"20"`
	EstimateLimit  int           `envconfig:"CAKESTORE_RATE_LIMIT_ESTIMATE" default:"120"`
}

// SchedulingConfig holds the production calendar policy shared by the estimator and the
// placement transaction. DefaultDailyCapacity applies to any day without a capacity slot
// row; setting it to 0 closes unseeded days.
type SchedulingConfig struct {
	TimeZone             string        `envconfig:"CAKESTORE_SCHEDULING_TIMEZONE" default:"UTC"`
	CutoffHour           int           `envconfig:"CAKESTORE_SCHEDULING_CUTOFF_HOUR" default:"18"`
	HorizonDays          int           `envconfig:"CAKESTORE_SCHEDULING_HORIZON_DAYS" default:"30"`
	StockedOffsetDays    int           `envconfig:"CAKESTORE_SCHEDULING_STOCKED_OFFSET_DAYS" default:"1"`
	DefaultDailyCapacity int           `envconfig:"CAKESTORE_SCHEDULING_DEFAULT_DAILY_CAPACITY" default:"50"`
	ReserveMaxAttempts   int           `envconfig:"CAKESTORE_SCHEDULING_RESERVE_MAX_ATTEMPTS" default:"4"`
	ReserveBaseBackoff   time.Duration `envconfig:"CAKESTORE_SCHEDULING_RESERVE_BASE_BACKOFF" default:"25ms"`
}

// Location resolves the configured time zone, falling back to UTC.
func (s SchedulingConfig) Location() *time.Location {
	if strings.TrimSpace(s.TimeZone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s SchedulingConfig) validate() error {
	if s.CutoffHour < 0 || s.CutoffHour > 24 {
		return fmt.Errorf("%s must be between 0 and 24", EnvSchedulingCutoffHour)
	}
	if s.HorizonDays < 1 {
		return fmt.Errorf("%s must be at least 1", EnvSchedulingHorizonDays)
	}
	if s.DefaultDailyCapacity < 0 {
		return fmt.Errorf("%s must not be negative", EnvSchedulingDefaultCapacity)
	}
	if _, err := time.LoadLocation(s.TimeZone); err != nil {
		return fmt.Errorf("%s: %w", EnvSchedulingTimeZone, err)
	}
	return nil
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CAKESTORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CAKESTORE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	// Sink selects where the outbox publisher delivers events: pubsub or kafka.
	Sink string `envconfig:"CAKESTORE_EVENTING_SINK" default:"pubsub"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"CAKESTORE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"CAKESTORE_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"CAKESTORE_PUBSUB_ORDERS_TOPIC" default:"cakestore-order-events"`
}

type KafkaConfig struct {
	Brokers     []string `envconfig:"CAKESTORE_KAFKA_BROKERS"`
	OrdersTopic string   `envconfig:"CAKESTORE_KAFKA_ORDERS_TOPIC" default:"orders.events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CAKESTORE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CAKESTORE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CAKESTORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"CAKESTORE_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"CAKESTORE_CRON_INTERVAL" default:"1h"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = defaultSQLiteDSN
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
