package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Checkout     CheckoutConfig
	Delivery     DeliveryConfig
	Notification NotificationConfig
	Cron         CronConfig
}

// Load reads the GROCER_* environment and checks the settings envconfig
// cannot express as tags. Every violation is reported, not just the first.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	err := multierr.Combine(
		cfg.DB.resolveDSN(),
		cfg.Checkout.validate(),
		cfg.Outbox.validate(),
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GROCER_APP_ENV" required:"true"`
	Port         string `envconfig:"GROCER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GROCER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GROCER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GROCER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GROCER_DB_DSN"`
	Driver string `envconfig:"GROCER_DB_DRIVER" default:"postgres"`

	// Host, Port, User, Password, Name and SSLMode compose a postgres DSN
	// when DSN is empty.
	Host     string `envconfig:"GROCER_DB_HOST"`
	Port     int    `envconfig:"GROCER_DB_PORT" default:"5432"`
	User     string `envconfig:"GROCER_DB_USER"`
	Password string `envconfig:"GROCER_DB_PASSWORD"`
	Name     string `envconfig:"GROCER_DB_NAME"`
	SSLMode  string `envconfig:"GROCER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GROCER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GROCER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GROCER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GROCER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GROCER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GROCER_REDIS_ADDR"`
	Password     string        `envconfig:"GROCER_REDIS_PASSWORD"`
	DB           int           `envconfig:"GROCER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GROCER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GROCER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GROCER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GROCER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GROCER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes the tokens issued by the identity service. This service
// only verifies them.
type JWTConfig struct {
	Secret            string `envconfig:"GROCER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GROCER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GROCER_JWT_EXPIRATION_MINUTES" default:"60"`
}

type RateLimitConfig struct {
	CheckoutWindow time.Duration `envconfig:"GROCER_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutLimit  int           `envconfig:"GROCER_RATE_LIMIT_CHECKOUT_LIMIT" default:"5"`
	TrackWindow    time.Duration `envconfig:"GROCER_RATE_LIMIT_TRACK_WINDOW" default:"1m"`
	TrackIPLimit   int           `envconfig:"GROCER_RATE_LIMIT_TRACK_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GROCER_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"GROCER_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GROCER_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"GROCER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GROCER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"GROCER_PUBSUB_ORDERS_TOPIC" required:"true"`
	NotificationTopic        string `envconfig:"GROCER_PUBSUB_NOTIFICATION_TOPIC" default:"gc-notification-events"`
	NotificationSubscription string `envconfig:"GROCER_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GROCER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GROCER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GROCER_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (o OutboxConfig) validate() error {
	if o.BatchSize <= 0 || o.MaxAttempts <= 0 {
		return fmt.Errorf("%s and %s must be positive", EnvOutboxBatchSize, EnvOutboxMaxAttempts)
	}
	return nil
}

// CheckoutConfig holds the pricing rules applied when a cart becomes an order.
// Amounts are in minor currency units.
type CheckoutConfig struct {
	TaxRatePercent        string        `envconfig:"GROCER_CHECKOUT_TAX_RATE_PERCENT" default:"5"`
	FreeDeliveryThreshold int64         `envconfig:"GROCER_CHECKOUT_FREE_DELIVERY_THRESHOLD_CENTS" default:"50000"`
	DeliveryFee           int64         `envconfig:"GROCER_CHECKOUT_DELIVERY_FEE_CENTS" default:"5000"`
	EstimatedDeliveryIn   time.Duration `envconfig:"GROCER_CHECKOUT_ESTIMATED_DELIVERY" default:"2h"`
	OrderNumberAttempts   int           `envconfig:"GROCER_CHECKOUT_ORDER_NUMBER_ATTEMPTS" default:"5"`
}

func (c CheckoutConfig) validate() error {
	var err error
	if rate, perr := decimal.NewFromString(c.TaxRatePercent); perr != nil || rate.IsNegative() {
		err = multierr.Append(err, fmt.Errorf("%s must be a non-negative decimal, got %q", EnvCheckoutTaxRate, c.TaxRatePercent))
	}
	if c.FreeDeliveryThreshold < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be non-negative", EnvCheckoutFreeDeliveryThreshold))
	}
	if c.DeliveryFee < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be non-negative", EnvCheckoutDeliveryFee))
	}
	if c.OrderNumberAttempts <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvCheckoutOrderNumberAttempts))
	}
	return err
}

type DeliveryConfig struct {
	PartnerIDs []string `envconfig:"GROCER_DELIVERY_PARTNER_IDS" default:"partner-1,partner-2,partner-3"`
}

type NotificationConfig struct {
	DispatchBuffer int `envconfig:"GROCER_NOTIFICATION_DISPATCH_BUFFER" default:"256"`
}

type CronConfig struct {
	Interval                time.Duration `envconfig:"GROCER_CRON_INTERVAL" default:"1m"`
	PendingConfirmationAge  time.Duration `envconfig:"GROCER_CRON_PENDING_CONFIRMATION_AGE" default:"2m"`
	PendingConfirmationSize int           `envconfig:"GROCER_CRON_PENDING_CONFIRMATION_BATCH" default:"100"`
	OutboxRetention         time.Duration `envconfig:"GROCER_CRON_OUTBOX_RETENTION" default:"720h"`
	NotificationRetention   time.Duration `envconfig:"GROCER_CRON_NOTIFICATION_RETENTION" default:"2160h"`
	LockTTL                 time.Duration `envconfig:"GROCER_CRON_LOCK_TTL" default:"5m"`
	// MetricsAddr is where the cron worker exposes /metrics. Empty disables it.
	MetricsAddr string `envconfig:"GROCER_CRON_METRICS_ADDR" default:":9102"`
}

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
		return fmt.Errorf("%s is not set and %s missing", EnvDBDSN, strings.Join(missing, ", "))
	}

	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(db.User, db.Password),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password == "" {
		dsn.User = url.User(db.User)
	}
	if db.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
