package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App            AppConfig
	DB             DBConfig
	Redis          RedisConfig
	JWT            JWTConfig
	FeatureFlags   FeatureFlagsConfig
	Eventing       EventingConfig
	Idempotency    IdempotencyConfig
	GCP            GCPConfig
	PubSub         PubSubConfig
	Firebase       FirebaseConfig
	Stripe         StripeConfig
	Checkout       CheckoutConfig
	Outbox         OutboxConfig
	Reconciliation ReconciliationConfig
	CORS           CORSConfig
	RateLimit      RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHECKOUT_APP_ENV" required:"true"`
	Port         string `envconfig:"CHECKOUT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CHECKOUT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CHECKOUT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"CHECKOUT_LOG_WARN_STACK" default:"false"`
	WorkerID     string `envconfig:"CHECKOUT_WORKER_ID" default:"worker-0"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"CHECKOUT_DB_DSN"`
	Driver string `envconfig:"CHECKOUT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CHECKOUT_DB_HOST"`
	Port     int    `envconfig:"CHECKOUT_DB_PORT" default:"5432"`
	User     string `envconfig:"CHECKOUT_DB_USER"`
	Password string `envconfig:"CHECKOUT_DB_PASSWORD"`
	Name     string `envconfig:"CHECKOUT_DB_NAME"`
	SSLMode  string `envconfig:"CHECKOUT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CHECKOUT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CHECKOUT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CHECKOUT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHECKOUT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CHECKOUT_REDIS_URL" required:"true"`
	Password     string        `envconfig:"CHECKOUT_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHECKOUT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHECKOUT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHECKOUT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHECKOUT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHECKOUT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"CHECKOUT_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// JWTConfig covers the bearer tokens issued to restaurant staff for the dashboard.
type JWTConfig struct {
	Secret            string `envconfig:"CHECKOUT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CHECKOUT_JWT_ISSUER" default:"restaurant-checkout"`
	ExpirationMinutes int    `envconfig:"CHECKOUT_JWT_EXPIRATION_MINUTES" default:"720"`
}

func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate   bool `envconfig:"CHECKOUT_AUTO_MIGRATE" default:"false"`
	Notifications bool `envconfig:"CHECKOUT_FEATURE_NOTIFICATIONS" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"CHECKOUT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookEventTTL      time.Duration `envconfig:"CHECKOUT_WEBHOOK_EVENT_TTL" default:"72h"`
}

// IdempotencyConfig drives the Idempotency-Key middleware on client callables.
type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CHECKOUT_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"CHECKOUT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"CHECKOUT_PUBSUB_ORDERS_TOPIC" default:"checkout-order-events"`
	NotificationSubscription string `envconfig:"CHECKOUT_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"checkout-order-events-notifications"`
}

type FirebaseConfig struct {
	CredentialsFile string `envconfig:"CHECKOUT_FIREBASE_CREDENTIALS_FILE"`
	StaffTopic      string `envconfig:"CHECKOUT_FIREBASE_STAFF_TOPIC" default:"restaurant-staff"`
}

type StripeConfig struct {
	APIKey        string        `envconfig:"CHECKOUT_STRIPE_API_KEY" required:"true"`
	WebhookSecret string        `envconfig:"CHECKOUT_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env           string        `envconfig:"CHECKOUT_STRIPE_ENV" default:"test"`
	Country       string        `envconfig:"CHECKOUT_STRIPE_ACCOUNT_COUNTRY" default:"AU"`
	Timeout       time.Duration `envconfig:"CHECKOUT_STRIPE_TIMEOUT" default:"10s"`
	// FrontendURL is where onboarding links send the restaurant owner back to.
	FrontendURL string `envconfig:"CHECKOUT_FRONTEND_URL" default:"http://localhost:3000/admin"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// CheckoutConfig holds the pricing knobs of the platform fee.
type CheckoutConfig struct {
	Currency      string `envconfig:"CHECKOUT_CURRENCY" default:"aud"`
	FeeRate       string `envconfig:"CHECKOUT_SERVICE_FEE_RATE" default:"0.05"`
	FeeCap        string `envconfig:"CHECKOUT_SERVICE_FEE_CAP" default:"3.00"`
	CounterName   string `envconfig:"CHECKOUT_ORDER_COUNTER_NAME" default:"orders"`
	MetadataChunk int    `envconfig:"CHECKOUT_METADATA_CHUNK_SIZE" default:"500"`
	MetadataKeys  int    `envconfig:"CHECKOUT_METADATA_MAX_CHUNKS" default:"10"`
}

func (c CheckoutConfig) validate() error {
	if len(strings.TrimSpace(c.Currency)) != 3 {
		return fmt.Errorf("%s must be a 3-letter currency code", EnvCurrency)
	}
	if c.MetadataChunk <= 0 || c.MetadataChunk > 500 {
		return fmt.Errorf("%s must be between 1 and 500", EnvMetadataChunk)
	}
	if c.MetadataKeys <= 0 || c.MetadataKeys > 40 {
		return fmt.Errorf("%s must be between 1 and 40", EnvMetadataKeys)
	}
	return nil
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"CHECKOUT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"CHECKOUT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"CHECKOUT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"CHECKOUT_OUTBOX_RETENTION" default:"720h"`
}

// ReconciliationConfig drives the worker that repairs paid-but-unrecorded intents.
type ReconciliationConfig struct {
	Interval       time.Duration `envconfig:"CHECKOUT_RECONCILIATION_INTERVAL" default:"5m"`
	BatchSize      int           `envconfig:"CHECKOUT_RECONCILIATION_BATCH_SIZE" default:"25"`
	MaxAttempts    int           `envconfig:"CHECKOUT_RECONCILIATION_MAX_ATTEMPTS" default:"12"`
	ConfirmGrace   time.Duration `envconfig:"CHECKOUT_RECONCILIATION_CONFIRM_GRACE" default:"10m"`
	EscalationWait time.Duration `envconfig:"CHECKOUT_RECONCILIATION_ESCALATE_AFTER" default:"1h"`
}

// RateLimitConfig bounds unauthenticated checkout calls per client IP and
// per customer email.
type RateLimitConfig struct {
	Window           time.Duration `envconfig:"CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
	IntentsPerIP     int           `envconfig:"CHECKOUT_RATE_LIMIT_INTENTS_PER_IP" default:"20"`
	IntentsPerEmail  int           `envconfig:"CHECKOUT_RATE_LIMIT_INTENTS_PER_EMAIL" default:"10"`
	ConfirmsPerIP    int           `envconfig:"CHECKOUT_RATE_LIMIT_CONFIRMS_PER_IP" default:"30"`
	ConfirmsPerEmail int           `envconfig:"CHECKOUT_RATE_LIMIT_CONFIRMS_PER_EMAIL" default:"10"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CHECKOUT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
