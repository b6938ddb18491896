package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	OTP          OTPConfig
	SMS          SMSConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"PANDHAM_APP_ENV" required:"true"`
	Port         string `envconfig:"PANDHAM_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PANDHAM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PANDHAM_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PANDHAM_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PANDHAM_DB_DSN"`
	Driver string `envconfig:"PANDHAM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PANDHAM_DB_HOST"`
	LegacyPort     int    `envconfig:"PANDHAM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PANDHAM_DB_USER"`
	LegacyPassword string `envconfig:"PANDHAM_DB_PASSWORD"`
	LegacyName     string `envconfig:"PANDHAM_DB_NAME"`
	LegacySSLMode  string `envconfig:"PANDHAM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PANDHAM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PANDHAM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PANDHAM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PANDHAM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Driver == DriverSQLite {
		return fmt.Errorf("sqlite driver requires PANDHAM_DB_DSN")
	}
	if d.LegacyHost == "" || d.LegacyUser == "" || d.LegacyName == "" {
		return fmt.Errorf("database DSN or host/user/name are required")
	}
	d.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.LegacyHost, d.LegacyPort, d.LegacyUser, d.LegacyPassword, d.LegacyName, d.LegacySSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"PANDHAM_REDIS_URL"`
	Address      string        `envconfig:"PANDHAM_REDIS_ADDR"`
	Password     string        `envconfig:"PANDHAM_REDIS_PASSWORD"`
	DB           int           `envconfig:"PANDHAM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PANDHAM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PANDHAM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PANDHAM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PANDHAM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PANDHAM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PANDHAM_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PANDHAM_JWT_ISSUER" default:"pandham-backend"`
	ExpirationMinutes int    `envconfig:"PANDHAM_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PANDHAM_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PANDHAM_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PANDHAM_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PANDHAM_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PANDHAM_ARGON_KEY_LEN" default:"32"`
}

type OTPConfig struct {
	TTL           time.Duration `envconfig:"PANDHAM_OTP_TTL" default:"3m"`
	CodeLength    int           `envconfig:"PANDHAM_OTP_CODE_LENGTH" default:"6"`
	SendWindow    time.Duration `envconfig:"PANDHAM_OTP_SEND_WINDOW" default:"10m"`
	SendLimit     int           `envconfig:"PANDHAM_OTP_SEND_LIMIT" default:"3"`
	VerifyWindow  time.Duration `envconfig:"PANDHAM_OTP_VERIFY_WINDOW" default:"10m"`
	VerifyLimit   int           `envconfig:"PANDHAM_OTP_VERIFY_LIMIT" default:"10"`
	SendIPLimit   int           `envconfig:"PANDHAM_OTP_SEND_IP_LIMIT" default:"20"`
	SendIPWindow  time.Duration `envconfig:"PANDHAM_OTP_SEND_IP_WINDOW" default:"10m"`
}

type SMSConfig struct {
	GatewayURL string `envconfig:"PANDHAM_SMS_GATEWAY_URL"`
	APIKey     string `envconfig:"PANDHAM_SMS_API_KEY"`
	ClientID   string `envconfig:"PANDHAM_SMS_CLIENT_ID"`
	SenderID   string `envconfig:"PANDHAM_SMS_SENDER_ID" default:"PTF"`
	DryRun     bool   `envconfig:"PANDHAM_SMS_DRY_RUN" default:"false"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PANDHAM_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PANDHAM_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PANDHAM_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PANDHAM_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PANDHAM_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"PANDHAM_PUBSUB_DOMAIN_TOPIC" default:"pandham-domain-events"`
	DomainSubscription string `envconfig:"PANDHAM_PUBSUB_DOMAIN_SUBSCRIPTION" default:"pandham-domain-events-rescan"`
}

type OutboxConfig struct {
	PollInterval time.Duration `envconfig:"PANDHAM_OUTBOX_POLL_INTERVAL" default:"5s"`
	BatchSize    int           `envconfig:"PANDHAM_OUTBOX_BATCH_SIZE" default:"50"`
	MaxAttempts  int           `envconfig:"PANDHAM_OUTBOX_MAX_ATTEMPTS" default:"10"`
}
