package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"

	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"

	StorageDriverMinio = "minio"
	StorageDriverGCS   = "gcs"
	StorageDriverS3    = "s3"

	MQDriverRabbitMQ = "rabbitmq"
	MQDriverPubSub   = "pubsub"
	MQDriverMemory   = "memory"
	MQDriverNone     = "none"
)

type Config struct {
	Env        string `env:"ENV" envDefault:"dev"`
	ServerPort int    `env:"SERVER_PORT" envDefault:"8000"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	SentryDSN  string `env:"SENTRY_DSN"`

	// ExternalCallTimeout bounds every store, cache, mail and upload call.
	ExternalCallTimeout time.Duration `env:"EXTERNAL_CALL_TIMEOUT" envDefault:"10s"`

	Auth     AuthConfig
	Frontend FrontendConfig
	Store    StoreConfig
	Database DatabaseConfig `envPrefix:"DB_"`
	Mongo    MongoConfig    `envPrefix:"MONGO_"`
	Cache    CacheConfig
	Mail     MailConfig     `envPrefix:"MAIL_"`
	Storage  StorageConfig
	Minio    MinioConfig    `envPrefix:"MINIO_"`
	GCS      GCSConfig      `envPrefix:"GCS_"`
	S3       S3Config       `envPrefix:"S3_"`
	MQ       MQConfig
	RabbitMQ RabbitMQConfig `envPrefix:"RABBITMQ_"`
	PubSub   PubSubConfig   `envPrefix:"PUBSUB_"`
}

type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"JWT_EXPIRE" envDefault:"24h"`
	// CookieTTL is independent of TokenTTL: a dropped cookie does not revoke the token.
	CookieTTL     time.Duration `env:"COOKIE_TTL" envDefault:"72h"`
	OTPTTL        time.Duration `env:"OTP_TTL" envDefault:"5m"`
	ResetTTL      time.Duration `env:"RESET_TTL" envDefault:"5m"`
	LoginCacheTTL time.Duration `env:"LOGIN_CACHE_TTL" envDefault:"10m"`
}

type FrontendConfig struct {
	URL      string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	LocalURL string `env:"LOCAL_FRONTEND_URL" envDefault:"http://localhost:3000"`
}

type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" envDefault:"postgres"`
}

type DatabaseConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"edusphere"`
	Password string `env:"PASSWORD" envDefault:"password"`
	DBName   string `env:"NAME" envDefault:"edusphere_db"`
	UseSSL   bool   `env:"USE_SSL" envDefault:"false"`
}

type MongoConfig struct {
	URI      string `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"DATABASE" envDefault:"edusphere"`
}

type CacheConfig struct {
	Driver   string `env:"CACHE_DRIVER" envDefault:"redis"`
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
}

type MailConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	User     string `env:"USER"`
	Password string `env:"PASS"`
	From     string `env:"FROM" envDefault:"EduSphere <no-reply@edusphere.dev>"`
}

type StorageConfig struct {
	Driver       string `env:"STORAGE_DRIVER" envDefault:"minio"`
	UploadFolder string `env:"UPLOAD_FOLDER" envDefault:"EduSphere"`
}

type MinioConfig struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"true"`
}

type GCSConfig struct {
	Bucket          string `env:"BUCKET"`
	ProjectID       string `env:"PROJECT_ID"`
	CredentialsFile string `env:"CREDENTIALS_FILE"`
}

type S3Config struct {
	Region       string `env:"REGION" envDefault:"us-east-1"`
	Bucket       string `env:"BUCKET"`
	AccessKey    string `env:"ACCESS_KEY"`
	SecretKey    string `env:"SECRET_KEY"`
	BaseEndpoint string `env:"BASE_ENDPOINT"`
	// PublicBaseURL overrides the virtual-hosted object URL, e.g. for a CDN.
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
}

type MQConfig struct {
	Driver       string `env:"MQ_DRIVER" envDefault:"none"`
	UploadsTopic string `env:"MQ_UPLOADS_TOPIC" envDefault:"file-uploaded"`
}

type RabbitMQConfig struct {
	URL             string `env:"URL"`
	QueueDurable    bool   `env:"QUEUE_DURABLE" envDefault:"true"`
	QueueAutoDelete bool   `env:"QUEUE_AUTO_DELETE" envDefault:"false"`
	PrefetchCount   int    `env:"PREFETCH_COUNT" envDefault:"10"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PROJECT_ID"`
	CredentialsFile    string `env:"CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"SUBSCRIPTION_SUFFIX" envDefault:"-sub"`
}

// LoadConfig reads configuration from the environment, loading .env first in dev.
func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks driver names and required secrets.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if !oneOf(c.Store.Driver, StoreDriverPostgres, StoreDriverMongo, StoreDriverMemory) {
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	if !oneOf(c.Cache.Driver, CacheDriverRedis, CacheDriverMemory) {
		errs = append(errs, fmt.Errorf("unknown CACHE_DRIVER %q", c.Cache.Driver))
	}
	if !oneOf(c.Storage.Driver, StorageDriverMinio, StorageDriverGCS, StorageDriverS3) {
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}
	if !oneOf(c.MQ.Driver, MQDriverRabbitMQ, MQDriverPubSub, MQDriverMemory, MQDriverNone, "") {
		errs = append(errs, fmt.Errorf("unknown MQ_DRIVER %q", c.MQ.Driver))
	}
	if c.Auth.OTPTTL < time.Second || c.Auth.ResetTTL < time.Second || c.Auth.LoginCacheTTL < time.Second {
		errs = append(errs, errors.New("OTP_TTL, RESET_TTL and LOGIN_CACHE_TTL must be at least 1s"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs with production semantics.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// FrontendBaseURL picks the public or local frontend depending on environment.
func (c Config) FrontendBaseURL() string {
	if c.IsProduction() {
		return strings.TrimRight(c.Frontend.URL, "/")
	}
	return strings.TrimRight(c.Frontend.LocalURL, "/")
}

func oneOf(value string, options ...string) bool {
	for _, option := range options {
		if value == option {
			return true
		}
	}
	return false
}
