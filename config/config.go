package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorageBackendMinio = "minio"
	StorageBackendGCS   = "gcs"
	MQBackendRabbitMQ   = "rabbitmq"
	MQBackendPubSub     = "pubsub"
	BackendNone         = "none"
)

type Config struct {
	ServerPort    int    `envconfig:"SERVER_PORT" default:"8080"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:3000"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string `envconfig:"LOG_FORMAT" default:"json"`

	HTTP      HTTPConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Google    GoogleOAuthConfig
	Storage   StorageConfig
	Minio     MinioConfig
	GCS       GCSConfig
	MQ        MQConfig
	RabbitMQ  RabbitMQConfig
	PubSub    PubSubConfig
	Redis     RedisConfig
	Geocoder  GeocoderConfig
	RateLimit RateLimitConfig
}

// HTTPConfig controls browser access and client address resolution.
// TrustProxy honours X-Forwarded-For / X-Real-IP; enable it only behind a
// proxy that overwrites those headers.
type HTTPConfig struct {
	AllowedOrigins []string `envconfig:"HTTP_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	TrustProxy     bool     `envconfig:"HTTP_TRUST_PROXY" default:"false"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"eventos"`
	Password string `envconfig:"DB_PASSWORD" default:"password"`
	DBName   string `envconfig:"DB_NAME" default:"eventos_db"`
	UseSSL   bool   `envconfig:"DB_USE_SSL" default:"false"`
}

type JWTConfig struct {
	Secret string        `envconfig:"JWT_SECRET"`
	TTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`
}

// GoogleOAuthConfig enables "sign in with Google" when ClientID is set.
type GoogleOAuthConfig struct {
	ClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	ClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL" default:"http://localhost:8080/auth/google/callback"`
}

func (g GoogleOAuthConfig) Enabled() bool {
	return strings.TrimSpace(g.ClientID) != "" && strings.TrimSpace(g.ClientSecret) != ""
}

type StorageConfig struct {
	Backend              string `envconfig:"STORAGE_BACKEND" default:"none"`
	EventImagesBucket    string `envconfig:"STORAGE_EVENT_IMAGES_BUCKET" default:"event-images"`
	ComplaintImageBucket string `envconfig:"STORAGE_COMPLAINT_IMAGES_BUCKET" default:"complaint-images"`
	PublicBaseURL        string `envconfig:"STORAGE_PUBLIC_BASE_URL"`
}

type MinioConfig struct {
	Endpoint  string `envconfig:"MINIO_ENDPOINT"`
	AccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	SecretKey string `envconfig:"MINIO_SECRET_KEY"`
	UseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`
}

type GCSConfig struct {
	ProjectID       string `envconfig:"GCS_PROJECT_ID"`
	CredentialsFile string `envconfig:"GCS_CREDENTIALS_FILE"`
}

type MQConfig struct {
	Backend           string `envconfig:"MQ_BACKEND" default:"none"`
	AttendanceChannel string `envconfig:"MQ_ATTENDANCE_CHANNEL" default:"attendance-registered"`
}

type RabbitMQConfig struct {
	URL             string `envconfig:"RABBITMQ_URL"`
	QueueDurable    bool   `envconfig:"RABBITMQ_QUEUE_DURABLE" default:"true"`
	QueueAutoDelete bool   `envconfig:"RABBITMQ_QUEUE_AUTO_DELETE" default:"false"`
	PrefetchCount   int    `envconfig:"RABBITMQ_PREFETCH_COUNT" default:"10"`
}

type PubSubConfig struct {
	ProjectID          string `envconfig:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `envconfig:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `envconfig:"PUBSUB_SUBSCRIPTION_SUFFIX" default:"-sub"`
}

// RedisConfig is optional; an empty URL disables caching and rate limiting.
type RedisConfig struct {
	URL string `envconfig:"REDIS_URL"`
}

type GeocoderConfig struct {
	BaseURL   string        `envconfig:"GEOCODER_BASE_URL" default:"https://nominatim.openstreetmap.org"`
	UserAgent string        `envconfig:"GEOCODER_USER_AGENT" default:"EventRegistrationApp/1.0"`
	CacheTTL  time.Duration `envconfig:"GEOCODER_CACHE_TTL" default:"24h"`
}

type RateLimitConfig struct {
	Window       time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	CheckInLimit int           `envconfig:"RATE_LIMIT_CHECKIN" default:"10"`
	LoginLimit   int           `envconfig:"RATE_LIMIT_LOGIN" default:"20"`
}

func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.MQ.Backend = strings.ToLower(strings.TrimSpace(cfg.MQ.Backend))
	return cfg, nil
}
