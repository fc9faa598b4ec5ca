package configuration

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Database DatabaseConfig
	MinIO    MinIOConfig
	Server   ServerConfig
	Upload   UploadConfig
	OAuth    OAuthConfig
	NATSURL  string `envconfig:"NATS_URL" default:"nats://localhost:4222"`
	// CLAMAVURL empty disables virus scanning.
	CLAMAVURL string `envconfig:"CLAMAV_URL"`
	// OIDCIssuerURL empty disables the bearer-token middleware (dev mode).
	OIDCIssuerURL string `envconfig:"OIDC_ISSUER_URL"`
}

type DatabaseConfig struct {
	// Host empty falls back to the in-memory store.
	Host     string `envconfig:"DB_HOST"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"uploaduser"`
	Password string `envconfig:"DB_PASSWORD" default:"uploadpassword"`
	DBName   string `envconfig:"DB_NAME" default:"uploads"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
}

type MinIOConfig struct {
	Endpoint   string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKey  string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey  string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	BucketName string `envconfig:"MINIO_BUCKET" default:"uploads"`
	UseSSL     bool   `envconfig:"MINIO_USE_SSL" default:"false"`
}

type ServerConfig struct {
	Port string `envconfig:"SERVER_PORT" default:"8080"`
}

type UploadConfig struct {
	// ChunkSize must be a multiple of 256 KiB per the remote protocol.
	ChunkSize         int64         `envconfig:"UPLOAD_CHUNK_SIZE" default:"268435456"`
	MaxRetries        int           `envconfig:"UPLOAD_MAX_RETRIES" default:"3"`
	MaxFileSize       int64         `envconfig:"UPLOAD_MAX_FILE_SIZE" default:"137438953472"`
	MaxConcurrent     int64         `envconfig:"UPLOAD_MAX_CONCURRENT" default:"3"`
	BandwidthLimit    int64         `envconfig:"UPLOAD_BANDWIDTH_LIMIT" default:"0"`
	ChunkTimeout      time.Duration `envconfig:"CHUNK_TIMEOUT" default:"10m"`
	ReferenceTTL      time.Duration `envconfig:"REFERENCE_TTL" default:"24h"`
	ReaperInterval    time.Duration `envconfig:"REAPER_INTERVAL" default:"10m"`
	SchedulerInterval time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"1s"`
}

type OAuthConfig struct {
	ClientID      string        `envconfig:"YOUTUBE_CLIENT_ID"`
	ClientSecret  string        `envconfig:"YOUTUBE_CLIENT_SECRET"`
	RedirectURI   string        `envconfig:"YOUTUBE_REDIRECT_URI" default:"http://localhost:8080/api/auth/callback"`
	RefreshMargin time.Duration `envconfig:"TOKEN_REFRESH_MARGIN" default:"5m"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}
