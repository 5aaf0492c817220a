package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/studentdocs/profile-service/internal/storage"
)

// Config holds application configuration. It is loaded once at startup and
// treated as read-only afterwards.
type Config struct {
	Server    ServerConfig
	Baserow   BaserowConfig
	Storage   StorageConfig
	Render    RenderConfig
	Fields    FieldConfig
	Profile   ProfileConfig
	Webhook   WebhookConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// BaserowConfig points at the Baserow rows API, e.g.
// https://api.baserow.io/api/database/rows/table/
type BaserowConfig struct {
	APIURL  string
	Token   string
	TableID string
}

type StorageConfig struct {
	Backend        string
	ParentFolderID string
	Drive          storage.DriveConfig
	MinIO          storage.MinIOConfig
	GCS            storage.GCSConfig
}

type RenderConfig struct {
	TemplateFile string
}

// FieldConfig names the record fields the service reads and writes.
type FieldConfig struct {
	DisplayName string
	FolderLink  string
	ProfileLink string
}

type ProfileConfig struct {
	// BaseURL is the externally reachable address of this service.
	BaseURL string
}

type WebhookConfig struct {
	// StatusCodes makes the webhook answer 400/502 on rejected or failed events
	// instead of always 200.
	StatusCodes bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and an optional
// .env file (ENV_FILE overrides the default ".env").
func LoadConfig() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8000")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("API_ENDPOINT", "https://localhost:8000")
	viper.SetDefault("TEMPLATE_FILE", "templates/profile_template.html")
	viper.SetDefault("GOOGLE_CREDENTIALS_FILE", "service_account.json")
	viper.SetDefault("STORAGE_BACKEND", storage.BackendDrive)
	viper.SetDefault("MINIO_BUCKET", "student-profiles")
	viper.SetDefault("FIELD_DISPLAY_NAME", "Full Name")
	viper.SetDefault("FIELD_FOLDER_LINK", "Google Drive Link")
	viper.SetDefault("FIELD_PROFILE_LINK", "Profile")
	viper.SetDefault("RATE_LIMIT_RPS", 5)
	viper.SetDefault("RATE_LIMIT_BURST", 10)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	parent := viper.GetString("STORAGE_PARENT_ID")
	if parent == "" {
		parent = viper.GetString("GOOGLE_DRIVE_PARENT_FOLDER_ID")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Baserow: BaserowConfig{
			APIURL:  viper.GetString("BASEROW_API_URL"),
			Token:   os.Getenv("BASEROW_TOKEN"),
			TableID: viper.GetString("TABLE_ID"),
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(viper.GetString("STORAGE_BACKEND")),
			ParentFolderID: parent,
			Drive: storage.DriveConfig{
				CredentialsFile: viper.GetString("GOOGLE_CREDENTIALS_FILE"),
				ProxyURL:        viper.GetString("GOOGLE_PROXY_URL"),
			},
			MinIO: storage.MinIOConfig{
				Endpoint:  viper.GetString("MINIO_ENDPOINT"),
				AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
				SecretKey: os.Getenv("MINIO_SECRET_KEY"),
				UseSSL:    viper.GetBool("MINIO_USE_SSL"),
				Bucket:    viper.GetString("MINIO_BUCKET"),
				PublicURL: viper.GetString("MINIO_PUBLIC_URL"),
			},
			GCS: storage.GCSConfig{
				Bucket:          viper.GetString("GCS_BUCKET"),
				CredentialsFile: viper.GetString("GOOGLE_CREDENTIALS_FILE"),
			},
		},
		Render: RenderConfig{
			TemplateFile: viper.GetString("TEMPLATE_FILE"),
		},
		Fields: FieldConfig{
			DisplayName: viper.GetString("FIELD_DISPLAY_NAME"),
			FolderLink:  viper.GetString("FIELD_FOLDER_LINK"),
			ProfileLink: viper.GetString("FIELD_PROFILE_LINK"),
		},
		Profile: ProfileConfig{
			BaseURL: strings.TrimRight(viper.GetString("API_ENDPOINT"), "/"),
		},
		Webhook: WebhookConfig{
			StatusCodes: viper.GetBool("WEBHOOK_STATUS_CODES"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if cfg.Redis.Port == "" {
		cfg.Redis.Port = "6379"
	}

	switch cfg.Storage.Backend {
	case storage.BackendDrive, storage.BackendMinIO, storage.BackendGCS:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.Storage.Backend)
	}

	return cfg, nil
}

// Validate reports every required setting that is missing. A service started
// with an invalid config still serves /health, but /ready stays unavailable.
func (c *Config) Validate() error {
	var errs []error
	require := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	require("BASEROW_API_URL", c.Baserow.APIURL)
	require("BASEROW_TOKEN", c.Baserow.Token)
	require("TABLE_ID", c.Baserow.TableID)
	require("TEMPLATE_FILE", c.Render.TemplateFile)

	switch c.Storage.Backend {
	case storage.BackendDrive:
		require("GOOGLE_DRIVE_PARENT_FOLDER_ID", c.Storage.ParentFolderID)
		require("GOOGLE_CREDENTIALS_FILE", c.Storage.Drive.CredentialsFile)
	case storage.BackendMinIO:
		require("MINIO_ENDPOINT", c.Storage.MinIO.Endpoint)
		require("MINIO_BUCKET", c.Storage.MinIO.Bucket)
	case storage.BackendGCS:
		require("GCS_BUCKET", c.Storage.GCS.Bucket)
	}

	return errors.Join(errs...)
}
