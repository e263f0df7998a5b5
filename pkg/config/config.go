package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers
const (
	StorageLocal    = "local"
	StorageS3       = "s3"
	StorageFirebase = "firebase"
)

// Challenge stores
const (
	CaptchaStoreRedis = "redis"
	CaptchaStoreMongo = "mongo"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	PostgresConnStr string
	MongoURI        string
	MongoDatabase   string
	RedisURL        string

	CaptchaEnabled bool
	CaptchaStore   string
	CaptchaTimeout time.Duration

	StorageDriver           string
	MediaRoot               string
	MediaURL                string
	S3Bucket                string
	S3Region                string
	S3PublicURL             string
	FirebaseCredentialsPath string
	FirebaseBucket          string

	AllowedFileExtensions []string
	CORSAllowedOrigins    []string
	AllowDelete           bool
	MaxUploadSize         int64

	MetricsPort string
}

// Load reads .env (when present), an optional YAML file named by CONFIG_FILE
// and the environment, in increasing priority.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		Port:     v.GetString("PORT"),
		Env:      v.GetString("ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),

		PostgresConnStr: v.GetString("POSTGRES_CONN_STR"),
		MongoURI:        v.GetString("MONGO_URI"),
		MongoDatabase:   v.GetString("MONGO_DATABASE"),
		RedisURL:        v.GetString("REDIS_URL"),

		CaptchaEnabled: v.GetBool("CAPTCHA_ENABLED"),
		CaptchaStore:   strings.ToLower(v.GetString("CAPTCHA_STORE")),
		CaptchaTimeout: v.GetDuration("CAPTCHA_TIMEOUT"),

		StorageDriver:           strings.ToLower(v.GetString("STORAGE_DRIVER")),
		MediaRoot:               v.GetString("MEDIA_ROOT"),
		MediaURL:                v.GetString("MEDIA_URL"),
		S3Bucket:                v.GetString("S3_BUCKET"),
		S3Region:                v.GetString("S3_REGION"),
		S3PublicURL:             v.GetString("S3_PUBLIC_URL"),
		FirebaseCredentialsPath: v.GetString("FIREBASE_CREDENTIALS_PATH"),
		FirebaseBucket:          v.GetString("FIREBASE_BUCKET"),

		AllowedFileExtensions: splitList(v.GetString("ALLOWED_FILE_EXTENSIONS")),
		CORSAllowedOrigins:    splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		AllowDelete:           v.GetBool("ALLOW_DELETE"),
		MaxUploadSize:         v.GetInt64("MAX_UPLOAD_SIZE"),

		MetricsPort: v.GetString("METRICS_PORT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether ENV is development
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MONGO_DATABASE", "threadboard")
	v.SetDefault("CAPTCHA_ENABLED", true)
	v.SetDefault("CAPTCHA_STORE", CaptchaStoreRedis)
	v.SetDefault("CAPTCHA_TIMEOUT", "5m")
	v.SetDefault("STORAGE_DRIVER", StorageLocal)
	v.SetDefault("MEDIA_ROOT", "./media")
	v.SetDefault("MEDIA_URL", "/media/")
	v.SetDefault("ALLOWED_FILE_EXTENSIONS", "jpg,jpeg,png,gif")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("ALLOW_DELETE", false)
	v.SetDefault("MAX_UPLOAD_SIZE", 10<<20)
	v.SetDefault("METRICS_PORT", "9090")
}

func (c *Config) validate() error {
	if c.PostgresConnStr == "" {
		return fmt.Errorf("POSTGRES_CONN_STR environment variable not set")
	}
	if c.CaptchaEnabled {
		switch c.CaptchaStore {
		case CaptchaStoreRedis:
			if c.RedisURL == "" {
				return fmt.Errorf("REDIS_URL environment variable not set")
			}
		case CaptchaStoreMongo:
			if c.MongoURI == "" {
				return fmt.Errorf("MONGO_URI environment variable not set")
			}
		default:
			return fmt.Errorf("unknown CAPTCHA_STORE %q", c.CaptchaStore)
		}
	}
	switch c.StorageDriver {
	case StorageLocal:
	case StorageS3:
		if c.S3Bucket == "" || c.S3Region == "" {
			return fmt.Errorf("S3_BUCKET and S3_REGION must be set for the s3 storage driver")
		}
	case StorageFirebase:
		if c.FirebaseCredentialsPath == "" || c.FirebaseBucket == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_PATH and FIREBASE_BUCKET must be set for the firebase storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
