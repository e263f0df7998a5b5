package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every key Load reads; viper treats empty values as unset
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "ENV", "LOG_LEVEL", "POSTGRES_CONN_STR", "MONGO_URI", "MONGO_DATABASE",
		"REDIS_URL", "CAPTCHA_ENABLED", "CAPTCHA_STORE", "CAPTCHA_TIMEOUT", "STORAGE_DRIVER",
		"MEDIA_ROOT", "MEDIA_URL", "S3_BUCKET", "S3_REGION", "S3_PUBLIC_URL",
		"FIREBASE_CREDENTIALS_PATH", "FIREBASE_BUCKET", "ALLOWED_FILE_EXTENSIONS",
		"CORS_ALLOWED_ORIGINS", "ALLOW_DELETE", "METRICS_PORT", "MAX_UPLOAD_SIZE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_CONN_STR", "postgres://localhost/board")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.CaptchaEnabled)
	assert.Equal(t, CaptchaStoreRedis, cfg.CaptchaStore)
	assert.Equal(t, 5*time.Minute, cfg.CaptchaTimeout)
	assert.Equal(t, StorageLocal, cfg.StorageDriver)
	assert.Equal(t, "/media/", cfg.MediaURL)
	assert.Equal(t, []string{"jpg", "jpeg", "png", "gif"}, cfg.AllowedFileExtensions)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.AllowDelete)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadSize)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_CONN_STR", "postgres://localhost/board")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("CAPTCHA_STORE", "Mongo")
	t.Setenv("CAPTCHA_TIMEOUT", "90s")
	t.Setenv("ALLOWED_FILE_EXTENSIONS", " jpg, txt ,,")
	t.Setenv("ALLOW_DELETE", "true")
	t.Setenv("STORAGE_DRIVER", "s3")
	t.Setenv("S3_BUCKET", "board")
	t.Setenv("S3_REGION", "eu-central-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, CaptchaStoreMongo, cfg.CaptchaStore)
	assert.Equal(t, 90*time.Second, cfg.CaptchaTimeout)
	assert.Equal(t, []string{"jpg", "txt"}, cfg.AllowedFileExtensions)
	assert.True(t, cfg.AllowDelete)
	assert.Equal(t, StorageS3, cfg.StorageDriver)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("postgres_conn_str: postgres://file/board\ncaptcha_enabled: false\nport: \"9000\"\n"), 0o600))
	t.Setenv("CONFIG_FILE", file)
	t.Setenv("PORT", "7000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://file/board", cfg.PostgresConnStr)
	assert.False(t, cfg.CaptchaEnabled)
	assert.Equal(t, "7000", cfg.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing postgres", map[string]string{"CAPTCHA_ENABLED": "false"}},
		{"missing redis", map[string]string{"POSTGRES_CONN_STR": "x"}},
		{"unknown store", map[string]string{"POSTGRES_CONN_STR": "x", "CAPTCHA_STORE": "memcached"}},
		{"unknown driver", map[string]string{"POSTGRES_CONN_STR": "x", "CAPTCHA_ENABLED": "false", "STORAGE_DRIVER": "ftp"}},
		{"firebase without bucket", map[string]string{"POSTGRES_CONN_STR": "x", "CAPTCHA_ENABLED": "false", "STORAGE_DRIVER": "firebase"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
