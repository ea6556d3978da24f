package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJSON(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"http_addr":              "www.example:9000",
		"database_dsn":           "postgres://db",
		"secret_key":             "my_secret_key",
		"session_token_ttl":      "30m",
		"refresh_token_ttl":      "48h",
		"verification_token_ttl": 60000000000,
		"email_verification":     false,
		"otp_span":               900000,
		"mongo_uri":              "mongodb://mongo:27017",
		"redis_addr":             "redis:6379",
		"mail_provider":          "postmark",
		"postmark_token":         "pm",
		"template_source":        "s3",
		"template_path":          "mail/verification.html",
		"s3_bucket":              "bucket",
		"admin_emails":           []string{"root@x.com"},
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(cfg, []string{"-config", path}))

		assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 30*time.Minute, cfg.SessionTokenTTL)
		assert.Equal(t, 48*time.Hour, cfg.RefreshTokenTTL)
		assert.Equal(t, time.Minute, cfg.VerificationTokenTTL)
		assert.False(t, cfg.EmailVerification)
		assert.Equal(t, int64(100000), cfg.OTPMin, "absent field keeps default")
		assert.Equal(t, int64(900000), cfg.OTPSpan)
		assert.Equal(t, "mongodb://mongo:27017", cfg.MongoURI)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, MailProviderPostmark, cfg.MailProvider)
		assert.Equal(t, TemplateSourceS3, cfg.TemplateSource)
		assert.Equal(t, "mail/verification.html", cfg.TemplatePath)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "us-east-1", cfg.S3Region)
		assert.Equal(t, []string{"root@x.com"}, cfg.AdminEmails)
	})

	t.Run("no config flag leaves config untouched", func(t *testing.T) {
		cfg := &Config{HTTPAddr: "defaults:1234"}
		require.NoError(t, parseJSON(cfg, []string{"-a", ":1"}))
		assert.Equal(t, "defaults:1234", cfg.HTTPAddr)
	})

	t.Run("missing file", func(t *testing.T) {
		err := parseJSON(&Config{}, []string{"-c", filepath.Join(t.TempDir(), "nope.json")})
		require.ErrorContains(t, err, "read config file")
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		err := parseJSON(&Config{}, []string{"-c", bad})
		require.ErrorContains(t, err, "decode config file")
	})
}
